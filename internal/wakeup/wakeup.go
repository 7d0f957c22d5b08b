// Package wakeup provides the cross-goroutine notification primitive the
// decode workers use to rouse the daemon's event loop. The loop waits on
// protocol events and timers; a wakeup is an additional source that fires
// when something outside those (a finished decode, an IPC command) needs
// the loop to re-poll state.
package wakeup

// Signal is a cheap, copyable handle. All copies share the same underlying
// channel, so a worker can hold its own copy and wake the loop from any
// goroutine. Signals sent while one is already pending coalesce; a signal
// is never lost.
type Signal struct {
	ch chan struct{}
}

func New() Signal {
	return Signal{ch: make(chan struct{}, 1)}
}

// Wake requests a loop iteration. Never blocks.
func (s Signal) Wake() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// C is the receive side, consumed by the event loop as a wake source.
// Draining one value consumes all coalesced wakes delivered before it.
func (s Signal) C() <-chan struct{} {
	return s.ch
}
