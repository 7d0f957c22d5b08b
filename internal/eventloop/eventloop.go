// Package eventloop implements the daemon's single-threaded dispatcher.
// All surfaces, rotation timers and GPU context switches are owned by one
// goroutine running Loop.Run; decode workers and the IPC server interact
// with it only through the wakeup signal and Post. Callbacks run to
// completion, so nothing in this package needs a lock around loop state.
package eventloop

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/driftpaper/driftpaper/internal/wakeup"
)

// Token identifies a timer registration. The zero value is never issued.
type Token uint64

const NoToken Token = 0

// TimeoutAction is returned by a timer callback to decide what happens to
// its registration: rearm after a duration, or drop it entirely.
type TimeoutAction struct {
	rearm bool
	after time.Duration
}

// RearmAfter keeps the registration alive and schedules the next fire
// relative to now.
func RearmAfter(d time.Duration) TimeoutAction {
	return TimeoutAction{rearm: true, after: d}
}

// Drop removes the registration permanently.
func Drop() TimeoutAction {
	return TimeoutAction{}
}

// TimerCallback is invoked on the loop goroutine when a timer elapses.
type TimerCallback func(now time.Time) TimeoutAction

type timerSource struct {
	deadline time.Time
	callback TimerCallback
}

type Loop struct {
	clock   clockwork.Clock
	wake    wakeup.Signal
	posted  chan func()
	quit    chan struct{}
	onWake  func()
	timers  map[Token]*timerSource
	lastTok Token
}

func New(clock clockwork.Clock) *Loop {
	return &Loop{
		clock:  clock,
		wake:   wakeup.New(),
		posted: make(chan func(), 16),
		quit:   make(chan struct{}, 1),
		timers: make(map[Token]*timerSource),
	}
}

func (l *Loop) Clock() clockwork.Clock { return l.clock }

func (l *Loop) Now() time.Time { return l.clock.Now() }

// Wakeup returns the signal handle workers use to rouse the loop. The
// handle is copyable and safe to use from any goroutine.
func (l *Loop) Wakeup() wakeup.Signal { return l.wake }

// OnWake registers the function run whenever the loop is woken, either by
// the wakeup signal or after timer dispatch. The daemon uses it to flush
// pending draws and re-poll the image loader. Must be set before Run.
func (l *Loop) OnWake(fn func()) { l.onWake = fn }

// InsertTimer registers a callback to fire once delay has elapsed. A
// non-positive delay fires on the next dispatch. Only the loop goroutine
// may call this.
func (l *Loop) InsertTimer(delay time.Duration, cb TimerCallback) Token {
	l.lastTok++
	tok := l.lastTok
	l.timers[tok] = &timerSource{
		deadline: l.clock.Now().Add(delay),
		callback: cb,
	}
	return tok
}

// Remove cancels a registration. Removing an already-fired or unknown
// token is a no-op.
func (l *Loop) Remove(tok Token) {
	delete(l.timers, tok)
}

// Deadline reports when the given registration will next fire.
func (l *Loop) Deadline(tok Token) (time.Time, bool) {
	src, ok := l.timers[tok]
	if !ok {
		return time.Time{}, false
	}
	return src.deadline, true
}

// ActiveTimers reports the number of live registrations.
func (l *Loop) ActiveTimers() int { return len(l.timers) }

// Post schedules fn to run on the loop goroutine and wakes the loop.
// Safe to call from any goroutine; this is how the IPC server injects
// commands.
func (l *Loop) Post(fn func()) {
	l.posted <- fn
	l.wake.Wake()
}

// Stop makes Run return after the current dispatch. Safe from any
// goroutine.
func (l *Loop) Stop() {
	select {
	case l.quit <- struct{}{}:
	default:
	}
	l.wake.Wake()
}

// DispatchDue fires every timer whose deadline has passed, applying each
// callback's TimeoutAction. Callbacks may insert or remove timers; timers
// inserted during dispatch are not fired until their own deadline passes.
func (l *Loop) DispatchDue() {
	now := l.clock.Now()
	for {
		tok, src := l.earliestDue(now)
		if tok == NoToken {
			return
		}
		action := src.callback(now)
		// The callback may have removed (or replaced) its own
		// registration; only touch it if it is still ours.
		if cur, ok := l.timers[tok]; ok && cur == src {
			if action.rearm {
				cur.deadline = now.Add(action.after)
			} else {
				delete(l.timers, tok)
			}
		}
	}
}

func (l *Loop) earliestDue(now time.Time) (Token, *timerSource) {
	var (
		best    Token
		bestSrc *timerSource
	)
	for tok, src := range l.timers {
		if src.deadline.After(now) {
			continue
		}
		if bestSrc == nil || src.deadline.Before(bestSrc.deadline) {
			best, bestSrc = tok, src
		}
	}
	return best, bestSrc
}

func (l *Loop) nextDeadline() (time.Time, bool) {
	var (
		next time.Time
		ok   bool
	)
	for _, src := range l.timers {
		if !ok || src.deadline.Before(next) {
			next = src.deadline
			ok = true
		}
	}
	return next, ok
}

func (l *Loop) drainPosted() {
	for {
		select {
		case fn := <-l.posted:
			fn()
		default:
			return
		}
	}
}

// Run dispatches until Stop is called. Each iteration waits for the
// nearest timer deadline, a wakeup or a posted command, then runs every
// due callback to completion before sleeping again.
func (l *Loop) Run() {
	for {
		var (
			timer  clockwork.Timer
			timerC <-chan time.Time
		)
		if deadline, ok := l.nextDeadline(); ok {
			wait := deadline.Sub(l.clock.Now())
			if wait < 0 {
				wait = 0
			}
			timer = l.clock.NewTimer(wait)
			timerC = timer.Chan()
		}

		select {
		case <-l.quit:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-timerC:
		case <-l.wake.C():
		case fn := <-l.posted:
			fn()
		}
		if timer != nil {
			timer.Stop()
		}

		l.drainPosted()
		l.DispatchDue()
		if l.onWake != nil {
			l.onWake()
		}
	}
}
