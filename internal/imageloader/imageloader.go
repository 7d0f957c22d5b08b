// Package imageloader decodes wallpaper images off the main goroutine.
//
// The cache is owned by the event loop and must only be used from it; the
// only cross-goroutine traffic is the worker publishing its result through
// a one-shot channel and waking the loop. Each unique path gets at most
// one in-flight decode, no matter how many surfaces ask for it.
package imageloader

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"os"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/driftpaper/driftpaper/internal/wakeup"
)

// Status reports the outcome of a single Load poll.
type Status int

const (
	// StatusLoaded means the decoded image was returned.
	StatusLoaded Status = iota
	// StatusWaiting means the decode is still in flight; poll again
	// after the next wakeup.
	StatusWaiting
	// StatusError means the decode failed and its entry was purged.
	// A subsequent Load starts from scratch.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusWaiting:
		return "waiting"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// task is the handle to one decode worker. img and err may only be read
// after done is closed; the worker finishes the RGBA conversion before
// closing done, and closes done before waking the loop, so a woken loop
// never observes a finished task with a half-converted buffer.
type task struct {
	done chan struct{}
	img  *image.RGBA
	err  error
}

func (t *task) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

type entry struct {
	data       *image.RGBA
	task       *task
	requesters []string
}

func (e *entry) record(name string) {
	if !slices.Contains(e.requesters, name) {
		e.requesters = append(e.requesters, name)
	}
}

// Loader caches decode state per canonical file path.
type Loader struct {
	images map[string]*entry
	wake   wakeup.Signal
}

func New(wake wakeup.Signal) *Loader {
	return &Loader{
		images: make(map[string]*entry),
		wake:   wake,
	}
}

// Load polls the cache for path on behalf of requester.
//
// The first request for a path spawns a decode worker and returns
// StatusWaiting. Later polls return StatusWaiting until the worker is
// done; the finished worker is joined exactly once, here, on the loop
// goroutine. On success the image is handed out: the sole remaining
// requester takes ownership of the buffer and the entry is dropped, while
// earlier requesters of a shared path get their own copy. On failure the
// entry is purged and every waiter implicitly starts over on its next
// poll.
func (l *Loader) Load(path, requester string) (*image.RGBA, Status) {
	img, ok := l.images[path]
	if !ok {
		l.spawn(path, requester)
		return nil, StatusWaiting
	}

	if t := img.task; t != nil {
		if !t.finished() {
			img.record(requester)
			return nil, StatusWaiting
		}
		// Join exactly once.
		img.task = nil
		if t.err != nil {
			log.Warnf("loading %s failed: %v", path, t.err)
			delete(l.images, path)
			return nil, StatusError
		}
		img.data = t.img
	}

	if img.data == nil {
		img.record(requester)
		return nil, StatusWaiting
	}

	if len(img.requesters) == 1 && img.requesters[0] == requester {
		// Sole consumer: move the buffer out and drop the entry.
		delete(l.images, path)
		return img.data, StatusLoaded
	}

	// Shared by multiple surfaces: hand out a copy and keep the entry
	// alive for the remaining requesters.
	if i := slices.Index(img.requesters, requester); i >= 0 {
		img.requesters = slices.Delete(img.requesters, i, i+1)
	}
	return cloneRGBA(img.data), StatusLoaded
}

func (l *Loader) spawn(path, requester string) {
	t := &task{done: make(chan struct{})}
	wake := l.wake
	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.img = nil
				t.err = fmt.Errorf("decoding %s panicked: %v", path, r)
			}
			// Conversion is complete before the task becomes
			// observable as finished, and the task is finished
			// before the loop is woken. Reordering either step
			// makes a half-ready buffer or a lost wakeup
			// possible.
			close(t.done)
			wake.Wake()
		}()
		t.img, t.err = decodeRGBA(path)
	}()

	l.images[path] = &entry{
		task:       t,
		requesters: []string{requester},
	}
}

// decodeRGBA reads and decodes path, then converts the result to the
// renderer-ready RGBA layout.
func decodeRGBA(path string) (*image.RGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba, nil
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

// CheckLingering panics if any entry survives with no requesters. The
// daemon runs it on every dispatch when debug logging is enabled;
// requester bookkeeping and entry removal happen in the same Load call,
// so an orphaned entry means a bug, not a race.
func (l *Loader) CheckLingering() {
	for path, img := range l.images {
		if len(img.requesters) == 0 {
			panic(fmt.Sprintf("imageloader: entry for %s has no requesters", path))
		}
	}
}

// Pending reports how many paths currently have an unconsumed entry.
func (l *Loader) Pending() int { return len(l.images) }
