// Package surface ties one monitor's rendering target to its rotation
// schedule. Each Surface owns at most one timer registration in the event
// loop and reconciles configuration changes against it, so an image
// rotation is never lost, duplicated or fired off-schedule.
package surface

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/driftpaper/driftpaper/internal/config"
	"github.com/driftpaper/driftpaper/internal/eventloop"
	"github.com/driftpaper/driftpaper/internal/picker"
	"github.com/driftpaper/driftpaper/internal/render"
	"github.com/driftpaper/driftpaper/internal/wakeup"
)

type Surface struct {
	Name   string
	Picker *picker.Picker

	width  int
	height int
	scale  int

	ctx      render.Context
	renderer render.Renderer
	wake     wakeup.Signal

	timer eventloop.Token
	info  *config.WallpaperInfo

	wantsFrame bool
}

func New(name string, ctx render.Context, renderer render.Renderer, p *picker.Picker, wake wakeup.Signal, info *config.WallpaperInfo) *Surface {
	return &Surface{
		Name:     name,
		Picker:   p,
		ctx:      ctx,
		renderer: renderer,
		wake:     wake,
		info:     info,
		scale:    1,
	}
}

func (s *Surface) Info() *config.WallpaperInfo { return s.info }

// Timer exposes the current registration token; NoToken when rotation is
// idle. The daemon reads it to report the next rotation in status output.
func (s *Surface) Timer() eventloop.Token { return s.timer }

// Reconcile applies a new configuration snapshot. Identical snapshots are
// a no-op; otherwise the rotation timer is cancelled and rearmed so that
// an unchanged image keeps its original schedule, while a changed image
// rotates immediately.
func (s *Surface) Reconcile(loop *eventloop.Loop, info *config.WallpaperInfo) {
	if s.info.Equal(info) {
		return
	}
	old := s.info
	s.info = info
	pathChanged := s.Picker.Update(info)

	if old.Duration == info.Duration {
		if pathChanged {
			s.QueueDraw()
		}
		return
	}

	switch {
	case old.Duration == 0 && info.Duration == 0:
		// Guarded by the equality check above; both-empty durations
		// can only get here through a bookkeeping bug.
		panic("surface: duration reconcile with no duration on either side")
	case info.Duration == 0:
		// Rotation turned off.
		s.cancelTimer(loop)
		if pathChanged {
			s.QueueDraw()
		}
	default:
		// Rotation turned on or retuned.
		s.cancelTimer(loop)
		delay := time.Duration(0)
		if !pathChanged {
			// Same image: keep its original schedule under the
			// new duration.
			if rem, ok := remainingDuration(info.Duration, s.Picker.ImageChangedInstant, loop.Now()); ok {
				delay = rem
			}
		} else {
			// The picker already moved to the new source; show it
			// now. The immediate fire below only decides the
			// schedule for the following interval.
			s.QueueDraw()
		}
		s.AddTimer(loop, delay)
	}
}

// AddTimer arms the rotation timer to fire after delay. No-op when
// rotation is disabled or a registration already exists: callers that
// want a different deadline must cancel first. This is what keeps a
// surface at no more than one concurrent timer.
func (s *Surface) AddTimer(loop *eventloop.Loop, delay time.Duration) {
	if s.info.Duration == 0 || s.timer != eventloop.NoToken {
		return
	}
	s.timer = loop.InsertTimer(delay, s.onTimerFire)
}

func (s *Surface) cancelTimer(loop *eventloop.Loop) {
	if s.timer != eventloop.NoToken {
		loop.Remove(s.timer)
		s.timer = eventloop.NoToken
	}
}

// onTimerFire runs in the event loop when the rotation timer elapses. A
// manual next/previous command may have reset the image-changed instant
// since the timer was armed; in that case the timer rearms for the
// remaining interval instead of advancing the image again.
func (s *Surface) onTimerFire(now time.Time) eventloop.TimeoutAction {
	duration := s.info.Duration
	if duration == 0 {
		s.timer = eventloop.NoToken
		return eventloop.Drop()
	}

	if rem, ok := remainingDuration(duration, s.Picker.ImageChangedInstant, now); ok {
		return eventloop.RearmAfter(rem)
	}

	s.Picker.NextImage()
	s.QueueDraw()
	return eventloop.RearmAfter(duration)
}

// QueueDraw marks the surface as wanting a new frame and wakes the loop.
// The wakeup matters for surfaces covering a fullscreen output: those get
// no frame callbacks from the compositor, so the loop must be roused
// explicitly once a background decode lands.
func (s *Surface) QueueDraw() {
	s.wantsFrame = true
	s.wake.Wake()
}

// WantsFrame reports whether a draw has been queued; Draw clears it.
func (s *Surface) WantsFrame() bool {
	return s.wantsFrame
}

// Resize updates the surface dimensions and the GPU viewport.
func (s *Surface) Resize(width, height, scale int) error {
	s.width = width
	s.height = height
	if scale > 0 {
		s.scale = scale
	}
	bufW, bufH := s.width*s.scale, s.height*s.scale
	s.ctx.Resize(bufW, bufH)
	if err := s.ctx.MakeCurrent(); err != nil {
		return err
	}
	return s.renderer.Resize(bufW, bufH)
}

// Configured reports whether the surface has valid dimensions.
func (s *Surface) Configured() bool {
	return s.width != 0 && s.height != 0
}

// Draw renders one frame. It polls the picker for a newly decoded image
// first; when one is ready it is uploaded and the entrance animation
// restarted. While the decode is still in flight the frame stays
// queued, so the worker's wakeup finds the surface ready to upload.
// While the animation runs the next frame is scheduled one frame
// interval out, sustaining the redraw loop until the fade completes.
func (s *Surface) Draw(loop *eventloop.Loop, now time.Time) error {
	s.wantsFrame = false

	if err := s.ctx.MakeCurrent(); err != nil {
		return err
	}

	img, err := s.Picker.GetImage()
	if err != nil {
		// Keep showing the last rendered image; the next poll
		// starts a fresh decode.
		log.Warnf("surface %s: %v", s.Name, err)
	} else if img != nil {
		if err := s.renderer.LoadTexture(img, s.info.Mode); err != nil {
			return err
		}
		s.renderer.StartAnimation(now)
	} else if s.Picker.Loading() {
		s.wantsFrame = true
	}

	if s.renderer.TimeStarted().IsZero() {
		s.renderer.StartAnimation(now)
	}

	if err := s.renderer.Draw(now); err != nil {
		return err
	}

	if s.renderer.IsDrawingAnimation(now) {
		s.scheduleFrame(loop)
	}

	if err := s.renderer.ClearAfterDraw(); err != nil {
		return err
	}
	return s.ctx.SwapBuffers()
}

// scheduleFrame arms a one-shot timer for the next animation frame,
// capping the redraw rate without blocking the loop between frames.
func (s *Surface) scheduleFrame(loop *eventloop.Loop) {
	interval := s.renderer.FrameInterval()
	if interval <= 0 {
		s.QueueDraw()
		return
	}
	loop.InsertTimer(interval, func(time.Time) eventloop.TimeoutAction {
		s.QueueDraw()
		return eventloop.Drop()
	})
}

// remainingDuration reports how much of duration is left since the image
// last changed; ok is false once the interval has fully elapsed.
func remainingDuration(duration time.Duration, imageChanged, now time.Time) (time.Duration, bool) {
	remaining := duration - now.Sub(imageChanged)
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}
