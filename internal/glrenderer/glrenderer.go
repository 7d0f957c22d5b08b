// Package glrenderer is the OpenGL implementation of render.Renderer and
// render.Context. Each monitor gets its own hidden desktop-type window
// whose GL context the event loop makes current before drawing; images
// are uploaded as textures and crossfaded with a configurable easing.
package glrenderer

/*
#cgo LDFLAGS: -lGL -lX11
#include <GL/gl.h>
#include <X11/Xlib.h>
#include <X11/Xatom.h>
#include <X11/Xutil.h>

void set_window_override_redirect(Display* display, Window win) {
    XSetWindowAttributes attrs;
    attrs.override_redirect = True;
    XChangeWindowAttributes(display, win, CWOverrideRedirect, &attrs);
}

void set_net_wm_window_type_desktop(Display* display, Window win) {
    Atom net_wm_window_type = XInternAtom(display, "_NET_WM_WINDOW_TYPE", False);
    Atom net_wm_window_type_desktop = XInternAtom(display, "_NET_WM_WINDOW_TYPE_DESKTOP", False);
    XChangeProperty(display, win, net_wm_window_type, XA_ATOM, 32, PropModeReplace, (unsigned char *)&net_wm_window_type_desktop, 1);
}
*/
import "C"

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-gl/gl/v2.1/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/driftpaper/driftpaper/internal/render"
)

var glInit sync.Once

// Init readies glfw. Must run on the locked main OS thread before any
// window is created.
func Init() error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw init failed: %w", err)
	}
	return nil
}

func Terminate() {
	glfw.Terminate()
}

// Monitors returns the connected monitors, keyed by their connector name.
func Monitors() map[string]*glfw.Monitor {
	monitors := make(map[string]*glfw.Monitor)
	for _, m := range glfw.GetMonitors() {
		monitors[m.GetName()] = m
	}
	return monitors
}

// Context wraps one per-monitor window and implements render.Context.
type Context struct {
	win *glfw.Window
}

// NewContext creates the hidden, undecorated desktop window that backs a
// surface on the given monitor and leaves its GL context current.
func NewContext(monitor *glfw.Monitor) (*Context, int, int, error) {
	mode := monitor.GetVideoMode()
	x, y := monitor.GetPos()

	glfw.WindowHint(glfw.Decorated, glfw.False)
	glfw.WindowHint(glfw.Focused, glfw.False)
	glfw.WindowHint(glfw.Floating, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	glfw.WindowHint(glfw.Visible, glfw.False) // prevent auto-map

	win, err := glfw.CreateWindow(mode.Width, mode.Height, "driftpaper", nil, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("create window failed: %w", err)
	}
	win.SetPos(x, y)

	// Tell the window manager this is a desktop window and keep it below
	// everything else.
	display := C.XOpenDisplay(nil)
	if display != nil {
		xwin := C.Window(win.GetX11Window())
		C.set_window_override_redirect(display, xwin)
		C.set_net_wm_window_type_desktop(display, xwin)
		C.XMapWindow(display, xwin)
		C.XLowerWindow(display, xwin)
		C.XFlush(display)
	}

	ctx := &Context{win: win}
	if err := ctx.MakeCurrent(); err != nil {
		win.Destroy()
		return nil, 0, 0, err
	}
	return ctx, mode.Width, mode.Height, nil
}

func (c *Context) MakeCurrent() error {
	c.win.MakeContextCurrent()
	var err error
	glInit.Do(func() {
		if e := gl.Init(); e != nil {
			err = fmt.Errorf("gl init failed: %w", e)
		}
	})
	return err
}

func (c *Context) Resize(width, height int) {
	c.win.SetSize(width, height)
}

func (c *Context) SwapBuffers() error {
	c.win.SwapBuffers()
	return nil
}

func (c *Context) Destroy() {
	c.win.Destroy()
}

// Renderer crossfades between the previous and the newest texture.
type Renderer struct {
	easing    render.EasingMode
	fadeDur   time.Duration
	framerate int

	width  int
	height int

	current  uint32
	incoming uint32

	timeStarted time.Time
}

func NewRenderer(easing render.EasingMode, fadeDur time.Duration, framerate int) *Renderer {
	if framerate <= 0 {
		framerate = 60
	} else if framerate > 240 {
		framerate = 240
	}
	return &Renderer{
		easing:    easing,
		fadeDur:   fadeDur,
		framerate: framerate,
	}
}

func (r *Renderer) Resize(width, height int) error {
	r.width = width
	r.height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	gl.ClearColor(0, 0, 0, 1)
	return nil
}

// LoadTexture uploads img as the incoming wallpaper. The previously
// current texture is retained so Draw can fade between the two.
func (r *Renderer) LoadTexture(img *image.RGBA, mode render.ScalingMode) error {
	fitted := fitImage(img, mode, r.width, r.height)
	tex, err := createTexture(fitted)
	if err != nil {
		return err
	}
	if r.current == 0 {
		r.current = tex
		return nil
	}
	if r.incoming != 0 {
		gl.DeleteTextures(1, &r.incoming)
	}
	r.incoming = tex
	return nil
}

func (r *Renderer) StartAnimation(now time.Time) {
	r.timeStarted = now
}

func (r *Renderer) TimeStarted() time.Time {
	return r.timeStarted
}

func (r *Renderer) IsDrawingAnimation(now time.Time) bool {
	return r.incoming != 0 && r.progress(now) < 1
}

func (r *Renderer) progress(now time.Time) float64 {
	if r.fadeDur <= 0 {
		return 1
	}
	return now.Sub(r.timeStarted).Seconds() / r.fadeDur.Seconds()
}

func (r *Renderer) Draw(now time.Time) error {
	if r.incoming == 0 {
		r.drawStatic()
		return nil
	}

	t := r.progress(now)
	if t >= 1 {
		// Fade finished: promote the incoming texture.
		if r.current != 0 {
			gl.DeleteTextures(1, &r.current)
		}
		r.current = r.incoming
		r.incoming = 0
		r.drawStatic()
		return nil
	}

	r.drawFade(float32(applyEasing(r.easing, t)))
	return nil
}

// FrameInterval spaces the animation frames the surface schedules,
// capping the fade at the configured framerate.
func (r *Renderer) FrameInterval() time.Duration {
	return time.Second / time.Duration(r.framerate)
}

func (r *Renderer) drawStatic() {
	gl.Clear(gl.COLOR_BUFFER_BIT)
	if r.current == 0 {
		return
	}
	gl.Enable(gl.TEXTURE_2D)
	gl.BindTexture(gl.TEXTURE_2D, r.current)
	gl.Color4f(1, 1, 1, 1)
	drawQuad()
}

func (r *Renderer) drawFade(alpha float32) {
	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.Enable(gl.TEXTURE_2D)

	if r.current != 0 && alpha < 1 {
		gl.Color4f(1, 1, 1, 1-alpha)
		gl.BindTexture(gl.TEXTURE_2D, r.current)
		drawQuad()
	}
	if r.incoming != 0 {
		gl.Color4f(1, 1, 1, alpha)
		gl.BindTexture(gl.TEXTURE_2D, r.incoming)
		drawQuad()
	}
	gl.Disable(gl.BLEND)
}

func (r *Renderer) ClearAfterDraw() error {
	gl.Disable(gl.TEXTURE_2D)
	gl.Flush()
	return nil
}

func (r *Renderer) Cleanup() {
	if r.current != 0 {
		gl.DeleteTextures(1, &r.current)
		r.current = 0
	}
	if r.incoming != 0 {
		gl.DeleteTextures(1, &r.incoming)
		r.incoming = 0
	}
}

func applyEasing(mode render.EasingMode, t float64) float64 {
	switch mode {
	case render.EasingLinear:
		return t
	case render.EasingEaseIn:
		return t * t
	case render.EasingEaseOut:
		return t * (2 - t)
	case render.EasingEaseInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		return -1 + (4-2*t)*t
	default:
		return t
	}
}

func drawQuad() {
	gl.Begin(gl.QUADS)
	gl.TexCoord2f(0, 1)
	gl.Vertex2f(-1, -1)
	gl.TexCoord2f(1, 1)
	gl.Vertex2f(1, -1)
	gl.TexCoord2f(1, 0)
	gl.Vertex2f(1, 1)
	gl.TexCoord2f(0, 0)
	gl.Vertex2f(-1, 1)
	gl.End()
}

func createTexture(rgba *image.RGBA) (uint32, error) {
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)

	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA,
		int32(rgba.Rect.Dx()), int32(rgba.Rect.Dy()), 0,
		gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba.Pix))
	return tex, nil
}

// fitImage composes img onto a width×height canvas according to the
// scaling mode.
func fitImage(img *image.RGBA, mode render.ScalingMode, width, height int) *image.RGBA {
	if width <= 0 || height <= 0 {
		return img
	}

	var fitted image.Image
	switch mode {
	case render.ScalingModeStretch:
		fitted = imaging.Resize(img, width, height, imaging.Lanczos)
	case render.ScalingModeFitHorizontal:
		fitted = imaging.Resize(img, width, 0, imaging.Lanczos)
	case render.ScalingModeFitVertical:
		fitted = imaging.Resize(img, 0, height, imaging.Lanczos)
	default: // center
		fitted = img
	}

	bounds := fitted.Bounds()
	if bounds.Dx() > width || bounds.Dy() > height {
		fitted = imaging.CropCenter(fitted, min(bounds.Dx(), width), min(bounds.Dy(), height))
	}

	canvas := imaging.PasteCenter(imaging.New(width, height, color.Black), fitted)

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Bounds(), canvas, canvas.Bounds().Min, draw.Src)
	return out
}
