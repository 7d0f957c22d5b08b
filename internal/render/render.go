// Package render defines the contract between the surface scheduler and
// the GPU backend. The scheduler only ever talks to these interfaces; the
// concrete OpenGL implementation lives in internal/glrenderer.
package render

import (
	"image"
	"time"
)

type ScalingMode string

const (
	ScalingModeCenter        ScalingMode = "center"
	ScalingModeStretch       ScalingMode = "stretched"
	ScalingModeFitHorizontal ScalingMode = "horizontal"
	ScalingModeFitVertical   ScalingMode = "vertical"
)

type EasingMode string

const (
	EasingLinear    EasingMode = "linear"
	EasingEaseIn    EasingMode = "ease-in"
	EasingEaseOut   EasingMode = "ease-out"
	EasingEaseInOut EasingMode = "ease-in-out"
)

// Renderer uploads decoded wallpapers and draws them with an entrance
// animation. Implementations may assume the surface's GPU context is
// current for every call.
type Renderer interface {
	// LoadTexture uploads a freshly decoded image as the incoming
	// wallpaper, fitted according to mode.
	LoadTexture(img *image.RGBA, mode ScalingMode) error
	// StartAnimation (re)starts the entrance animation at now.
	StartAnimation(now time.Time)
	// TimeStarted reports when the current animation began; the zero
	// time means no animation has ever been started.
	TimeStarted() time.Time
	// Draw renders one frame at now.
	Draw(now time.Time) error
	// IsDrawingAnimation reports whether the entrance animation is
	// still in progress at now.
	IsDrawingAnimation(now time.Time) bool
	// FrameInterval is the minimum spacing between animation frames;
	// zero or negative means uncapped.
	FrameInterval() time.Duration
	// Resize adjusts the viewport to the surface's buffer size.
	Resize(width, height int) error
	// ClearAfterDraw releases per-frame resources after Draw.
	ClearAfterDraw() error
	// Cleanup releases all GPU resources.
	Cleanup()
}

// Context owns a GPU context for one surface. The event loop serializes
// access: MakeCurrent before any texture or draw call, SwapBuffers to
// commit the frame.
type Context interface {
	MakeCurrent() error
	Resize(width, height int)
	SwapBuffers() error
}
