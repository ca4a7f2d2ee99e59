//go:build !nogpu

package native

import (
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Surface is a host-owned presentation surface. The host creates and
// configures it; the backend only draws into the acquired view.
type Surface interface {
	// AcquireView returns the view of the next swapchain image sized
	// width x height.
	AcquireView(width, height int) (hal.TextureView, error)

	// Present schedules the acquired image for display.
	Present() error

	// Discard releases the acquired image without presenting it. It is
	// called when the frame fails after AcquireView succeeded.
	Discard()
}

// Option configures a Backend.
type Option func(*options)

type options struct {
	surface     Surface
	colorFormat gputypes.TextureFormat
	clearColor  gputypes.Color
	waitTimeout time.Duration
}

func defaultOptions() options {
	return options{
		colorFormat: gputypes.TextureFormatBGRA8Unorm,
		clearColor:  gputypes.Color{R: 0.7, G: 0.8, B: 1.0, A: 1.0},
		waitTimeout: 5 * time.Second,
	}
}

// WithSurface sets the surface used by frames that present.
func WithSurface(s Surface) Option {
	return func(o *options) {
		o.surface = s
	}
}

// WithColorFormat sets the color target format. It must match the surface
// format when presenting. BGRA8Unorm and RGBA8Unorm are supported.
func WithColorFormat(f gputypes.TextureFormat) Option {
	return func(o *options) {
		if f != gputypes.TextureFormatUndefined {
			o.colorFormat = f
		}
	}
}

// WithClearColor sets the color the target is cleared to at BeginFrame.
func WithClearColor(r, g, b, a float64) Option {
	return func(o *options) {
		o.clearColor = gputypes.Color{R: r, G: g, B: b, A: a}
	}
}

// WithWaitTimeout bounds how long BeginFrame waits for the previous frame.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.waitTimeout = d
		}
	}
}
