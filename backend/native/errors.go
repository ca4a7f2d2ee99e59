//go:build !nogpu

package native

import "errors"

var (
	// ErrNoBackend is returned when the Vulkan HAL backend is not compiled in.
	ErrNoBackend = errors.New("native: vulkan backend not available")

	// ErrNoGPU is returned when no GPU adapter is available.
	ErrNoGPU = errors.New("native: no GPU adapter available")

	// ErrNoHAL is returned when a device provider does not expose HAL
	// device and queue.
	ErrNoHAL = errors.New("native: provider does not expose HAL device and queue")

	// ErrNoFrame is returned by Draw and EndFrame outside BeginFrame/EndFrame.
	ErrNoFrame = errors.New("native: no frame in progress")

	// ErrFrameActive is returned by ReadPixels while a frame is recording.
	ErrFrameActive = errors.New("native: frame in progress")

	// ErrNoReadback is returned by ReadPixels when the last frame was
	// presented instead of rendered offscreen.
	ErrNoReadback = errors.New("native: no offscreen frame to read back")

	// ErrGPUBusy is returned when the previous frame did not complete within
	// the wait timeout.
	ErrGPUBusy = errors.New("native: previous frame still executing")

	// ErrInvalidDimensions is returned when width or height is not positive.
	ErrInvalidDimensions = errors.New("native: invalid dimensions")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("native: backend closed")
)
