//go:build !nogpu

// Package native implements terrain.Backend on gogpu/wgpu's HAL.
//
// A Backend renders each terrain category with one render pipeline built
// from a single WGSL shader. The vertex shader reads the chunk tag stamped
// into every vertex and adds that chunk's world offset from a read-only
// storage buffer, so one indexed draw covers all chunks of a category.
//
// # Devices
//
// OpenVulkan opens its own Vulkan device. New and NewFromProvider draw on a
// device owned by the host, for example a gogpu application sharing its
// device through gpucontext.DeviceProvider. Tests use the hal/noop device.
//
// # Frames
//
// BeginFrame waits for the previous frame's submission to complete, acquires
// either the host Surface or an offscreen color target, and opens a render
// pass that clears color and depth. Draw uploads the category's batch and
// records its draw. EndFrame submits and presents. GPU completion is
// observed at the next BeginFrame or Poll; the completion callback then
// receives the pass duration measured with timestamp queries. Devices
// without timestamp queries report the host time from submit to observed
// completion instead.
//
// Offscreen frames are copied into a readback buffer; ReadPixels returns the
// last one as RGBA.
package native
