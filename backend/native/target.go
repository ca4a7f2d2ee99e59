//go:build !nogpu

package native

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// copyPitchAlignment is the row alignment required by texture-to-buffer
// copies.
const copyPitchAlignment = 256

// renderTargets owns the offscreen color texture, the depth texture and the
// readback buffer. Textures are recreated when the frame size changes.
type renderTargets struct {
	colorFormat gputypes.TextureFormat

	colorTex  hal.Texture
	colorView hal.TextureView
	depthTex  hal.Texture
	depthView hal.TextureView

	colorW, colorH uint32
	depthW, depthH uint32

	readback     hal.Buffer
	readbackSize uint64
}

func alignedRowBytes(width uint32) uint32 {
	return (width*4 + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
}

// ensureDepth creates the depth texture for a width x height frame.
func (rt *renderTargets) ensureDepth(device hal.Device, width, height uint32, retire func(func())) error {
	if rt.depthTex != nil && rt.depthW == width && rt.depthH == height {
		return nil
	}
	rt.retireDepth(device, retire)

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "terrain_depth",
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        depthFormat,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("create depth texture: %w", err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "terrain_depth_view",
		Format:        depthFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		device.DestroyTexture(tex)
		return fmt.Errorf("create depth view: %w", err)
	}
	rt.depthTex, rt.depthView = tex, view
	rt.depthW, rt.depthH = width, height
	return nil
}

// ensureColor creates the offscreen color texture and a readback buffer
// large enough for one frame.
func (rt *renderTargets) ensureColor(device hal.Device, width, height uint32, retire func(func())) error {
	if rt.colorTex == nil || rt.colorW != width || rt.colorH != height {
		rt.retireColor(device, retire)

		tex, err := device.CreateTexture(&hal.TextureDescriptor{
			Label:         "terrain_color",
			Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        rt.colorFormat,
			Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
		})
		if err != nil {
			return fmt.Errorf("create color texture: %w", err)
		}
		view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label:         "terrain_color_view",
			Format:        rt.colorFormat,
			Dimension:     gputypes.TextureViewDimension2D,
			Aspect:        gputypes.TextureAspectAll,
			MipLevelCount: 1,
		})
		if err != nil {
			device.DestroyTexture(tex)
			return fmt.Errorf("create color view: %w", err)
		}
		rt.colorTex, rt.colorView = tex, view
		rt.colorW, rt.colorH = width, height
	}

	need := uint64(alignedRowBytes(width)) * uint64(height)
	if rt.readback != nil && need <= rt.readbackSize {
		return nil
	}
	if old := rt.readback; old != nil {
		retire(func() { device.DestroyBuffer(old) })
	}
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "terrain_readback",
		Size:  need,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		rt.readback, rt.readbackSize = nil, 0
		return fmt.Errorf("create readback buffer: %w", err)
	}
	rt.readback, rt.readbackSize = buf, need
	return nil
}

// recordReadback copies the color texture into the readback buffer.
func (rt *renderTargets) recordReadback(encoder hal.CommandEncoder) {
	// After the pass the texture is a render attachment; copies need it as a
	// copy source.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: rt.colorTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(rt.colorTex, rt.readback, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedRowBytes(rt.colorW), RowsPerImage: rt.colorH},
		TextureBase:  hal.ImageCopyTexture{Texture: rt.colorTex, MipLevel: 0},
		Size:         hal.Extent3D{Width: rt.colorW, Height: rt.colorH, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: rt.colorTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})
}

// readPixels maps the readback buffer into an RGBA image, stripping row
// padding and swizzling BGRA targets. The frame that filled the buffer must
// have completed.
func (rt *renderTargets) readPixels(device hal.Device) (*image.RGBA, error) {
	w, h := rt.colorW, rt.colorH
	pitch := alignedRowBytes(w)
	size := uint64(pitch) * uint64(h)
	m, err := device.MapBuffer(rt.readback, 0, size)
	if err != nil {
		return nil, fmt.Errorf("map readback buffer: %w", err)
	}
	raw := unsafe.Slice((*byte)(m.Ptr), size) //nolint:gosec // mapped readback range
	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	rowBytes := int(w) * 4
	for y := 0; y < int(h); y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+rowBytes], raw[y*int(pitch):])
	}
	if err := device.UnmapBuffer(rt.readback); err != nil {
		return nil, fmt.Errorf("unmap readback buffer: %w", err)
	}
	if rt.colorFormat == gputypes.TextureFormatBGRA8Unorm {
		swizzleBGRA(img.Pix)
	}
	return img, nil
}

// swizzleBGRA swaps the red and blue channels in place.
func swizzleBGRA(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}

func (rt *renderTargets) retireColor(device hal.Device, retire func(func())) {
	if rt.colorTex == nil {
		return
	}
	tex, view := rt.colorTex, rt.colorView
	retire(func() {
		device.DestroyTextureView(view)
		device.DestroyTexture(tex)
	})
	rt.colorTex, rt.colorView = nil, nil
	rt.colorW, rt.colorH = 0, 0
}

func (rt *renderTargets) retireDepth(device hal.Device, retire func(func())) {
	if rt.depthTex == nil {
		return
	}
	tex, view := rt.depthTex, rt.depthView
	retire(func() {
		device.DestroyTextureView(view)
		device.DestroyTexture(tex)
	})
	rt.depthTex, rt.depthView = nil, nil
	rt.depthW, rt.depthH = 0, 0
}

func (rt *renderTargets) destroy(device hal.Device) {
	now := func(f func()) { f() }
	rt.retireColor(device, now)
	rt.retireDepth(device, now)
	if rt.readback != nil {
		device.DestroyBuffer(rt.readback)
		rt.readback, rt.readbackSize = nil, 0
	}
}
