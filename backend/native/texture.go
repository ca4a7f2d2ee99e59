//go:build !nogpu

package native

import (
	"fmt"
	"image"
	"math/bits"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/draw"

	"github.com/gogpu/terrain"
)

// sampledTexture is an RGBA8 texture bound by every draw.
type sampledTexture struct {
	tex hal.Texture

	// view covers every mip level; baseView only level 0.
	view     hal.TextureView
	baseView hal.TextureView

	width, height int
	mips          uint32
}

func (t *sampledTexture) destroy(device hal.Device) {
	if t.baseView != nil {
		device.DestroyTextureView(t.baseView)
	}
	if t.view != nil {
		device.DestroyTextureView(t.view)
	}
	if t.tex != nil {
		device.DestroyTexture(t.tex)
	}
	*t = sampledTexture{}
}

// mipCount returns the length of a full mip chain for a w x h image.
func mipCount(w, h int) uint32 {
	return uint32(bits.Len(uint(max(w, h))))
}

// buildMipChain returns the levels of a full mip chain starting with src.
// Each level halves the previous one (rounding down, at least 1 pixel) with
// bilinear filtering.
func buildMipChain(src *image.RGBA) []*image.RGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	n := int(mipCount(w, h))
	levels := make([]*image.RGBA, 0, n)
	levels = append(levels, src)
	for i := 1; i < n; i++ {
		prev := levels[i-1]
		lw, lh := max(1, w>>i), max(1, h>>i)
		dst := image.NewRGBA(image.Rect(0, 0, lw, lh))
		draw.BiLinear.Scale(dst, dst.Bounds(), prev, prev.Bounds(), draw.Src, nil)
		levels = append(levels, dst)
	}
	return levels
}

// createSampledTexture uploads levels into a new texture. The first level
// defines the size.
func createSampledTexture(device hal.Device, queue hal.Queue, label string, levels []*image.RGBA) (*sampledTexture, error) {
	w, h := levels[0].Bounds().Dx(), levels[0].Bounds().Dy()
	t := &sampledTexture{width: w, height: h, mips: uint32(len(levels))}

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label: label,
		Size: hal.Extent3D{
			Width:              uint32(w),
			Height:             uint32(h),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: t.mips,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s texture: %w", label, err)
	}
	t.tex = tex

	for level, img := range levels {
		lw, lh := img.Bounds().Dx(), img.Bounds().Dy()
		err := queue.WriteTexture(
			&hal.ImageCopyTexture{Texture: tex, MipLevel: uint32(level)},
			img.Pix,
			&hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(img.Stride), RowsPerImage: uint32(lh)},
			&hal.Extent3D{Width: uint32(lw), Height: uint32(lh), DepthOrArrayLayers: 1},
		)
		if err != nil {
			t.destroy(device)
			return nil, fmt.Errorf("write %s level %d: %w", label, level, err)
		}
	}

	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: t.mips,
	})
	if err != nil {
		t.destroy(device)
		return nil, fmt.Errorf("create %s view: %w", label, err)
	}
	t.view = view

	baseView, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_base_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		BaseMipLevel:  0,
		MipLevelCount: 1,
	})
	if err != nil {
		t.destroy(device)
		return nil, fmt.Errorf("create %s base view: %w", label, err)
	}
	t.baseView = baseView
	return t, nil
}

// textureLevels converts imported pixels to the levels of slot.
func textureLevels(slot terrain.TextureSlot, width, height int, pixels []byte) []*image.RGBA {
	img := &image.RGBA{
		Pix:    pixels,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
	if slot == terrain.SlotAtlas {
		return buildMipChain(img)
	}
	return []*image.RGBA{img}
}

// whiteLevels is the 1x1 white image bound before a texture is imported.
func whiteLevels() []*image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	copy(img.Pix, []byte{255, 255, 255, 255})
	return []*image.RGBA{img}
}

// samplerSet holds the three samplers used by the pipelines.
type samplerSet struct {
	// mipped samples the atlas with trilinear filtering.
	mipped hal.Sampler
	// nearest samples the atlas base level without filtering.
	nearest hal.Sampler
	// lightmap is linear and clamped.
	lightmap hal.Sampler
}

func createSamplers(device hal.Device) (samplerSet, error) {
	var s samplerSet
	var err error
	s.mipped, err = device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "terrain_atlas_mipped",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return s, fmt.Errorf("create mipped sampler: %w", err)
	}
	s.nearest, err = device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "terrain_atlas_nearest",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		s.destroy(device)
		return s, fmt.Errorf("create nearest sampler: %w", err)
	}
	s.lightmap, err = device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "terrain_lightmap",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		s.destroy(device)
		return s, fmt.Errorf("create lightmap sampler: %w", err)
	}
	return s, nil
}

func (s *samplerSet) destroy(device hal.Device) {
	for _, sm := range []hal.Sampler{s.mipped, s.nearest, s.lightmap} {
		if sm != nil {
			device.DestroySampler(sm)
		}
	}
	*s = samplerSet{}
}
