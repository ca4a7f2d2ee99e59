package terrain

import (
	"encoding/binary"
	"math"
)

// UniformSize is the encoded size of FrameParams.
const UniformSize = 112

// DefaultFogColor is the sky color terrain fades into.
var DefaultFogColor = [4]float32{0.7, 0.8, 1.0, 1.0}

// FrameParams are the per-draw inputs of Render.
type FrameParams struct {
	// ViewProj is the column-major view-projection matrix.
	ViewProj [16]float32

	// FogStart and FogEnd are view distances where linear fog begins and
	// becomes opaque.
	FogStart, FogEnd float32

	FogColor [4]float32

	// AlphaThreshold discards texels whose alpha is below it. Zero disables
	// the test.
	AlphaThreshold float32
}

// DefaultFrameParams returns parameters for cat with fog derived from the
// render distance in chunks. Fog ends at the edge of the loaded area,
// renderDistance*16 units away, and starts 32 units before it.
func DefaultFrameParams(cat Category, viewProj [16]float32, renderDistance int) FrameParams {
	end := float32(renderDistance * 16)
	return FrameParams{
		ViewProj:       viewProj,
		FogStart:       end - 32,
		FogEnd:         end,
		FogColor:       DefaultFogColor,
		AlphaThreshold: cat.AlphaThreshold(),
	}
}

// AppendUniforms appends the GPU uniform block of p to dst:
//
//	0   view_proj        mat4x4<f32>
//	64  fog_start        f32
//	68  fog_end          f32
//	72  pad              2 x f32
//	80  fog_color        vec4<f32>
//	96  alpha_threshold  f32
//	100 pad              3 x f32
func (p FrameParams) AppendUniforms(dst []byte) []byte {
	var b [UniformSize]byte
	for i, f := range p.ViewProj {
		putF32(b[i*4:], f)
	}
	putF32(b[64:], p.FogStart)
	putF32(b[68:], p.FogEnd)
	for i, f := range p.FogColor {
		putF32(b[80+i*4:], f)
	}
	putF32(b[96:], p.AlphaThreshold)
	return append(dst, b[:]...)
}

func putF32(b []byte, f float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(f))
}
