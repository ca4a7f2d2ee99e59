//go:build !nogpu

package native

import (
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/terrain"
)

func TestMipCount(t *testing.T) {
	tests := []struct {
		w, h int
		want uint32
	}{
		{1, 1, 1},
		{2, 2, 2},
		{16, 16, 5},
		{256, 128, 9},
		{100, 3, 7},
	}
	for _, tt := range tests {
		if got := mipCount(tt.w, tt.h); got != tt.want {
			t.Errorf("mipCount(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestBuildMipChain(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			src.SetRGBA(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	levels := buildMipChain(src)
	if len(levels) != 5 {
		t.Fatalf("levels = %d, want 5", len(levels))
	}
	if levels[0] != src {
		t.Error("level 0 must be the source image")
	}
	wantSizes := [][2]int{{16, 8}, {8, 4}, {4, 2}, {2, 1}, {1, 1}}
	for i, l := range levels {
		b := l.Bounds()
		if b.Dx() != wantSizes[i][0] || b.Dy() != wantSizes[i][1] {
			t.Errorf("level %d = %dx%d, want %dx%d", i, b.Dx(), b.Dy(), wantSizes[i][0], wantSizes[i][1])
		}
	}
	// A uniform image stays uniform at every level.
	last := levels[len(levels)-1].RGBAAt(0, 0)
	if diff(last.R, 200) > 1 || diff(last.G, 100) > 1 || diff(last.B, 50) > 1 || last.A != 255 {
		t.Errorf("smallest level = %v, want ~{200 100 50 255}", last)
	}
}

func diff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

func TestTextureLevels(t *testing.T) {
	pixels := make([]byte, 8*8*4)
	if got := len(textureLevels(terrain.SlotAtlas, 8, 8, pixels)); got != 4 {
		t.Errorf("atlas levels = %d, want 4", got)
	}
	if got := len(textureLevels(terrain.SlotLightmap, 8, 8, pixels)); got != 1 {
		t.Errorf("lightmap levels = %d, want 1", got)
	}
}

func TestSwizzleBGRA(t *testing.T) {
	pix := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	swizzleBGRA(pix)
	want := []byte{3, 2, 1, 4, 7, 6, 5, 8}
	for i := range want {
		if pix[i] != want[i] {
			t.Fatalf("swizzleBGRA = %v, want %v", pix, want)
		}
	}
}

func TestAlignedRowBytes(t *testing.T) {
	tests := []struct {
		width uint32
		want  uint32
	}{
		{1, 256},
		{64, 256},
		{65, 512},
		{800, 3328},
	}
	for _, tt := range tests {
		if got := alignedRowBytes(tt.width); got != tt.want {
			t.Errorf("alignedRowBytes(%d) = %d, want %d", tt.width, got, tt.want)
		}
	}
}
