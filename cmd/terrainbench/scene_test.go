package main

import (
	"testing"

	"github.com/gogpu/terrain"
)

func TestBuildChunk(t *testing.T) {
	m := buildChunk(2, 3)
	if m.origin != [3]float32{32, 0, 48} {
		t.Errorf("origin = %v", m.origin)
	}
	if m.vertices[terrain.Opaque] < chunkSize*chunkSize*4 {
		t.Errorf("opaque vertices = %d, want at least one quad per column", m.vertices[terrain.Opaque])
	}
	for _, cat := range terrain.Categories() {
		n := m.vertices[cat]
		if n%4 != 0 || n > terrain.MaxChunkVertices {
			t.Errorf("%s vertices = %d", cat, n)
		}
		if len(m.data[cat]) != n*terrain.VertexSize {
			t.Errorf("%s bytes = %d, want %d", cat, len(m.data[cat]), n*terrain.VertexSize)
		}
	}
}

func TestAppendSceneFitsRenderer(t *testing.T) {
	r := terrain.New(nopBackend{})
	meshes := buildScene(9)
	for _, cat := range terrain.Categories() {
		r.Clear(cat)
	}
	appendScene(r, meshes, [3]float32{0, 30, 0})
	if s := r.Stats(); s.DroppedChunks != 0 {
		t.Errorf("dropped %d chunks", s.DroppedChunks)
	}
	if got := r.ChunkCount(terrain.Opaque); got != 9 {
		t.Errorf("opaque chunks = %d, want 9", got)
	}
}

func TestBuildAtlas(t *testing.T) {
	img := buildAtlas(0)
	if img.Rect.Dx() != atlasTiles*tilePixels || img.Rect.Dy() != atlasTiles*tilePixels {
		t.Fatalf("atlas size = %v", img.Rect)
	}
	// Flower tiles carry cut-out texels.
	fx, fy := (tileFlower%atlasTiles)*tilePixels, (tileFlower/atlasTiles)*tilePixels
	if img.RGBAAt(fx, fy).A != 0 {
		t.Error("flower tile corner should be transparent")
	}
}

type nopBackend struct{}

func (nopBackend) BeginFrame(int, int, bool) error                              { return nil }
func (nopBackend) Draw(terrain.Category, terrain.Batch, terrain.FrameParams) error { return nil }
func (nopBackend) EndFrame(terrain.CompletionFunc) error                         { return nil }
func (nopBackend) ImportTexture(terrain.TextureSlot, int, int, []byte) error     { return nil }
func (nopBackend) Close()                                                        {}
