//go:build !nogpu

package native

import (
	"encoding/binary"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/gogpu/terrain"
	"github.com/gogpu/terrain/internal/batch"
)

var identity = [16]float32{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// openVulkanOrSkip opens a Vulkan backend or skips the test.
func openVulkanOrSkip(t *testing.T) *Backend {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping GPU test in short mode")
	}
	b, err := OpenVulkan(WithClearColor(0, 0, 0, 1))
	if err != nil {
		t.Skipf("GPU not available: %v", err)
	}
	return b
}

func squareChunk(size float32, c [4]uint8) []byte {
	q := terrain.Quad([3]float32{0, 0, 0}, [3]float32{size, 0, 0}, [3]float32{size, size, 0}, [3]float32{0, size, 0}, c)
	return terrain.EncodeVertices(nil, q[:])
}

// categoryDraw is one draw of a frame.
type categoryDraw struct {
	cat terrain.Category
	st  *batch.State
}

// renderDraws records draws into one offscreen frame and reads it back.
// Alpha testing is disabled so that every category shades like Opaque.
func renderDraws(t *testing.T, b *Backend, w, h int, draws ...categoryDraw) *image.RGBA {
	t.Helper()
	if err := b.BeginFrame(w, h, false); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	for _, d := range draws {
		bt := terrain.Batch{
			Vertices:    d.st.Vertices(),
			Offsets:     d.st.Offsets(),
			Indices:     d.st.BuildIndices(),
			Chunks:      d.st.ChunkCount(),
			VertexCount: d.st.VertexCount(),
		}
		p := terrain.DefaultFrameParams(d.cat, identity, 8)
		p.AlphaThreshold = 0
		if err := b.Draw(d.cat, bt, p); err != nil {
			t.Fatalf("Draw(%s): %v", d.cat, err)
		}
	}
	if err := b.EndFrame(nil); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	img, err := b.ReadPixels()
	if err != nil {
		t.Fatalf("ReadPixels: %v", err)
	}
	return img
}

func singleChunk(t *testing.T, data []byte, n int, wx, wy, wz float32) *batch.State {
	t.Helper()
	st := batch.NewState(batch.MaxChunks, 0)
	st.Clear()
	if _, err := st.Append(data, n, wx, wy, wz); err != nil {
		t.Fatal(err)
	}
	return st
}

func assertFramesMatch(t *testing.T, got, want *image.RGBA) {
	t.Helper()
	b := got.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g, r := got.RGBAAt(x, y), want.RGBAAt(x, y)
			if !within(g, r, 1) {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, g, r)
			}
		}
	}
}

// TestBatchedMatchesPerChunkDraws renders two chunks with one batched draw
// and with one draw per chunk. Opaque and AlphaMipped share depth and blend
// state, so the per-chunk frame issues one draw in each. The frames must
// match within one 8-bit step.
func TestBatchedMatchesPerChunkDraws(t *testing.T) {
	b := openVulkanOrSkip(t)
	defer b.Close()

	red := [4]uint8{255, 0, 0, 255}
	green := [4]uint8{0, 255, 0, 255}
	const w, h = 128, 64

	batched := batch.NewState(batch.MaxChunks, 0)
	batched.Clear()
	if _, err := batched.Append(squareChunk(0.8, red), 4, -0.9, -0.4, 0.5); err != nil {
		t.Fatal(err)
	}
	if _, err := batched.Append(squareChunk(0.8, green), 4, 0.1, -0.4, 0.5); err != nil {
		t.Fatal(err)
	}
	got := renderDraws(t, b, w, h, categoryDraw{terrain.Opaque, batched})

	perChunk := renderDraws(t, b, w, h,
		categoryDraw{terrain.Opaque, singleChunk(t, squareChunk(0.8, red), 4, -0.9, -0.4, 0.5)},
		categoryDraw{terrain.AlphaMipped, singleChunk(t, squareChunk(0.8, green), 4, 0.1, -0.4, 0.5)},
	)
	assertFramesMatch(t, got, perChunk)

	// Offsets baked into positions give the same frame as offset rows.
	var data []byte
	for _, q := range [][4]terrain.Vertex{
		terrain.Quad([3]float32{-0.9, -0.4, 0.5}, [3]float32{-0.1, -0.4, 0.5}, [3]float32{-0.1, 0.4, 0.5}, [3]float32{-0.9, 0.4, 0.5}, red),
		terrain.Quad([3]float32{0.1, -0.4, 0.5}, [3]float32{0.9, -0.4, 0.5}, [3]float32{0.9, 0.4, 0.5}, [3]float32{0.1, 0.4, 0.5}, green),
	} {
		data = terrain.EncodeVertices(data, q[:])
	}
	baked := renderDraws(t, b, w, h, categoryDraw{terrain.Opaque, singleChunk(t, data, 8, 0, 0, 0)})
	assertFramesMatch(t, got, baked)

	// The chunks land in disjoint halves.
	left, right := got.RGBAAt(w/4, h/2), got.RGBAAt(3*w/4, h/2)
	if left.R < 200 || left.G > 20 {
		t.Errorf("left chunk pixel = %v, want red", left)
	}
	if right.G < 200 || right.R > 20 {
		t.Errorf("right chunk pixel = %v, want green", right)
	}
	if c := got.RGBAAt(w/2, h/2); c.R > 20 || c.G > 20 {
		t.Errorf("gap pixel = %v, want clear color", c)
	}
}

func within(a, b color.RGBA, tol uint8) bool {
	return diff(a.R, b.R) <= tol && diff(a.G, b.G) <= tol && diff(a.B, b.B) <= tol && diff(a.A, b.A) <= tol
}

// worldPosition resolves staged vertex i the way vs_main does: the chunk
// tag selects an offset table row that is added to the local position.
func worldPosition(staged, offsets []byte, i int) [3]float32 {
	v, tag := terrain.DecodeVertex(staged, i)
	row := offsets[int(tag)*batch.OffsetStride:]
	var w [3]float32
	for c := range w {
		w[c] = v.Position[c] + math.Float32frombits(binary.LittleEndian.Uint32(row[c*4:]))
	}
	return w
}

// stairQuads encodes n quads climbing along X and Y.
func stairQuads(n int) []byte {
	var data []byte
	for i := 0; i < n; i++ {
		x, y := float32(i), float32(i)*0.5
		q := terrain.Quad([3]float32{x, y, 0}, [3]float32{x + 1, y, 0}, [3]float32{x + 1, y + 1, 1}, [3]float32{x, y + 1, 1}, [4]uint8{255, 255, 255, 255})
		data = terrain.EncodeVertices(data, q[:])
	}
	return data
}

// TestBatchedPositionsMatchPerChunk resolves every index of a batched
// category through the tag and offset table and compares the triangle
// corners with per-chunk draws whose offsets are baked into the positions.
// It needs no GPU.
func TestBatchedPositionsMatchPerChunk(t *testing.T) {
	chunks := []struct {
		quads  int
		origin [3]float32
	}{
		{1, [3]float32{-0.9, -0.4, 0.5}},
		{3, [3]float32{16, 0, -32}},
		{2, [3]float32{0, 64, 0}},
		{5, [3]float32{-48, 3.5, 1024}},
	}

	batched := batch.NewState(batch.MaxChunks, 0)
	batched.Clear()
	var want [][3]float32
	for _, c := range chunks {
		data := stairQuads(c.quads)
		if _, err := batched.Append(data, c.quads*4, c.origin[0], c.origin[1], c.origin[2]); err != nil {
			t.Fatal(err)
		}

		var baked []byte
		for i := 0; i < c.quads*4; i++ {
			v, _ := terrain.DecodeVertex(data, i)
			for k := range v.Position {
				v.Position[k] += c.origin[k]
			}
			baked = v.AppendTo(baked)
		}
		ref := singleChunk(t, baked, c.quads*4, 0, 0, 0)
		for _, idx := range ref.BuildIndices() {
			want = append(want, worldPosition(ref.Vertices(), ref.Offsets(), int(idx)))
		}
	}

	indices := batched.BuildIndices()
	if len(indices) != len(want) {
		t.Fatalf("batched draw has %d indices, per-chunk draws %d", len(indices), len(want))
	}
	for i, idx := range indices {
		got := worldPosition(batched.Vertices(), batched.Offsets(), int(idx))
		if got != want[i] {
			t.Fatalf("index %d (vertex %d) at %v, per-chunk draw at %v", i, idx, got, want[i])
		}
	}
}
