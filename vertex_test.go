package terrain

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestVertexEncodingLayout(t *testing.T) {
	v := Vertex{
		Position: [3]float32{1.5, -2, 3},
		Color:    [4]uint8{10, 20, 30, 40},
		UV:       [2]float32{0.25, 0.75},
		Light:    [2]int16{-8, 240},
	}
	b := v.AppendTo(nil)
	if len(b) != VertexSize {
		t.Fatalf("len = %d, want %d", len(b), VertexSize)
	}
	f32 := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[off:])) }
	if f32(0) != 1.5 || f32(4) != -2 || f32(8) != 3 {
		t.Errorf("position = %v %v %v", f32(0), f32(4), f32(8))
	}
	if b[12] != 10 || b[13] != 20 || b[14] != 30 || b[15] != 40 {
		t.Errorf("color = %v", b[12:16])
	}
	if f32(16) != 0.25 || f32(20) != 0.75 {
		t.Errorf("uv = %v %v", f32(16), f32(20))
	}
	if int16(binary.LittleEndian.Uint16(b[24:])) != -8 || int16(binary.LittleEndian.Uint16(b[26:])) != 240 {
		t.Errorf("light = %v", b[24:28])
	}
	for i := TagOffset; i < VertexSize; i++ {
		if b[i] != 0 {
			t.Errorf("byte %d = %d, reserved bytes must be zero", i, b[i])
		}
	}
}

func TestDecodeVertexRoundTripWithTag(t *testing.T) {
	q := Quad([3]float32{0, 0, 0}, [3]float32{1, 0, 0}, [3]float32{1, 1, 0}, [3]float32{0, 1, 0}, [4]uint8{1, 2, 3, 4})
	data := EncodeVertices(nil, q[:])
	binary.LittleEndian.PutUint16(data[2*VertexSize+TagOffset:], 77)

	v, tag := DecodeVertex(data, 2)
	if v != q[2] {
		t.Errorf("decoded %+v, want %+v", v, q[2])
	}
	if tag != 77 {
		t.Errorf("tag = %d", tag)
	}
}

func TestAppendStampsTagsThroughRenderer(t *testing.T) {
	r := New(&fakeBackend{})
	r.Clear(Opaque)
	for i := 0; i < 3; i++ {
		if err := r.Append(Opaque, quadChunk(2, [4]uint8{}), 8, 0, 0, 0); err != nil {
			t.Fatal(err)
		}
	}
	data := r.states[Opaque].Vertices()
	for i := 0; i < 24; i++ {
		if _, tag := DecodeVertex(data, i); int(tag) != i/8 {
			t.Fatalf("vertex %d tag = %d, want %d", i, tag, i/8)
		}
	}
}

func TestQuadUVs(t *testing.T) {
	q := Quad([3]float32{}, [3]float32{}, [3]float32{}, [3]float32{}, [4]uint8{})
	want := [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	for i := range q {
		if q[i].UV != want[i] {
			t.Errorf("corner %d uv = %v", i, q[i].UV)
		}
		if q[i].Light != [2]int16{FullLight, FullLight} {
			t.Errorf("corner %d light = %v", i, q[i].Light)
		}
	}
}
