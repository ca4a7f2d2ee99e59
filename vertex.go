package terrain

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/terrain/internal/batch"
)

// Vertex layout constants.
const (
	// VertexSize is the size of one encoded Vertex in bytes.
	VertexSize = batch.VertexStride

	// TagOffset is the byte offset of the reserved chunk tag.
	TagOffset = batch.TagOffset

	// MaxChunks is the per-category chunk cap of one frame.
	MaxChunks = batch.MaxChunks

	// MaxChunkVertices is the largest vertex count of a single chunk.
	MaxChunkVertices = batch.MaxChunkVertices
)

// FullLight is the lighting coordinate of a fully lit vertex.
const FullLight int16 = 240

// Vertex is one corner of a terrain quad. Vertices are encoded into 32
// little-endian bytes:
//
//	offset 0   Position  3 x float32, relative to the chunk origin
//	offset 12  Color     4 x uint8, normalized in the shader
//	offset 16  UV        2 x float32, atlas coordinate
//	offset 24  Light     2 x int16, lightmap coordinate, rescaled (v+8)/256
//	offset 28  tag       uint16, reserved, written by Append
//	offset 30  padding   2 bytes
//
// Producers never set the tag; Append overwrites it with the chunk's
// per-frame ordinal.
type Vertex struct {
	Position [3]float32
	Color    [4]uint8
	UV       [2]float32
	Light    [2]int16
}

// AppendTo appends the 32-byte encoding of v to dst.
func (v Vertex) AppendTo(dst []byte) []byte {
	var b [VertexSize]byte
	for i, p := range v.Position {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(p))
	}
	copy(b[12:16], v.Color[:])
	binary.LittleEndian.PutUint32(b[16:], math.Float32bits(v.UV[0]))
	binary.LittleEndian.PutUint32(b[20:], math.Float32bits(v.UV[1]))
	binary.LittleEndian.PutUint16(b[24:], uint16(v.Light[0]))
	binary.LittleEndian.PutUint16(b[26:], uint16(v.Light[1]))
	return append(dst, b[:]...)
}

// EncodeVertices appends the encoding of every vertex in vs to dst.
func EncodeVertices(dst []byte, vs []Vertex) []byte {
	dst = growSlice(dst, len(vs)*VertexSize)
	for i := range vs {
		dst = vs[i].AppendTo(dst)
	}
	return dst
}

// DecodeVertex decodes the vertex at index i of an encoded buffer and
// returns it with its chunk tag.
func DecodeVertex(data []byte, i int) (Vertex, uint16) {
	b := data[i*VertexSize : (i+1)*VertexSize]
	var v Vertex
	for c := range v.Position {
		v.Position[c] = math.Float32frombits(binary.LittleEndian.Uint32(b[c*4:]))
	}
	copy(v.Color[:], b[12:16])
	v.UV[0] = math.Float32frombits(binary.LittleEndian.Uint32(b[16:]))
	v.UV[1] = math.Float32frombits(binary.LittleEndian.Uint32(b[20:]))
	v.Light[0] = int16(binary.LittleEndian.Uint16(b[24:]))
	v.Light[1] = int16(binary.LittleEndian.Uint16(b[26:]))
	return v, binary.LittleEndian.Uint16(b[TagOffset:])
}

// Quad returns the four vertices of a quad with corners p0..p3 in
// counter-clockwise order. UVs span the unit square and the quad is fully
// lit.
func Quad(p0, p1, p2, p3 [3]float32, color [4]uint8) [4]Vertex {
	light := [2]int16{FullLight, FullLight}
	return [4]Vertex{
		{Position: p0, Color: color, UV: [2]float32{0, 0}, Light: light},
		{Position: p1, Color: color, UV: [2]float32{1, 0}, Light: light},
		{Position: p2, Color: color, UV: [2]float32{1, 1}, Light: light},
		{Position: p3, Color: color, UV: [2]float32{0, 1}, Light: light},
	}
}

func growSlice(b []byte, n int) []byte {
	if cap(b)-len(b) >= n {
		return b
	}
	nb := make([]byte, len(b), len(b)+n)
	copy(nb, b)
	return nb
}
