// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package batch

import (
	"encoding/binary"
	"errors"
	"math"
)

// Vertex layout shared with the shaders. Every vertex is 32 bytes and the
// chunk tag occupies the reserved uint16 at byte 28.
const (
	VertexStride = 32
	TagOffset    = 28

	// OffsetStride is the size of one offset table row: x, y, z, 0 as float32.
	OffsetStride = 16

	// MaxChunks is the hard per-category chunk cap.
	MaxChunks = 8192

	// MaxChunkVertices bounds one chunk at 16384 quads.
	MaxChunkVertices = 65536
)

// minStagingBytes is the first allocation of a staging region.
const minStagingBytes = 64 * 1024

// minIndices is the first allocation of an index buffer.
const minIndices = 6 * 1024

var (
	// ErrCapacity is returned when the chunk arena is full.
	ErrCapacity = errors.New("batch: chunk capacity reached")

	// ErrVertexCount is returned for counts that are not a positive multiple
	// of 4 or exceed MaxChunkVertices.
	ErrVertexCount = errors.New("batch: invalid vertex count")

	// ErrStride is returned when the payload length is not count*VertexStride.
	ErrStride = errors.New("batch: vertex payload does not match stride")

	// ErrNotCleared is returned by Append before Clear ran this frame.
	ErrNotCleared = errors.New("batch: append before clear")
)

// ChunkRecord locates one chunk inside its category's staging region.
// ID is the dense per-frame ordinal and doubles as the record index.
type ChunkRecord struct {
	ID           uint16
	VertexOffset uint32
	VertexCount  uint32
	WorldOffset  [3]float32
}

// State holds one render category's frame-scoped batch: the packed vertex
// staging bytes, the chunk arena, the offset table and the global index
// buffer. Buffers are retained across frames and only grow; Clear resets
// lengths to zero.
//
// State is not safe for concurrent use.
type State struct {
	staging []byte
	records []ChunkRecord
	offsets []byte
	indices []uint32

	maxChunks   int
	maxVertices uint32
	cleared     bool
	indexDirty  bool
	growths     int
}

// NewState creates a State with the given chunk cap and initial staging
// capacity in bytes. Non-positive values select the defaults.
func NewState(maxChunks, stagingBytes int) *State {
	if maxChunks <= 0 || maxChunks > MaxChunks {
		maxChunks = MaxChunks
	}
	if stagingBytes <= 0 {
		stagingBytes = minStagingBytes
	}
	return &State{
		staging:   make([]byte, 0, stagingBytes),
		records:   make([]ChunkRecord, 0, maxChunks),
		offsets:   make([]byte, 0, maxChunks*OffsetStride),
		maxChunks: maxChunks,
	}
}

// Clear drops every chunk of the frame. Capacities are kept. Clear is
// idempotent and enables Append until the next Reset.
func (s *State) Clear() {
	s.staging = s.staging[:0]
	s.records = s.records[:0]
	s.offsets = s.offsets[:0]
	s.indices = s.indices[:0]
	s.maxVertices = 0
	s.indexDirty = false
	s.cleared = true
}

// Reset marks the end of a frame. The next Append must be preceded by Clear.
// Contents stay readable until then.
func (s *State) Reset() {
	s.cleared = false
}

// Cleared reports whether Clear ran since the last Reset.
func (s *State) Cleared() bool { return s.cleared }

// Append copies one chunk's vertices into the staging region, stamps the
// chunk ordinal into every vertex tag, and records its world offset.
// On error nothing is modified.
func (s *State) Append(vertices []byte, vertexCount int, wx, wy, wz float32) (ChunkRecord, error) {
	if !s.cleared {
		return ChunkRecord{}, ErrNotCleared
	}
	if vertexCount <= 0 || vertexCount%4 != 0 || vertexCount > MaxChunkVertices {
		return ChunkRecord{}, ErrVertexCount
	}
	if len(vertices) != vertexCount*VertexStride {
		return ChunkRecord{}, ErrStride
	}
	if len(s.records) >= s.maxChunks {
		return ChunkRecord{}, ErrCapacity
	}

	id := uint16(len(s.records))
	base := len(s.staging)
	s.staging = growBytes(s.staging, len(vertices), &s.growths)
	dst := s.staging[base : base+len(vertices)]
	copy(dst, vertices)
	for off := TagOffset; off < len(dst); off += VertexStride {
		binary.LittleEndian.PutUint16(dst[off:], id)
	}

	rec := ChunkRecord{
		ID:           id,
		VertexOffset: uint32(base / VertexStride),
		VertexCount:  uint32(vertexCount),
		WorldOffset:  [3]float32{wx, wy, wz},
	}
	s.records = append(s.records, rec)

	row := len(s.offsets)
	s.offsets = s.offsets[:row+OffsetStride]
	binary.LittleEndian.PutUint32(s.offsets[row:], math.Float32bits(wx))
	binary.LittleEndian.PutUint32(s.offsets[row+4:], math.Float32bits(wy))
	binary.LittleEndian.PutUint32(s.offsets[row+8:], math.Float32bits(wz))
	binary.LittleEndian.PutUint32(s.offsets[row+12:], 0)

	if rec.VertexCount > s.maxVertices {
		s.maxVertices = rec.VertexCount
	}
	s.indexDirty = true
	return rec, nil
}

// BuildIndices rebuilds the global index buffer from the chunk records and
// returns it. The result spans the whole staging region with no padding.
func (s *State) BuildIndices() []uint32 {
	if !s.indexDirty {
		return s.indices
	}
	need := 0
	for i := range s.records {
		need += int(s.records[i].VertexCount/4) * 6
	}
	if need > cap(s.indices) {
		s.indices = make([]uint32, 0, growCap(cap(s.indices), need, minIndices))
		s.growths++
	}
	s.indices = s.indices[:0]
	for i := range s.records {
		s.indices = AppendQuadIndices(s.indices, s.records[i].VertexOffset, s.records[i].VertexCount)
	}
	s.indexDirty = false
	return s.indices
}

// AppendQuadIndices appends the two-triangle fan of every quad in the
// vertex range [v0, v0+n) to dst.
func AppendQuadIndices(dst []uint32, v0, n uint32) []uint32 {
	for q := uint32(0); q < n/4; q++ {
		b := v0 + 4*q
		dst = append(dst, b, b+1, b+2, b, b+2, b+3)
	}
	return dst
}

// Records returns the frame's chunk records in ID order.
func (s *State) Records() []ChunkRecord { return s.records }

// Vertices returns the packed staging bytes of the frame.
func (s *State) Vertices() []byte { return s.staging }

// Offsets returns the offset table, OffsetStride bytes per chunk.
func (s *State) Offsets() []byte { return s.offsets }

// Indices returns the last built index buffer.
func (s *State) Indices() []uint32 { return s.indices }

// ChunkCount returns the number of chunks appended this frame.
func (s *State) ChunkCount() int { return len(s.records) }

// VertexCount returns the number of packed vertices.
func (s *State) VertexCount() int { return len(s.staging) / VertexStride }

// UsedBytes returns the staging bytes in use.
func (s *State) UsedBytes() int { return len(s.staging) }

// CapacityBytes returns the staging capacity.
func (s *State) CapacityBytes() int { return cap(s.staging) }

// IndexCapacity returns the index buffer capacity in indices.
func (s *State) IndexCapacity() int { return cap(s.indices) }

// MaxChunkVertexCount returns the largest chunk appended this frame.
func (s *State) MaxChunkVertexCount() uint32 { return s.maxVertices }

// MaxChunkCount returns the chunk cap.
func (s *State) MaxChunkCount() int { return s.maxChunks }

// Growths returns how many times a buffer was reallocated.
func (s *State) Growths() int { return s.growths }

// growBytes extends b by n bytes, reallocating to at least twice the
// capacity when it does not fit.
func growBytes(b []byte, n int, growths *int) []byte {
	need := len(b) + n
	if need <= cap(b) {
		return b[:need]
	}
	nb := make([]byte, need, growCap(cap(b), need, minStagingBytes))
	copy(nb, b)
	*growths++
	return nb
}

func growCap(old, need, floor int) int {
	c := max(old*2, floor)
	for c < need {
		c *= 2
	}
	return c
}
