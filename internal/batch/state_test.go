// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package batch

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// makeChunk builds n vertices whose bytes depend on seed. The tag field is
// filled with 0xFFFF so tests can observe stamping.
func makeChunk(n int, seed byte) []byte {
	b := make([]byte, n*VertexStride)
	for i := range b {
		b[i] = seed + byte(i)
	}
	for off := TagOffset; off < len(b); off += VertexStride {
		binary.LittleEndian.PutUint16(b[off:], 0xFFFF)
	}
	return b
}

func TestAppendStampsDenseIDs(t *testing.T) {
	s := NewState(0, 0)
	s.Clear()
	sizes := []int{4, 12, 8, 64}
	for i, n := range sizes {
		rec, err := s.Append(makeChunk(n, byte(i*7)), n, float32(i), 0, 0)
		if err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
		if int(rec.ID) != i {
			t.Errorf("chunk %d: ID = %d", i, rec.ID)
		}
	}

	data := s.Vertices()
	for _, rec := range s.Records() {
		for v := rec.VertexOffset; v < rec.VertexOffset+rec.VertexCount; v++ {
			tag := binary.LittleEndian.Uint16(data[int(v)*VertexStride+TagOffset:])
			if tag != rec.ID {
				t.Fatalf("vertex %d: tag = %d, want %d", v, tag, rec.ID)
			}
		}
	}
}

func TestAppendPreservesPayloadOutsideTag(t *testing.T) {
	s := NewState(0, 0)
	s.Clear()
	src := makeChunk(8, 3)
	if _, err := s.Append(src, 8, 0, 0, 0); err != nil {
		t.Fatal(err)
	}
	got := s.Vertices()
	for v := 0; v < 8; v++ {
		lo, hi := v*VertexStride, v*VertexStride+TagOffset
		if !bytes.Equal(got[lo:hi], src[lo:hi]) {
			t.Fatalf("vertex %d payload changed", v)
		}
		pad := hi + 2
		if !bytes.Equal(got[pad:pad+2], src[pad:pad+2]) {
			t.Fatalf("vertex %d padding changed", v)
		}
	}
}

func TestAppendOffsetTable(t *testing.T) {
	s := NewState(0, 0)
	s.Clear()
	want := [][3]float32{{16, 0, -32}, {-1.5, 64, 1e4}}
	for i, w := range want {
		if _, err := s.Append(makeChunk(4, byte(i)), 4, w[0], w[1], w[2]); err != nil {
			t.Fatal(err)
		}
	}
	tab := s.Offsets()
	if len(tab) != len(want)*OffsetStride {
		t.Fatalf("offset table len = %d", len(tab))
	}
	for i, w := range want {
		row := tab[i*OffsetStride:]
		for c := 0; c < 3; c++ {
			got := math.Float32frombits(binary.LittleEndian.Uint32(row[c*4:]))
			if got != w[c] {
				t.Errorf("chunk %d comp %d = %v, want %v", i, c, got, w[c])
			}
		}
	}
}

func TestAppendValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		count   int
		want    error
	}{
		{"zero", nil, 0, ErrVertexCount},
		{"negative", nil, -4, ErrVertexCount},
		{"not quad multiple", make([]byte, 6*VertexStride), 6, ErrVertexCount},
		{"too large", make([]byte, (MaxChunkVertices+4)*VertexStride), MaxChunkVertices + 4, ErrVertexCount},
		{"short payload", make([]byte, 4*VertexStride-1), 4, ErrStride},
		{"long payload", make([]byte, 8*VertexStride), 4, ErrStride},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState(0, 0)
			s.Clear()
			_, err := s.Append(tt.payload, tt.count, 0, 0, 0)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if s.ChunkCount() != 0 || s.UsedBytes() != 0 {
				t.Errorf("state mutated: count=%d used=%d", s.ChunkCount(), s.UsedBytes())
			}
		})
	}
}

func TestAppendRequiresClear(t *testing.T) {
	s := NewState(0, 0)
	if _, err := s.Append(makeChunk(4, 0), 4, 0, 0, 0); !errors.Is(err, ErrNotCleared) {
		t.Fatalf("err = %v, want ErrNotCleared", err)
	}
	s.Clear()
	if _, err := s.Append(makeChunk(4, 0), 4, 0, 0, 0); err != nil {
		t.Fatal(err)
	}
	s.Reset()
	if _, err := s.Append(makeChunk(4, 0), 4, 0, 0, 0); !errors.Is(err, ErrNotCleared) {
		t.Fatalf("after Reset: err = %v, want ErrNotCleared", err)
	}
	if s.ChunkCount() != 1 {
		t.Errorf("contents should survive Reset, count = %d", s.ChunkCount())
	}
}

func TestClearIdempotent(t *testing.T) {
	s := NewState(0, 0)
	s.Clear()
	for i := 0; i < 3; i++ {
		if _, err := s.Append(makeChunk(8, byte(i)), 8, 0, 0, 0); err != nil {
			t.Fatal(err)
		}
	}
	s.BuildIndices()
	capBefore := s.CapacityBytes()

	for i := 0; i < 2; i++ {
		s.Clear()
		if s.ChunkCount() != 0 || s.UsedBytes() != 0 || len(s.Indices()) != 0 {
			t.Fatalf("clear %d: count=%d used=%d idx=%d", i, s.ChunkCount(), s.UsedBytes(), len(s.Indices()))
		}
		if s.MaxChunkVertexCount() != 0 {
			t.Errorf("clear %d: max vertices = %d", i, s.MaxChunkVertexCount())
		}
	}
	if s.CapacityBytes() != capBefore {
		t.Errorf("capacity changed by Clear: %d -> %d", capBefore, s.CapacityBytes())
	}
}

func TestAppendPastCap(t *testing.T) {
	const limit = 16
	s := NewState(limit, 0)
	s.Clear()
	for i := 0; i < limit; i++ {
		if _, err := s.Append(makeChunk(4, byte(i)), 4, 0, 0, 0); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	snapshot := bytes.Clone(s.Vertices())
	offsets := bytes.Clone(s.Offsets())

	if _, err := s.Append(makeChunk(4, 99), 4, 1, 2, 3); !errors.Is(err, ErrCapacity) {
		t.Fatalf("err = %v, want ErrCapacity", err)
	}
	if s.ChunkCount() != limit {
		t.Errorf("count = %d, want %d", s.ChunkCount(), limit)
	}
	if !bytes.Equal(snapshot, s.Vertices()) {
		t.Error("staging bytes changed by failed append")
	}
	if !bytes.Equal(offsets, s.Offsets()) {
		t.Error("offset table changed by failed append")
	}
}

func TestDefaultCapIsMaxChunks(t *testing.T) {
	s := NewState(0, 0)
	if s.MaxChunkCount() != MaxChunks {
		t.Fatalf("cap = %d", s.MaxChunkCount())
	}
	s.Clear()
	chunk := makeChunk(4, 1)
	for i := 0; i < MaxChunks; i++ {
		if _, err := s.Append(chunk, 4, 0, 0, 0); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if _, err := s.Append(chunk, 4, 0, 0, 0); !errors.Is(err, ErrCapacity) {
		t.Fatalf("append %d: err = %v", MaxChunks, err)
	}
	if got := s.Records()[MaxChunks-1].ID; got != MaxChunks-1 {
		t.Errorf("last ID = %d", got)
	}
}

func TestCapacityMonotonic(t *testing.T) {
	s := NewState(0, 1024)
	var prevStaging, prevIndex int
	volumes := []int{1, 4, 4, 2, 40, 40, 8}
	for frame, chunks := range volumes {
		s.Clear()
		for i := 0; i < chunks; i++ {
			if _, err := s.Append(makeChunk(64, byte(i)), 64, 0, 0, 0); err != nil {
				t.Fatal(err)
			}
		}
		s.BuildIndices()
		s.Reset()
		if s.CapacityBytes() < prevStaging || s.IndexCapacity() < prevIndex {
			t.Fatalf("frame %d: capacity shrank (staging %d->%d, index %d->%d)",
				frame, prevStaging, s.CapacityBytes(), prevIndex, s.IndexCapacity())
		}
		prevStaging, prevIndex = s.CapacityBytes(), s.IndexCapacity()
	}
}

func TestTenfoldGrowthDoublesCapacity(t *testing.T) {
	s := NewState(0, 0)
	s.Clear()
	for i := 0; i < 8; i++ {
		if _, err := s.Append(makeChunk(256, byte(i)), 256, 0, 0, 0); err != nil {
			t.Fatal(err)
		}
	}
	s.BuildIndices()
	before := s.CapacityBytes()
	usedBefore := s.UsedBytes()
	s.Reset()

	s.Clear()
	for i := 0; i < 80; i++ {
		if _, err := s.Append(makeChunk(256, byte(i)), 256, float32(i), 0, 0); err != nil {
			t.Fatal(err)
		}
	}
	idx := s.BuildIndices()
	if s.UsedBytes() != 10*usedBefore {
		t.Fatalf("used = %d, want %d", s.UsedBytes(), 10*usedBefore)
	}
	if s.CapacityBytes() < 2*before {
		t.Errorf("capacity %d did not at least double from %d", s.CapacityBytes(), before)
	}
	if len(idx) != 80*256/4*6 {
		t.Errorf("index count = %d", len(idx))
	}

	// Every chunk's bytes survive the reallocations.
	for _, rec := range s.Records() {
		want := makeChunk(256, byte(rec.ID))
		got := s.Vertices()[int(rec.VertexOffset)*VertexStride:][:len(want)]
		for v := 0; v < 256; v++ {
			lo := v * VertexStride
			if !bytes.Equal(got[lo:lo+TagOffset], want[lo:lo+TagOffset]) {
				t.Fatalf("chunk %d vertex %d corrupted", rec.ID, v)
			}
		}
	}
}

func TestGrowthAtLeastDoubles(t *testing.T) {
	s := NewState(0, 128)
	s.Clear()
	prev := s.CapacityBytes()
	for i := 0; i < 64; i++ {
		if _, err := s.Append(makeChunk(4, 0), 4, 0, 0, 0); err != nil {
			t.Fatal(err)
		}
		if c := s.CapacityBytes(); c != prev {
			if c < 2*prev {
				t.Fatalf("grew %d -> %d, less than 2x", prev, c)
			}
			prev = c
		}
	}
}

func TestMaxChunkVertexCount(t *testing.T) {
	s := NewState(0, 0)
	s.Clear()
	for _, n := range []int{8, 128, 4} {
		if _, err := s.Append(makeChunk(n, 0), n, 0, 0, 0); err != nil {
			t.Fatal(err)
		}
	}
	if got := s.MaxChunkVertexCount(); got != 128 {
		t.Errorf("max = %d, want 128", got)
	}
}
