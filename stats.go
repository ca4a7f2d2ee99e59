package terrain

import (
	"sync/atomic"
	"time"
)

// CategoryStats are the counters of one category in one frame.
type CategoryStats struct {
	Draws    int
	Vertices int
	Chunks   int
	Indices  int

	// MaxChunkVertices is the largest chunk appended this frame.
	MaxChunkVertices int

	// CPUTime is the time Render spent building indices and encoding.
	CPUTime time.Duration
}

// Stats is a snapshot of renderer diagnostics.
type Stats struct {
	// GPUTime is the GPU execution time of the most recently completed
	// frame. It trails submission by one frame; GPUTimeFrame names the
	// frame it belongs to, 0 when no frame has completed yet.
	GPUTime      time.Duration
	GPUTimeFrame uint64

	// DrawCount and VertexCount are totals of the last ended frame.
	DrawCount   int
	VertexCount int
	Categories  [NumCategories]CategoryStats

	Frames             uint64
	SkippedFrames      uint64
	DroppedChunks      uint64
	ContractViolations uint64
}

// timingRegister is a single-slot result register for GPU timing.
// Completion writes it, BeginFrame reads it. Written values carry the frame
// number so a reader can tell a fresh result from a stale one.
type timingRegister struct {
	slot atomic.Pointer[gpuTiming]
}

type gpuTiming struct {
	frame uint64
	d     time.Duration
}

func (t *timingRegister) publish(frame uint64, d time.Duration) {
	t.slot.Store(&gpuTiming{frame: frame, d: d})
}

// read returns the last published time and its frame number.
func (t *timingRegister) read() (time.Duration, uint64) {
	v := t.slot.Load()
	if v == nil {
		return 0, 0
	}
	return v.d, v.frame
}
