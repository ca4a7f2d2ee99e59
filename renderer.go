package terrain

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/terrain/internal/batch"
)

// FrameState is the state of the Renderer's frame lifecycle.
type FrameState uint8

const (
	// Idle accepts BeginFrame.
	Idle FrameState = iota

	// FrameActive accepts Render and EndFrame.
	FrameActive
)

func (s FrameState) String() string {
	if s == FrameActive {
		return "frame_active"
	}
	return "idle"
}

// skipLogInterval is the number of consecutive skipped frames between
// surface-unavailable warnings.
const skipLogInterval = 300

// Renderer batches terrain chunks per category and drives a Backend through
// one frame at a time.
//
// A Renderer must be used from a single goroutine, the host's render thread.
// Only Stats may be read while a completion callback runs.
type Renderer struct {
	backend Backend
	opts    options

	states [NumCategories]*batch.State
	state  FrameState
	closed bool

	rendered [NumCategories]bool
	disabled [NumCategories]bool

	frameNo    uint64
	current    [NumCategories]CategoryStats
	skippedRun uint64
	timing     timingRegister
	stats      Stats
}

// New creates a Renderer that draws through backend.
func New(backend Backend, opts ...Option) *Renderer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	r := &Renderer{
		backend: backend,
		opts:    o,
	}
	for i := range r.states {
		r.states[i] = batch.NewState(o.maxChunks, o.stagingBytes)
	}
	return r
}

// State returns the current frame state.
func (r *Renderer) State() FrameState { return r.state }

// Clear drops every chunk of cat and enables Append for it until the end of
// the frame. Clear is idempotent and valid in any state, but must not be
// called for a category between its Render and EndFrame.
func (r *Renderer) Clear(cat Category) {
	if !cat.Valid() {
		return
	}
	r.states[cat].Clear()
}

// Append copies one chunk's vertices into cat's staging region. vertices
// holds vertexCount encoded vertices and (wx, wy, wz) is the chunk's world
// offset. The chunk's ordinal is stamped into every copied vertex.
//
// A failing Append leaves the category unchanged. ErrChunkCapacity is a soft
// failure: the chunk is dropped and counted in Stats.DroppedChunks.
func (r *Renderer) Append(cat Category, vertices []byte, vertexCount int, wx, wy, wz float32) error {
	if !cat.Valid() {
		return ErrUnknownCategory
	}
	_, err := r.states[cat].Append(vertices, vertexCount, wx, wy, wz)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, batch.ErrCapacity):
		r.stats.DroppedChunks++
		return fmt.Errorf("%w: %s holds %d chunks", ErrChunkCapacity, cat, r.states[cat].ChunkCount())
	case errors.Is(err, batch.ErrVertexCount):
		return fmt.Errorf("%w: got %d", ErrInvalidVertexCount, vertexCount)
	case errors.Is(err, batch.ErrStride):
		return fmt.Errorf("%w: %d bytes for %d vertices", ErrVertexStride, len(vertices), vertexCount)
	case errors.Is(err, batch.ErrNotCleared):
		return fmt.Errorf("%w: %s", ErrNotCleared, cat)
	default:
		return err
	}
}

// ChunkCount returns the number of chunks appended to cat this frame.
func (r *Renderer) ChunkCount(cat Category) int {
	if !cat.Valid() {
		return 0
	}
	return r.states[cat].ChunkCount()
}

// IndexCount returns the number of indices of cat's last built index buffer.
func (r *Renderer) IndexCount(cat Category) int {
	if !cat.Valid() {
		return 0
	}
	return len(r.states[cat].Indices())
}

// StagingCapacity returns cat's staging capacity in bytes.
func (r *Renderer) StagingCapacity(cat Category) int {
	if !cat.Valid() {
		return 0
	}
	return r.states[cat].CapacityBytes()
}

// BeginFrame starts a frame of width x height pixels. When present is true
// the frame targets the display surface, otherwise an offscreen target.
//
// If the backend cannot acquire a target BeginFrame returns an error
// wrapping ErrSurfaceUnavailable and the renderer stays Idle; the host skips
// the frame and retries on its next tick.
func (r *Renderer) BeginFrame(width, height int, present bool) error {
	if r.closed {
		return ErrClosed
	}
	if r.state != Idle {
		return r.violation("BeginFrame")
	}

	err := r.backend.BeginFrame(width, height, present)
	// The backend observes completion of earlier frames while beginning.
	r.stats.GPUTime, r.stats.GPUTimeFrame = r.timing.read()
	if err != nil {
		r.stats.SkippedFrames++
		r.skippedRun++
		if r.skippedRun%skipLogInterval == 1 {
			Logger().Warn("terrain: frame skipped",
				"err", err, "consecutive", r.skippedRun, "total", r.stats.SkippedFrames)
		}
		if errors.Is(err, ErrSurfaceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrSurfaceUnavailable, err)
	}

	r.skippedRun = 0
	r.frameNo++
	r.state = FrameActive
	r.rendered = [NumCategories]bool{}
	r.current = [NumCategories]CategoryStats{}
	return nil
}

// Render issues cat's single draw for this frame. It rebuilds the
// category's global index buffer, binds the category's pipeline with p and
// draws every appended chunk at once. Render with no chunks is a no-op, and
// so is Render of a category not cleared since the last EndFrame: chunks
// never outlive their frame.
//
// Render may run at most once per category per frame, between BeginFrame
// and EndFrame.
func (r *Renderer) Render(cat Category, p FrameParams) error {
	if !cat.Valid() {
		return ErrUnknownCategory
	}
	if r.state != FrameActive {
		return r.violation("Render(" + cat.String() + ")")
	}
	if r.rendered[cat] {
		return r.violation("second Render(" + cat.String() + ")")
	}
	r.rendered[cat] = true

	st := r.states[cat]
	if r.disabled[cat] || !st.Cleared() || st.ChunkCount() == 0 {
		return nil
	}

	start := time.Now()
	b := Batch{
		Vertices:    st.Vertices(),
		Offsets:     st.Offsets(),
		Indices:     st.BuildIndices(),
		Chunks:      st.ChunkCount(),
		VertexCount: st.VertexCount(),
	}
	if err := r.backend.Draw(cat, b, p); err != nil {
		if errors.Is(err, ErrCategoryUnavailable) {
			r.disabled[cat] = true
			Logger().Warn("terrain: category disabled", "category", cat, "err", err)
			return err
		}
		return fmt.Errorf("render %s: %w", cat, err)
	}

	r.current[cat] = CategoryStats{
		Draws:            1,
		Vertices:         b.VertexCount,
		Chunks:           b.Chunks,
		Indices:          len(b.Indices),
		MaxChunkVertices: int(st.MaxChunkVertexCount()),
		CPUTime:          time.Since(start),
	}
	return nil
}

// EndFrame submits the frame and returns to Idle. It also ends the frame for
// Append: every category must be cleared again before the next Append.
// The frame's GPU time is published once its completion is observed and
// reported by Stats after the following BeginFrame.
func (r *Renderer) EndFrame() error {
	if r.state != FrameActive {
		return r.violation("EndFrame")
	}
	r.state = Idle

	frame := r.frameNo
	err := r.backend.EndFrame(func(d time.Duration) {
		r.timing.publish(frame, d)
	})

	for _, st := range r.states {
		st.Reset()
	}
	r.stats.Frames++
	r.stats.Categories = r.current
	r.stats.DrawCount, r.stats.VertexCount = 0, 0
	for _, c := range r.current {
		r.stats.DrawCount += c.Draws
		r.stats.VertexCount += c.Vertices
	}
	if err != nil {
		return fmt.Errorf("end frame: %w", err)
	}
	Logger().Debug("terrain: frame submitted",
		"frame", frame, "draws", r.stats.DrawCount, "vertices", r.stats.VertexCount)
	return nil
}

// ImportTexture uploads RGBA8 pixels into a texture slot. Both slots are
// bound automatically by Render.
func (r *Renderer) ImportTexture(slot TextureSlot, width, height int, pixels []byte) error {
	if r.closed {
		return ErrClosed
	}
	if slot > SlotLightmap {
		return fmt.Errorf("%w: slot %d", ErrInvalidTexture, slot)
	}
	if width <= 0 || height <= 0 || len(pixels) != width*height*4 {
		return fmt.Errorf("%w: %dx%d with %d bytes", ErrInvalidTexture, width, height, len(pixels))
	}
	return r.backend.ImportTexture(slot, width, height, pixels)
}

// Stats returns a diagnostics snapshot. It never blocks.
func (r *Renderer) Stats() Stats {
	return r.stats
}

// Close releases the backend. The renderer must not be used afterwards.
func (r *Renderer) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.backend.Close()
}

// violation handles a call made in the wrong frame state.
func (r *Renderer) violation(op string) error {
	err := fmt.Errorf("%w: %s while %s", ErrContractViolation, op, r.state)
	if r.opts.strict {
		panic(err)
	}
	r.stats.ContractViolations++
	Logger().Warn("terrain: ignored call", "op", op, "state", r.state.String())
	return err
}
