package terrain

import "errors"

var (
	// ErrChunkCapacity is returned by Append when the category already holds
	// the maximum number of chunks for the frame. The chunk is dropped.
	ErrChunkCapacity = errors.New("terrain: chunk capacity exceeded")

	// ErrInvalidVertexCount is returned when a vertex count is not a positive
	// multiple of 4 or exceeds MaxChunkVertices.
	ErrInvalidVertexCount = errors.New("terrain: vertex count must be a positive multiple of 4")

	// ErrVertexStride is returned when the payload length is not
	// vertexCount*VertexSize.
	ErrVertexStride = errors.New("terrain: vertex payload does not match 32-byte stride")

	// ErrNotCleared is returned by Append when Clear has not run for the
	// category this frame.
	ErrNotCleared = errors.New("terrain: category not cleared this frame")

	// ErrUnknownCategory is returned for out-of-range categories.
	ErrUnknownCategory = errors.New("terrain: unknown category")

	// ErrSurfaceUnavailable is returned by BeginFrame when no render target
	// could be acquired. The frame is skipped.
	ErrSurfaceUnavailable = errors.New("terrain: surface unavailable")

	// ErrCategoryUnavailable is returned by a backend whose pipeline for a
	// category failed to build. Render for that category becomes a no-op.
	ErrCategoryUnavailable = errors.New("terrain: category pipeline unavailable")

	// ErrContractViolation reports a call made in the wrong frame state.
	ErrContractViolation = errors.New("terrain: contract violation")

	// ErrInvalidTexture is returned by ImportTexture for bad slots or sizes.
	ErrInvalidTexture = errors.New("terrain: invalid texture")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("terrain: renderer closed")
)
