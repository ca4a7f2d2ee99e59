package terrain

import "time"

// TextureSlot selects one of the textures bound by every draw.
type TextureSlot uint8

const (
	// SlotAtlas is the primary surface atlas, sampled with mipmaps.
	SlotAtlas TextureSlot = iota

	// SlotLightmap is the lighting lookup, sampled linearly and clamped.
	SlotLightmap
)

// Batch is one category's packed geometry, ready for a single draw.
// The slices alias Renderer memory and are valid until the next Clear.
type Batch struct {
	// Vertices holds VertexCount vertices of VertexSize bytes.
	Vertices []byte

	// Offsets holds one 16-byte world offset row (x, y, z, 0) per chunk,
	// indexed by the chunk tag.
	Offsets []byte

	// Indices is the triangle list covering every vertex.
	Indices []uint32

	Chunks      int
	VertexCount int
}

// CompletionFunc receives the GPU execution time of a submitted frame once
// its completion has been observed.
type CompletionFunc func(gpuTime time.Duration)

// Backend executes frames on a GPU.
//
// The Renderer guarantees the call order BeginFrame, Draw (at most once per
// category), EndFrame. Backends report a category whose pipeline could not
// be built by returning an error wrapping ErrCategoryUnavailable from Draw.
type Backend interface {
	// BeginFrame acquires a render target and opens one command scope that
	// clears color and depth. It returns an error wrapping
	// ErrSurfaceUnavailable when no target could be acquired.
	BeginFrame(width, height int, present bool) error

	// Draw records one indexed draw of b with the category's pipeline.
	Draw(cat Category, b Batch, p FrameParams) error

	// EndFrame submits the frame and presents it when requested in
	// BeginFrame. done is invoked once the GPU finished the frame.
	EndFrame(done CompletionFunc) error

	// ImportTexture uploads RGBA8 pixels into a slot.
	ImportTexture(slot TextureSlot, width, height int, pixels []byte) error

	// Close releases GPU resources.
	Close()
}
