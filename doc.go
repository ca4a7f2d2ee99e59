// Package terrain is the batch-rendering core of a block-world terrain
// renderer.
//
// # Overview
//
// Terrain arrives as many small chunks, each a cluster of textured quads
// with its own world offset. Drawing every chunk separately costs one draw
// call per chunk; padding chunks into fixed instance slots wastes bandwidth
// on degenerate geometry. terrain packs every chunk of a render category
// contiguously, stamps a dense chunk tag into each vertex, and draws the
// whole category with a single indexed draw. The vertex shader resolves the
// chunk's world offset through the tag.
//
// # Quick Start
//
//	be, err := native.OpenVulkan()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r := terrain.New(be)
//	defer r.Close()
//
//	for _, cat := range terrain.Categories() {
//	    r.Clear(cat)
//	}
//	for _, c := range visibleChunks {
//	    _ = r.Append(c.Category, c.Vertices, c.VertexCount, c.X, c.Y, c.Z)
//	}
//	if err := r.BeginFrame(1280, 720, false); err == nil {
//	    for _, cat := range terrain.Categories() {
//	        _ = r.Render(cat, terrain.DefaultFrameParams(cat, viewProj, 12))
//	    }
//	    _ = r.EndFrame()
//	}
//
// # Render Categories
//
// Four categories are rendered in a fixed order, each with its own depth,
// blend and alpha-test state:
//
//   - [Opaque]: depth test and write, no blending.
//   - [AlphaMipped]: like Opaque, discards texels with alpha below 0.5.
//   - [AlphaSharp]: nearest sampling of the base mip, discards below 0.1.
//   - [Translucent]: depth test without write, source-over blending. The
//     caller appends translucent chunks back to front.
//
// # Frame Lifecycle
//
// [Renderer] is a two-state machine. BeginFrame moves from Idle to
// FrameActive, Render runs at most once per category, and EndFrame submits
// and returns to Idle. Calls in the wrong state are contract violations:
// they panic when the renderer was created with [WithStrict] and are
// guarded no-ops otherwise.
//
// # Diagnostics
//
// [Renderer.Stats] returns draw and vertex counts of the last frame and the
// GPU execution time of the last completed frame, which lags submission by
// one frame.
//
// # Logging
//
// terrain produces no log output by default. Use [SetLogger] to enable it.
package terrain
