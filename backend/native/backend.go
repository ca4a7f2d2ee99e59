//go:build !nogpu

package native

import (
	"errors"
	"fmt"
	"image"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/terrain"
)

// categoryBuffers are the GPU copies of one category's batch.
type categoryBuffers struct {
	vertices *gpuBuffer
	offsets  *gpuBuffer
	indices  *gpuBuffer
	uniforms *gpuBuffer

	bindGroup hal.BindGroup
}

// frameRecording is the command scope of the frame being recorded.
type frameRecording struct {
	encoder hal.CommandEncoder
	pass    hal.RenderPassEncoder
	present bool
	draws   int
}

// submission is a submitted frame whose completion has not been observed.
type submission struct {
	index     uint64
	cmd       hal.CommandBuffer
	submitted time.Time
	timed     bool
	done      terrain.CompletionFunc
	retired   []func()
}

// pollInterval is the sleep between completion polls of a blocking wait.
const pollInterval = 100 * time.Microsecond

// Backend renders terrain batches with a gogpu/wgpu HAL device. It
// implements terrain.Backend.
//
// All categories share one shader and differ only in depth, blend and sampler
// state. Every category owns its vertex, offset, index and uniform buffers;
// buffers only grow, and a replaced buffer is destroyed once the frame that
// may still read it has completed.
type Backend struct {
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance
	owned    bool
	opts     options

	pipelines *pipelineSet
	timer     *gpuTimer
	samplers  samplerSet
	textures  [2]*sampledTexture
	cats      [terrain.NumCategories]*categoryBuffers
	targets   renderTargets

	frame    *frameRecording
	inflight *submission
	retired  []func()
	uniform  []byte

	lastOffscreen bool
	closed        bool
}

// New creates a Backend on an existing HAL device and queue. The device stays
// owned by the caller.
func New(device hal.Device, queue hal.Queue, opts ...Option) (*Backend, error) {
	if device == nil || queue == nil {
		return nil, ErrNoHAL
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	b := &Backend{
		device:  device,
		queue:   queue,
		opts:    o,
		targets: renderTargets{colorFormat: o.colorFormat},
		uniform: make([]byte, 0, terrain.UniformSize),
	}
	if err := b.createResources(); err != nil {
		b.destroyResources()
		return nil, err
	}
	return b, nil
}

func (b *Backend) createResources() error {
	ps, err := createPipelines(b.device, b.opts.colorFormat)
	if err != nil {
		return err
	}
	b.pipelines = ps

	if b.timer, err = newGPUTimer(b.device, b.queue); err != nil {
		return err
	}
	if b.samplers, err = createSamplers(b.device); err != nil {
		return err
	}
	for slot, label := range []string{"terrain_atlas", "terrain_lightmap"} {
		tex, err := createSampledTexture(b.device, b.queue, label, whiteLevels())
		if err != nil {
			return err
		}
		b.textures[slot] = tex
	}
	for _, cat := range terrain.Categories() {
		name := cat.String()
		b.cats[cat] = &categoryBuffers{
			vertices: newGPUBuffer(name+"_vertices", gputypes.BufferUsageVertex),
			offsets:  newGPUBuffer(name+"_offsets", gputypes.BufferUsageStorage),
			indices:  newGPUBuffer(name+"_indices", gputypes.BufferUsageIndex),
			uniforms: newGPUBuffer(name+"_uniforms", gputypes.BufferUsageUniform),
		}
	}
	return nil
}

// retire schedules f to run once every frame submitted so far, and the frame
// being recorded, has completed.
func (b *Backend) retire(f func()) {
	b.retired = append(b.retired, f)
}

// CategoryAvailable reports whether cat's pipeline was built.
func (b *Backend) CategoryAvailable(cat terrain.Category) bool {
	return cat.Valid() && b.pipelines != nil && b.pipelines.pipelines[cat] != nil
}

// BeginFrame waits for the previous frame, acquires the target and begins a
// render pass that clears color and depth.
func (b *Backend) BeginFrame(width, height int, present bool) error {
	if b.closed {
		return ErrClosed
	}
	if b.frame != nil {
		return fmt.Errorf("native: BeginFrame: %w", ErrFrameActive)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	// Queue writes are immediate, so the previous frame must have finished
	// reading the buffers this frame rewrites.
	if err := b.collect(true); err != nil {
		return fmt.Errorf("%w: %w", terrain.ErrSurfaceUnavailable, err)
	}
	w, h := uint32(width), uint32(height)

	var colorView hal.TextureView
	if present {
		if b.opts.surface == nil {
			return fmt.Errorf("%w: no surface configured", terrain.ErrSurfaceUnavailable)
		}
		view, err := b.opts.surface.AcquireView(width, height)
		if err != nil || view == nil {
			return fmt.Errorf("%w: acquire: %v", terrain.ErrSurfaceUnavailable, err)
		}
		colorView = view
	} else {
		if err := b.targets.ensureColor(b.device, w, h, b.retire); err != nil {
			return fmt.Errorf("%w: %w", terrain.ErrSurfaceUnavailable, err)
		}
		colorView = b.targets.colorView
	}
	// From here on an acquired surface image must be handed back on failure.
	release := func() {
		if present {
			b.opts.surface.Discard()
		}
	}
	if err := b.targets.ensureDepth(b.device, w, h, b.retire); err != nil {
		release()
		return fmt.Errorf("%w: %w", terrain.ErrSurfaceUnavailable, err)
	}

	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "terrain_frame_encoder",
	})
	if err != nil {
		release()
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("terrain_frame"); err != nil {
		encoder.Destroy()
		release()
		return fmt.Errorf("begin encoding: %w", err)
	}
	desc := &hal.RenderPassDescriptor{
		Label: "terrain_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       colorView,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: b.opts.clearColor,
		}},
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:              b.targets.depthView,
			DepthLoadOp:       gputypes.LoadOpClear,
			DepthStoreOp:      gputypes.StoreOpDiscard,
			DepthClearValue:   1.0,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpDiscard,
			StencilClearValue: 0,
		},
	}
	if b.timer != nil {
		desc.TimestampWrites = b.timer.passWrites()
	}
	b.frame = &frameRecording{encoder: encoder, pass: encoder.BeginRenderPass(desc), present: present}
	return nil
}

// Draw uploads batch into cat's buffers and records one indexed draw.
func (b *Backend) Draw(cat terrain.Category, batch terrain.Batch, p terrain.FrameParams) error {
	if b.frame == nil {
		return ErrNoFrame
	}
	if !cat.Valid() {
		return terrain.ErrUnknownCategory
	}
	pipe, err := b.pipelines.pipeline(cat)
	if err != nil {
		return err
	}
	if len(batch.Indices) == 0 {
		return nil
	}

	cb := b.cats[cat]
	rebind := cb.bindGroup == nil
	if _, err := cb.vertices.upload(b.device, b.queue, batch.Vertices, b.retire); err != nil {
		return err
	}
	grown, err := cb.offsets.upload(b.device, b.queue, batch.Offsets, b.retire)
	if err != nil {
		return err
	}
	rebind = rebind || grown
	if _, err := cb.indices.upload(b.device, b.queue, indexBytes(batch.Indices), b.retire); err != nil {
		return err
	}
	b.uniform = p.AppendUniforms(b.uniform[:0])
	grown, err = cb.uniforms.upload(b.device, b.queue, b.uniform, b.retire)
	if err != nil {
		return err
	}
	rebind = rebind || grown

	if rebind {
		if err := b.rebuildBindGroup(cat); err != nil {
			return err
		}
	}

	rp := b.frame.pass
	rp.SetPipeline(pipe)
	rp.SetBindGroup(0, cb.bindGroup, nil)
	rp.SetVertexBuffer(0, cb.vertices.buf, 0)
	rp.SetIndexBuffer(cb.indices.buf, gputypes.IndexFormatUint32, 0)
	rp.DrawIndexed(uint32(len(batch.Indices)), 1, 0, 0, 0)
	b.frame.draws++
	return nil
}

// indexBytes views indices as little-endian bytes without copying.
func indexBytes(indices []uint32) []byte {
	if len(indices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*4) //nolint:gosec // uint32 slice as bytes
}

// rebuildBindGroup recreates cat's bind group after a buffer or texture it
// references changed.
func (b *Backend) rebuildBindGroup(cat terrain.Category) error {
	cb := b.cats[cat]
	atlas := b.textures[terrain.SlotAtlas]
	lightmap := b.textures[terrain.SlotLightmap]

	atlasView, atlasSampler := atlas.view, b.samplers.mipped
	if cat.NearestSampling() {
		atlasView, atlasSampler = atlas.baseView, b.samplers.nearest
	}

	bg, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "terrain_" + cat.String() + "_bind",
		Layout: b.pipelines.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: bindingUniforms, Resource: gputypes.BufferBinding{
				Buffer: cb.uniforms.buf.NativeHandle(), Offset: 0, Size: terrain.UniformSize,
			}},
			{Binding: bindingOffsets, Resource: gputypes.BufferBinding{
				Buffer: cb.offsets.buf.NativeHandle(), Offset: 0, Size: cb.offsets.size,
			}},
			{Binding: bindingAtlas, Resource: gputypes.TextureViewBinding{TextureView: atlasView.NativeHandle()}},
			{Binding: bindingAtlasSampler, Resource: gputypes.SamplerBinding{Sampler: atlasSampler.NativeHandle()}},
			{Binding: bindingLightmap, Resource: gputypes.TextureViewBinding{TextureView: lightmap.view.NativeHandle()}},
			{Binding: bindingLightmapSampler, Resource: gputypes.SamplerBinding{Sampler: b.samplers.lightmap.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("create %s bind group: %w", cat, err)
	}
	if old := cb.bindGroup; old != nil {
		b.retire(func() { b.device.DestroyBindGroup(old) })
	}
	cb.bindGroup = bg
	return nil
}

// EndFrame ends the pass, submits the frame and presents it when the frame
// targets the surface. done runs when the frame's completion is observed.
func (b *Backend) EndFrame(done terrain.CompletionFunc) error {
	f := b.frame
	if f == nil {
		return ErrNoFrame
	}
	b.frame = nil
	f.pass.End()
	if b.timer != nil {
		b.timer.recordResolve(f.encoder)
	}
	if !f.present {
		b.targets.recordReadback(f.encoder)
	}

	cmd, err := f.encoder.EndEncoding()
	if err != nil {
		b.discardSurface(f)
		return fmt.Errorf("end encoding: %w", err)
	}
	index, err := b.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		b.device.FreeCommandBuffer(cmd)
		b.discardSurface(f)
		return fmt.Errorf("submit: %w", err)
	}
	b.inflight = &submission{
		index:     index,
		cmd:       cmd,
		submitted: time.Now(),
		timed:     b.timer != nil,
		done:      done,
		retired:   b.retired,
	}
	b.retired = nil
	b.lastOffscreen = !f.present

	if f.present {
		if err := b.opts.surface.Present(); err != nil {
			return fmt.Errorf("present: %w", err)
		}
	}
	return nil
}

func (b *Backend) discardSurface(f *frameRecording) {
	if f.present {
		b.opts.surface.Discard()
	}
}

// completed reports whether submission index has finished on the GPU,
// waiting up to timeout.
func (b *Backend) completed(index uint64, timeout time.Duration) bool {
	if b.queue.PollCompleted() >= index {
		return true
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		time.Sleep(pollInterval)
		if b.queue.PollCompleted() >= index {
			return true
		}
	}
	return false
}

// collect observes completion of the in-flight frame. It polls first and,
// when block is true, waits up to the wait timeout.
//
// The frame's GPU time comes from its pass timestamps. Without timestamp
// support it falls back to the host time from submit to observed
// completion, which also counts host work done before the observation.
func (b *Backend) collect(block bool) error {
	s := b.inflight
	if s == nil {
		return nil
	}
	var timeout time.Duration
	if block {
		timeout = b.opts.waitTimeout
	}
	if !b.completed(s.index, timeout) {
		return ErrGPUBusy
	}
	gpuTime := time.Since(s.submitted)
	if s.timed {
		if d, err := b.timer.read(b.device); err != nil {
			slogger().Warn("native: read timestamps", "err", err)
		} else {
			gpuTime = d
		}
	}
	b.inflight = nil
	b.device.FreeCommandBuffer(s.cmd)
	for _, f := range s.retired {
		f()
	}
	if s.done != nil {
		s.done(gpuTime)
	}
	return nil
}

// Poll observes completion of the previous frame without blocking. It
// reports whether no frame is left in flight.
func (b *Backend) Poll() bool {
	if err := b.collect(false); err != nil && !errors.Is(err, ErrGPUBusy) {
		slogger().Warn("native: poll failed", "err", err)
	}
	return b.inflight == nil
}

// ReadPixels waits for the last frame and returns its offscreen color target
// as RGBA.
func (b *Backend) ReadPixels() (*image.RGBA, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if b.frame != nil {
		return nil, ErrFrameActive
	}
	if !b.lastOffscreen || b.targets.colorTex == nil {
		return nil, ErrNoReadback
	}
	if err := b.collect(true); err != nil {
		return nil, err
	}
	return b.targets.readPixels(b.device)
}

// ImportTexture replaces the texture of slot. The atlas receives a full mip
// chain generated on the CPU; the lightmap keeps a single level.
func (b *Backend) ImportTexture(slot terrain.TextureSlot, width, height int, pixels []byte) error {
	if b.closed {
		return ErrClosed
	}
	if slot > terrain.SlotLightmap || width <= 0 || height <= 0 || len(pixels) != width*height*4 {
		return fmt.Errorf("%w: slot %d %dx%d", terrain.ErrInvalidTexture, slot, width, height)
	}
	label := "terrain_atlas"
	if slot == terrain.SlotLightmap {
		label = "terrain_lightmap"
	}
	tex, err := createSampledTexture(b.device, b.queue, label, textureLevels(slot, width, height, pixels))
	if err != nil {
		return err
	}
	if old := b.textures[slot]; old != nil {
		b.retire(func() { old.destroy(b.device) })
	}
	b.textures[slot] = tex

	// Every bind group references both slots.
	for _, cb := range b.cats {
		if cb.bindGroup != nil {
			old := cb.bindGroup
			b.retire(func() { b.device.DestroyBindGroup(old) })
			cb.bindGroup = nil
		}
	}
	slogger().Debug("native: texture imported", "slot", label, "width", width, "height", height, "mips", tex.mips)
	return nil
}

// Close waits for in-flight work and releases every GPU resource. A device
// opened by OpenVulkan is destroyed with its instance.
func (b *Backend) Close() {
	if b.closed {
		return
	}
	b.closed = true
	if f := b.frame; f != nil {
		f.pass.End()
		f.encoder.DiscardEncoding()
		b.discardSurface(f)
		b.frame = nil
	}
	if err := b.collect(true); err != nil {
		slogger().Warn("native: close with frame in flight", "err", err)
	}
	b.destroyResources()
	if b.owned {
		b.device.Destroy()
		if b.instance != nil {
			b.instance.Destroy()
		}
	}
	b.device, b.queue, b.instance = nil, nil, nil
}

func (b *Backend) destroyResources() {
	for _, f := range b.retired {
		f()
	}
	b.retired = nil
	for i, cb := range b.cats {
		if cb == nil {
			continue
		}
		if cb.bindGroup != nil {
			b.device.DestroyBindGroup(cb.bindGroup)
		}
		cb.vertices.destroy(b.device)
		cb.offsets.destroy(b.device)
		cb.indices.destroy(b.device)
		cb.uniforms.destroy(b.device)
		b.cats[i] = nil
	}
	for i, t := range b.textures {
		if t != nil {
			t.destroy(b.device)
			b.textures[i] = nil
		}
	}
	b.targets.destroy(b.device)
	b.samplers.destroy(b.device)
	if b.timer != nil {
		b.timer.destroy(b.device)
		b.timer = nil
	}
	if b.pipelines != nil {
		b.pipelines.destroy(b.device)
		b.pipelines = nil
	}
}

var _ terrain.Backend = (*Backend)(nil)
