//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/terrain"
)

// depthFormat is the depth attachment format. The stencil aspect is unused.
const depthFormat = gputypes.TextureFormatDepth24PlusStencil8

// Bind group 0 layout.
const (
	bindingUniforms = iota
	bindingOffsets
	bindingAtlas
	bindingAtlasSampler
	bindingLightmap
	bindingLightmapSampler
)

// terrainVertexLayout describes the 32-byte terrain vertex. Color, light and
// tag are fetched as raw u32 words and unpacked in the shader.
var terrainVertexLayout = gputypes.VertexBufferLayout{
	ArrayStride: terrain.VertexSize,
	StepMode:    gputypes.VertexStepModeVertex,
	Attributes: []gputypes.VertexAttribute{
		{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
		{Format: gputypes.VertexFormatUint32, Offset: 12, ShaderLocation: 1},
		{Format: gputypes.VertexFormatFloat32x2, Offset: 16, ShaderLocation: 2},
		{Format: gputypes.VertexFormatUint32, Offset: 24, ShaderLocation: 3},
		{Format: gputypes.VertexFormatUint32, Offset: terrain.TagOffset, ShaderLocation: 4},
	},
}

// pipelineSet holds the shader, layouts and one render pipeline per
// category. A category whose pipeline failed to build keeps a nil pipeline
// and the build error.
type pipelineSet struct {
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout

	pipelines [terrain.NumCategories]hal.RenderPipeline
	errs      [terrain.NumCategories]error
}

// categoryState returns the fixed depth and blend state of cat.
func categoryState(cat terrain.Category, colorFormat gputypes.TextureFormat) (*hal.DepthStencilState, gputypes.ColorTargetState) {
	keep := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
	depth := &hal.DepthStencilState{
		Format:            depthFormat,
		DepthWriteEnabled: cat.DepthWrite(),
		DepthCompare:      gputypes.CompareFunctionLess,
		StencilFront:      keep,
		StencilBack:       keep,
		StencilReadMask:   0,
		StencilWriteMask:  0,
	}
	target := gputypes.ColorTargetState{
		Format:    colorFormat,
		WriteMask: gputypes.ColorWriteMaskAll,
	}
	if cat.Blended() {
		blend := gputypes.BlendState{
			Color: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorSrcAlpha,
				DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
				Operation: gputypes.BlendOperationAdd,
			},
			Alpha: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorOne,
				DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
				Operation: gputypes.BlendOperationAdd,
			},
		}
		target.Blend = &blend
	}
	return depth, target
}

// createPipelines builds the shared layouts and all category pipelines.
// Shared resources failing is fatal; a single pipeline failing only
// disables its category.
func createPipelines(device hal.Device, colorFormat gputypes.TextureFormat) (*pipelineSet, error) {
	ps := &pipelineSet{}

	shader, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "terrain_shader",
		Source: hal.ShaderSource{WGSL: terrainShaderSource},
	})
	if err != nil {
		return nil, fmt.Errorf("create terrain shader: %w", err)
	}
	ps.shader = shader

	vertexFragment := gputypes.ShaderStageVertex | gputypes.ShaderStageFragment
	ps.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "terrain_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    bindingUniforms,
				Visibility: vertexFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    bindingOffsets,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
			},
			{
				Binding:    bindingAtlas,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    bindingAtlasSampler,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
			{
				Binding:    bindingLightmap,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    bindingLightmapSampler,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		ps.destroy(device)
		return nil, fmt.Errorf("create terrain bind group layout: %w", err)
	}

	ps.pipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "terrain_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{ps.bindLayout},
	})
	if err != nil {
		ps.destroy(device)
		return nil, fmt.Errorf("create terrain pipeline layout: %w", err)
	}

	for _, cat := range terrain.Categories() {
		depth, target := categoryState(cat, colorFormat)
		pipe, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
			Label:  "terrain_" + cat.String(),
			Layout: ps.pipeLayout,
			Vertex: hal.VertexState{
				Module:     shader,
				EntryPoint: vertexEntry,
				Buffers:    []gputypes.VertexBufferLayout{terrainVertexLayout},
			},
			Primitive: gputypes.PrimitiveState{
				Topology: gputypes.PrimitiveTopologyTriangleList,
				CullMode: gputypes.CullModeNone,
			},
			DepthStencil: depth,
			Multisample: gputypes.MultisampleState{
				Count: 1,
				Mask:  0xFFFFFFFF,
			},
			Fragment: &hal.FragmentState{
				Module:     shader,
				EntryPoint: fragmentEntry,
				Targets:    []gputypes.ColorTargetState{target},
			},
		})
		if err != nil {
			// Reported once, when the category is first rendered.
			ps.errs[cat] = err
			continue
		}
		ps.pipelines[cat] = pipe
	}
	slogger().Info("native: terrain pipelines created", "format", colorFormat)
	return ps, nil
}

// pipeline returns cat's pipeline or an error wrapping
// terrain.ErrCategoryUnavailable.
func (ps *pipelineSet) pipeline(cat terrain.Category) (hal.RenderPipeline, error) {
	if p := ps.pipelines[cat]; p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s: %w", terrain.ErrCategoryUnavailable, cat, ps.errs[cat])
}

func (ps *pipelineSet) destroy(device hal.Device) {
	for i, p := range ps.pipelines {
		if p != nil {
			device.DestroyRenderPipeline(p)
			ps.pipelines[i] = nil
		}
	}
	if ps.pipeLayout != nil {
		device.DestroyPipelineLayout(ps.pipeLayout)
		ps.pipeLayout = nil
	}
	if ps.bindLayout != nil {
		device.DestroyBindGroupLayout(ps.bindLayout)
		ps.bindLayout = nil
	}
	if ps.shader != nil {
		device.DestroyShaderModule(ps.shader)
		ps.shader = nil
	}
}
