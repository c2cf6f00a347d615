package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-quad/engine/core"
	"github.com/spaghettifunk/anima-quad/engine/renderer"
)

// Vulkan bakes rasterizer, blend, depth and topology state into the
// pipeline object. The backend keeps those states as plain descriptions and
// builds one pipeline per combination the first time a draw needs it.
type pipelineKey struct {
	program    renderer.Handle
	rasterizer renderer.Handle
	blend      renderer.Handle
	depth      renderer.Handle
	topology   renderer.Topology
}

type pipelineStates struct {
	program    *VulkanShaderProgram
	rasterizer renderer.RasterizerDesc
	blend      renderer.BlendDesc
	depth      renderer.DepthStencilDesc
	topology   renderer.Topology
}

// VulkanPipeline is one baked combination of states.
type VulkanPipeline struct {
	Handle vk.Pipeline
	Layout vk.PipelineLayout
}

func (p *VulkanPipeline) Bind(cmd *VulkanCommandBuffer) {
	vk.CmdBindPipeline(cmd.Handle, vk.PipelineBindPointGraphics, p.Handle)
}

func (p *VulkanPipeline) Destroy(context *VulkanContext) {
	if p.Handle != vk.NullPipeline {
		vk.DestroyPipeline(context.Device.LogicalDevice, p.Handle, context.Allocator)
		p.Handle = vk.NullPipeline
	}
}

func cullMode(c renderer.CullMode) vk.CullModeFlags {
	switch c {
	case renderer.CullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case renderer.CullModeBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
	return vk.CullModeFlags(vk.CullModeNone)
}

func polygonMode(f renderer.FillMode) vk.PolygonMode {
	if f == renderer.FillModeWireframe {
		return vk.PolygonModeLine
	}
	return vk.PolygonModeFill
}

func blendFactor(f renderer.BlendFactor) vk.BlendFactor {
	switch f {
	case renderer.BlendFactorZero:
		return vk.BlendFactorZero
	case renderer.BlendFactorSrcAlpha:
		return vk.BlendFactorSrcAlpha
	case renderer.BlendFactorInvSrcAlpha:
		return vk.BlendFactorOneMinusSrcAlpha
	}
	return vk.BlendFactorOne
}

func blendOp(op renderer.BlendOp) vk.BlendOp {
	switch op {
	case renderer.BlendOpSubtract:
		return vk.BlendOpSubtract
	case renderer.BlendOpReverseSubtract:
		return vk.BlendOpReverseSubtract
	}
	return vk.BlendOpAdd
}

func colorWriteMask(m renderer.ColorWriteMask) vk.ColorComponentFlags {
	var out vk.ColorComponentFlagBits
	if m&renderer.ColorWriteRed != 0 {
		out |= vk.ColorComponentRBit
	}
	if m&renderer.ColorWriteGreen != 0 {
		out |= vk.ColorComponentGBit
	}
	if m&renderer.ColorWriteBlue != 0 {
		out |= vk.ColorComponentBBit
	}
	if m&renderer.ColorWriteAlpha != 0 {
		out |= vk.ColorComponentABit
	}
	return vk.ColorComponentFlags(out)
}

// compareOp relies on both enums listing the functions in the same order.
func compareOp(f renderer.ComparisonFunc) vk.CompareOp {
	if f > renderer.CompareAlways {
		return vk.CompareOpAlways
	}
	return vk.CompareOp(f)
}

func primitiveTopology(t renderer.Topology) vk.PrimitiveTopology {
	if t == renderer.TopologyTriangleStrip {
		return vk.PrimitiveTopologyTriangleStrip
	}
	return vk.PrimitiveTopologyTriangleList
}

func attributeFormat(components uint32) vk.Format {
	switch components {
	case 1:
		return vk.FormatR32Sfloat
	case 2:
		return vk.FormatR32g32Sfloat
	case 3:
		return vk.FormatR32g32b32Sfloat
	}
	return vk.FormatR32g32b32a32Sfloat
}

func bool32(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

func vertexAttributes(attrs []renderer.VertexAttribute) []vk.VertexInputAttributeDescription {
	out := make([]vk.VertexInputAttributeDescription, len(attrs))
	for i, a := range attrs {
		out[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   attributeFormat(a.Components),
			Offset:   a.Offset,
		}
	}
	return out
}

func NewGraphicsPipeline(context *VulkanContext, renderpass *VulkanRenderpass, states pipelineStates) (*VulkanPipeline, error) {
	program := states.program
	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: program.Vertex,
			PName:  safeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: program.Pixel,
			PName:  safeString("main"),
		},
	}

	attributes := vertexAttributes(program.Attributes)
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                         vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount: 1,
		PVertexBindingDescriptions: []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    program.Stride,
			InputRate: vk.VertexInputRateVertex,
		}},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: primitiveTopology(states.topology),
	}

	// Viewport and scissor are dynamic, only the counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:            vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable: bool32(!states.rasterizer.DepthClip),
		PolygonMode:      polygonMode(states.rasterizer.Fill),
		LineWidth:        1.0,
		CullMode:         cullMode(states.rasterizer.Cull),
		// The projection keeps the top-left origin of the sprite space, so the
		// clockwise corners of a strip face the viewer.
		FrontFace: vk.FrontFaceClockwise,
	}
	if rasterizer.PolygonMode == vk.PolygonModeLine && !context.Device.FillModeNonSolid {
		core.LogWarn("wireframe fill is not supported by the device, drawing solid")
		rasterizer.PolygonMode = vk.PolygonModeFill
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   bool32(states.depth.DepthEnable),
		DepthWriteEnable:  bool32(states.depth.DepthWrite),
		DepthCompareOp:    compareOp(states.depth.DepthFunc),
		StencilTestEnable: bool32(states.depth.StencilEnable),
		MaxDepthBounds:    1.0,
	}

	b := states.blend
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments: []vk.PipelineColorBlendAttachmentState{{
			BlendEnable:         bool32(b.Enable),
			SrcColorBlendFactor: blendFactor(b.SrcColor),
			DstColorBlendFactor: blendFactor(b.DstColor),
			ColorBlendOp:        blendOp(b.ColorOp),
			SrcAlphaBlendFactor: blendFactor(b.SrcAlpha),
			DstAlphaBlendFactor: blendFactor(b.DstAlpha),
			AlphaBlendOp:        blendOp(b.AlphaOp),
			ColorWriteMask:      colorWriteMask(b.WriteMask),
		}},
	}

	dynamic := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamic)),
		PDynamicStates:    dynamic,
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              program.PipelineLayout,
		RenderPass:          renderpass.Handle,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if err := check(vk.CreateGraphicsPipelines(context.Device.LogicalDevice, vk.NullPipelineCache, 1,
		[]vk.GraphicsPipelineCreateInfo{info}, context.Allocator, pipelines), "vkCreateGraphicsPipelines"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	core.LogDebug("Graphics pipeline created: cull=%s fill=%s topology=%s",
		states.rasterizer.Cull, states.rasterizer.Fill, states.topology)
	return &VulkanPipeline{Handle: pipelines[0], Layout: program.PipelineLayout}, nil
}

func samplerAddressMode(m renderer.AddressMode) vk.SamplerAddressMode {
	switch m {
	case renderer.AddressModeClamp:
		return vk.SamplerAddressModeClampToEdge
	case renderer.AddressModeMirror:
		return vk.SamplerAddressModeMirroredRepeat
	}
	return vk.SamplerAddressModeRepeat
}

func SamplerCreate(context *VulkanContext, desc renderer.SamplerDesc) (vk.Sampler, error) {
	info := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    vk.FilterLinear,
		MinFilter:    vk.FilterLinear,
		MipmapMode:   vk.SamplerMipmapModeLinear,
		AddressModeU: samplerAddressMode(desc.AddressU),
		AddressModeV: samplerAddressMode(desc.AddressV),
		AddressModeW: samplerAddressMode(desc.AddressW),
		MinLod:       desc.MinLOD,
		MaxLod:       desc.MaxLOD,
		// Comparison is for depth samplers only.
		CompareEnable: vk.False,
		CompareOp:     compareOp(desc.Compare),
		BorderColor:   vk.BorderColorIntOpaqueBlack,
	}
	if desc.Filter == renderer.SamplerFilterAnisotropic && context.Device.SamplerAnisotropy {
		info.AnisotropyEnable = vk.True
		info.MaxAnisotropy = float32(desc.MaxAnisotropy)
	}

	var sampler vk.Sampler
	if err := check(vk.CreateSampler(context.Device.LogicalDevice, &info, context.Allocator, &sampler), "vkCreateSampler"); err != nil {
		core.LogError(err.Error())
		return vk.NullSampler, err
	}
	return sampler, nil
}
