package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-quad/engine/core"
	"github.com/spaghettifunk/anima-quad/engine/renderer"
)

type rasterizerState struct{ desc renderer.RasterizerDesc }

type blendState struct{ desc renderer.BlendDesc }

type depthStencilState struct{ desc renderer.DepthStencilDesc }

type samplerState struct {
	desc   renderer.SamplerDesc
	handle vk.Sampler
}

type bufferObject struct {
	*VulkanBuffer
	kind renderer.BufferKind
}

type textureObject struct {
	*VulkanImage
	name string
}

func (vr *VulkanRenderer) register(owner interface{}) renderer.Handle {
	return renderer.Handle(vr.objects.Acquire(owner))
}

func lookup[T any](vr *VulkanRenderer, h renderer.Handle, what string) (T, error) {
	var zero T
	owner, ok := vr.objects.Lookup(uint32(h)).(T)
	if !ok {
		return zero, fmt.Errorf("%s handle %d: %w", what, h, core.ErrInvalidHandle)
	}
	return owner, nil
}

func (vr *VulkanRenderer) ready() error {
	if !vr.initialized {
		return core.ErrPipelineNotInitialized
	}
	return nil
}

func (vr *VulkanRenderer) CreateRasterizerState(desc renderer.RasterizerDesc) (renderer.Handle, error) {
	if err := vr.ready(); err != nil {
		return renderer.InvalidHandle, err
	}
	return vr.register(&rasterizerState{desc: desc}), nil
}

func (vr *VulkanRenderer) CreateBlendState(desc renderer.BlendDesc) (renderer.Handle, error) {
	if err := vr.ready(); err != nil {
		return renderer.InvalidHandle, err
	}
	return vr.register(&blendState{desc: desc}), nil
}

func (vr *VulkanRenderer) CreateDepthStencilState(desc renderer.DepthStencilDesc) (renderer.Handle, error) {
	if err := vr.ready(); err != nil {
		return renderer.InvalidHandle, err
	}
	return vr.register(&depthStencilState{desc: desc}), nil
}

func (vr *VulkanRenderer) CreateSampler(desc renderer.SamplerDesc) (renderer.Handle, error) {
	if err := vr.ready(); err != nil {
		return renderer.InvalidHandle, err
	}
	handle, err := SamplerCreate(vr.context, desc)
	if err != nil {
		return renderer.InvalidHandle, fmt.Errorf("%w: %w", core.ErrCreationFailed, err)
	}
	return vr.register(&samplerState{desc: desc, handle: handle}), nil
}

func (vr *VulkanRenderer) CreateShaderProgram(desc renderer.ShaderProgramDesc) (renderer.Handle, error) {
	if err := vr.ready(); err != nil {
		return renderer.InvalidHandle, err
	}
	program, err := ShaderProgramCreate(vr.context, desc)
	if err != nil {
		return renderer.InvalidHandle, err
	}
	h := vr.register(program)
	vr.programs[h] = program
	core.LogDebug("shader program '%s' created with %d bindings", desc.Name, len(desc.Bindings))
	return h, nil
}

func (vr *VulkanRenderer) CreateBuffer(desc renderer.BufferDesc) (renderer.Handle, error) {
	if err := vr.ready(); err != nil {
		return renderer.InvalidHandle, err
	}
	if desc.Size == 0 {
		return renderer.InvalidHandle, fmt.Errorf("buffer of zero size: %w", core.ErrCreationFailed)
	}
	usage := vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	if desc.Kind == renderer.BufferKindVertex {
		usage = vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	}
	buf, err := BufferCreate(vr.context, uint64(desc.Size), usage)
	if err != nil {
		return renderer.InvalidHandle, fmt.Errorf("%w: %w", core.ErrCreationFailed, err)
	}
	if err := buf.Write(desc.Data); err != nil {
		buf.Destroy(vr.context)
		return renderer.InvalidHandle, err
	}
	return vr.register(&bufferObject{VulkanBuffer: buf, kind: desc.Kind}), nil
}

// CreateTexture uploads RGBA8 pixels through a staging buffer into a
// device local image that is left ready for sampling.
func (vr *VulkanRenderer) CreateTexture(desc renderer.TextureDesc) (renderer.Handle, error) {
	if err := vr.ready(); err != nil {
		return renderer.InvalidHandle, err
	}
	size := uint64(desc.Width) * uint64(desc.Height) * 4
	if size == 0 || uint64(len(desc.Pixels)) != size {
		return renderer.InvalidHandle, fmt.Errorf("texture '%s': %d bytes for %dx%d: %w", desc.Name, len(desc.Pixels), desc.Width, desc.Height, core.ErrCreationFailed)
	}
	ctx := vr.context

	staging, err := BufferCreate(ctx, size, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit))
	if err != nil {
		return renderer.InvalidHandle, fmt.Errorf("%w: %w", core.ErrCreationFailed, err)
	}
	defer staging.Destroy(ctx)
	if err := staging.Write(desc.Pixels); err != nil {
		return renderer.InvalidHandle, err
	}

	usage := vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit)
	img, err := ImageCreate(ctx, desc.Width, desc.Height, vk.FormatR8g8b8a8Unorm, usage, vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return renderer.InvalidHandle, fmt.Errorf("%w: %w", core.ErrCreationFailed, err)
	}

	pool := ctx.Device.GraphicsCommandPool
	cmd, err := AllocateAndBeginSingleUse(ctx, pool)
	if err != nil {
		img.Destroy(ctx)
		return renderer.InvalidHandle, err
	}
	if err := img.TransitionLayout(cmd, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); err != nil {
		cmd.Free(ctx, pool)
		img.Destroy(ctx)
		return renderer.InvalidHandle, err
	}
	img.CopyFromBuffer(cmd, staging.Handle)
	if err := img.TransitionLayout(cmd, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal); err != nil {
		cmd.Free(ctx, pool)
		img.Destroy(ctx)
		return renderer.InvalidHandle, err
	}
	if err := cmd.EndSingleUse(ctx, pool, ctx.Device.GraphicsQueue); err != nil {
		img.Destroy(ctx)
		return renderer.InvalidHandle, err
	}

	core.LogDebug("texture '%s' uploaded: %dx%d", desc.Name, desc.Width, desc.Height)
	return vr.register(&textureObject{VulkanImage: img, name: desc.Name}), nil
}

// Release destroys the object behind h. The GPU may still read it from the
// frame in flight, so the device is drained first.
func (vr *VulkanRenderer) Release(h renderer.Handle) error {
	owner := vr.objects.Lookup(uint32(h))
	if owner == nil {
		return fmt.Errorf("release handle %d: %w", h, core.ErrInvalidHandle)
	}
	if vr.context.Device != nil && vr.context.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)
	}
	vr.destroyObject(h, owner)
	return vr.objects.Release(uint32(h))
}

func (vr *VulkanRenderer) destroyObject(h renderer.Handle, owner interface{}) {
	ctx := vr.context
	switch o := owner.(type) {
	case *rasterizerState, *blendState, *depthStencilState:
		vr.unbindState(h)
	case *samplerState:
		forgetSampler(vr.resources.samplers, o.handle)
		vk.DestroySampler(ctx.Device.LogicalDevice, o.handle, ctx.Allocator)
	case *VulkanShaderProgram:
		vr.unbindState(h)
		delete(vr.programs, h)
		o.Destroy(ctx)
	case *bufferObject:
		if vr.vertexBuffer == o.VulkanBuffer {
			vr.vertexBuffer = nil
		}
		forgetBuffer(vr.resources.buffers, o.VulkanBuffer)
		o.Destroy(ctx)
	case *textureObject:
		forgetTexture(vr.resources.textures, o.VulkanImage)
		o.Destroy(ctx)
	}
}

// unbindState drops h from the bound state and destroys the pipeline
// variants built from it, handles are reused after release.
func (vr *VulkanRenderer) unbindState(h renderer.Handle) {
	for _, bound := range []*renderer.Handle{&vr.program, &vr.rasterizer, &vr.blend, &vr.depth} {
		if *bound == h {
			*bound = renderer.InvalidHandle
		}
	}
	vr.destroyPipelines(func(k pipelineKey) bool {
		return k.program == h || k.rasterizer == h || k.blend == h || k.depth == h
	})
}

func forgetSampler(m map[uint32]vk.Sampler, sampler vk.Sampler) {
	for b, v := range m {
		if v == sampler {
			delete(m, b)
		}
	}
}

func forgetBuffer(m map[uint32]*VulkanBuffer, buf *VulkanBuffer) {
	for b, v := range m {
		if v == buf {
			delete(m, b)
		}
	}
}

func forgetTexture(m map[uint32]*VulkanImage, img *VulkanImage) {
	for b, v := range m {
		if v == img {
			delete(m, b)
		}
	}
}

func (vr *VulkanRenderer) destroyObjects() {
	for id := uint32(1); vr.objects.Live() > 0; id++ {
		if owner := vr.objects.Lookup(id); owner != nil {
			vr.destroyObject(renderer.Handle(id), owner)
			_ = vr.objects.Release(id)
		}
	}
}

func (vr *VulkanRenderer) destroyPipelines(match func(pipelineKey) bool) {
	for k, p := range vr.pipelines {
		if match(k) {
			p.Destroy(vr.context)
			delete(vr.pipelines, k)
		}
	}
}

func (vr *VulkanRenderer) resetBindings() {
	vr.program = renderer.InvalidHandle
	vr.rasterizer = renderer.InvalidHandle
	vr.blend = renderer.InvalidHandle
	vr.depth = renderer.InvalidHandle
	vr.vertexBuffer = nil
	vr.resources = descriptorResources{
		buffers:  map[uint32]*VulkanBuffer{},
		textures: map[uint32]*VulkanImage{},
		samplers: map[uint32]vk.Sampler{},
	}
}

// currentPipeline returns the variant for the bound states, building it on
// first use.
func (vr *VulkanRenderer) currentPipeline() (*VulkanPipeline, *VulkanShaderProgram, error) {
	program, err := lookup[*VulkanShaderProgram](vr, vr.program, "shader program")
	if err != nil {
		return nil, nil, err
	}
	raster, err := lookup[*rasterizerState](vr, vr.rasterizer, "rasterizer state")
	if err != nil {
		return nil, nil, err
	}
	blend, err := lookup[*blendState](vr, vr.blend, "blend state")
	if err != nil {
		return nil, nil, err
	}
	depth, err := lookup[*depthStencilState](vr, vr.depth, "depth stencil state")
	if err != nil {
		return nil, nil, err
	}

	key := pipelineKey{program: vr.program, rasterizer: vr.rasterizer, blend: vr.blend, depth: vr.depth, topology: vr.topology}
	if p, ok := vr.pipelines[key]; ok {
		return p, program, nil
	}
	p, err := NewGraphicsPipeline(vr.context, vr.context.MainRenderpass, pipelineStates{
		program:    program,
		rasterizer: raster.desc,
		blend:      blend.desc,
		depth:      depth.desc,
		topology:   vr.topology,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", core.ErrCreationFailed, err)
	}
	vr.pipelines[key] = p
	return p, program, nil
}

func (vr *VulkanRenderer) UpdateBuffer(h renderer.Handle, data []byte) error {
	buf, err := lookup[*bufferObject](vr, h, "buffer")
	if err != nil {
		return err
	}
	return buf.Write(data)
}

func (vr *VulkanRenderer) SetViewport(vp renderer.Viewport) {
	vr.viewport = vp
}

func (vr *VulkanRenderer) SetTopology(t renderer.Topology) {
	vr.topology = t
}

func (vr *VulkanRenderer) BindRasterizerState(h renderer.Handle) error {
	if _, err := lookup[*rasterizerState](vr, h, "rasterizer state"); err != nil {
		return err
	}
	vr.rasterizer = h
	return nil
}

// BindBlendState takes the blend factor and sample mask for parity with the
// other backends. None of the blend states use constant factors and the
// pipelines are single sampled, so both are ignored.
func (vr *VulkanRenderer) BindBlendState(h renderer.Handle, blendFactor *renderer.Color, sampleMask uint32) error {
	if _, err := lookup[*blendState](vr, h, "blend state"); err != nil {
		return err
	}
	vr.blend = h
	return nil
}

func (vr *VulkanRenderer) BindDepthStencilState(h renderer.Handle, stencilRef uint32) error {
	if _, err := lookup[*depthStencilState](vr, h, "depth stencil state"); err != nil {
		return err
	}
	vr.depth = h
	return nil
}

func (vr *VulkanRenderer) BindShaderProgram(h renderer.Handle) error {
	if _, err := lookup[*VulkanShaderProgram](vr, h, "shader program"); err != nil {
		return err
	}
	vr.program = h
	return nil
}

func bindingNumber(stage renderer.ShaderStage, kind renderer.BindingKind, slot uint32) (uint32, error) {
	b, ok := renderer.FindBinding(stage, kind, slot)
	if !ok {
		return 0, fmt.Errorf("no %s stage binding for slot %d: %w", stage, slot, core.ErrInvalidHandle)
	}
	return b.Binding, nil
}

func (vr *VulkanRenderer) BindConstantBuffer(stage renderer.ShaderStage, slot uint32, h renderer.Handle) error {
	binding, err := bindingNumber(stage, renderer.BindingConstantBuffer, slot)
	if err != nil {
		return err
	}
	buf, err := lookup[*bufferObject](vr, h, "constant buffer")
	if err != nil {
		return err
	}
	if buf.kind != renderer.BufferKindConstant {
		return fmt.Errorf("buffer %d is not a constant buffer: %w", h, core.ErrInvalidHandle)
	}
	vr.resources.buffers[binding] = buf.VulkanBuffer
	return nil
}

func (vr *VulkanRenderer) BindSampler(stage renderer.ShaderStage, slot uint32, h renderer.Handle) error {
	binding, err := bindingNumber(stage, renderer.BindingTexture, slot)
	if err != nil {
		return err
	}
	s, err := lookup[*samplerState](vr, h, "sampler")
	if err != nil {
		return err
	}
	vr.resources.samplers[binding] = s.handle
	return nil
}

func (vr *VulkanRenderer) BindTexture(stage renderer.ShaderStage, slot uint32, h renderer.Handle) error {
	binding, err := bindingNumber(stage, renderer.BindingTexture, slot)
	if err != nil {
		return err
	}
	t, err := lookup[*textureObject](vr, h, "texture")
	if err != nil {
		return err
	}
	vr.resources.textures[binding] = t.VulkanImage
	return nil
}

func (vr *VulkanRenderer) BindVertexBuffer(h renderer.Handle, stride, offset uint32) error {
	buf, err := lookup[*bufferObject](vr, h, "vertex buffer")
	if err != nil {
		return err
	}
	if buf.kind != renderer.BufferKindVertex {
		return fmt.Errorf("buffer %d is not a vertex buffer: %w", h, core.ErrInvalidHandle)
	}
	vr.vertexBuffer = buf.VulkanBuffer
	vr.vertexStride = stride
	vr.vertexOffset = offset
	return nil
}
