// Package headless is a renderer backend without a GPU. It validates every
// call like a device would and records what was created, bound and drawn.
package headless

import (
	"fmt"

	"github.com/spaghettifunk/anima-quad/engine/core"
	"github.com/spaghettifunk/anima-quad/engine/renderer"
	"github.com/spaghettifunk/anima-quad/engine/renderer/metadata"
)

type Kind string

const (
	KindRasterizer Kind = "rasterizer"
	KindBlend      Kind = "blend"
	KindDepth      Kind = "depth-stencil"
	KindSampler    Kind = "sampler"
	KindProgram    Kind = "shader-program"
	KindBuffer     Kind = "buffer"
	KindTexture    Kind = "texture"
)

type object struct {
	kind Kind
	desc interface{}
	data []byte
}

// Event is one entry of the creation/release log.
type Event struct {
	Release bool
	Kind    Kind
	Handle  renderer.Handle
}

// DrawCall is a snapshot of the bound state at Draw time.
type DrawCall struct {
	VertexCount uint32
	FirstVertex uint32
	Topology    renderer.Topology
	Rasterizer  renderer.RasterizerDesc
	Blend       renderer.BlendDesc
	Depth       renderer.DepthStencilDesc
	Texture     renderer.Handle
	Vertices    []metadata.Vertex
	Material    []byte
}

type binding struct {
	stage renderer.ShaderStage
	slot  uint32
}

type Backend struct {
	ids          core.Identifiers
	initialized  bool
	config       renderer.BackendConfig
	noAnisotropy bool

	Events   []Event
	Binds    int
	Viewport renderer.Viewport
	Draws    []DrawCall
	Frames   int
	Resizes  int

	inFrame      bool
	rasterizer   renderer.Handle
	blend        renderer.Handle
	depth        renderer.Handle
	program      renderer.Handle
	vertexBuffer renderer.Handle
	stride       uint32
	topology     renderer.Topology
	constants    map[binding]renderer.Handle
	samplers     map[binding]renderer.Handle
	textures     map[binding]renderer.Handle

	// FailOn makes the n-th Create call (1-based) fail, 0 disables it.
	FailOn  int
	creates int
}

func New() *Backend {
	return &Backend{}
}

// WithoutAnisotropy makes the backend report a device without anisotropic filtering.
func (b *Backend) WithoutAnisotropy() *Backend {
	b.noAnisotropy = true
	return b
}

func (b *Backend) Name() string {
	return "headless"
}

func (b *Backend) Initialize(cfg renderer.BackendConfig) error {
	if b.initialized {
		return fmt.Errorf("headless backend already initialized")
	}
	if cfg.ResolutionWidth == 0 || cfg.ResolutionHeight == 0 {
		return fmt.Errorf("resolution %dx%d: %w", cfg.ResolutionWidth, cfg.ResolutionHeight, core.ErrCreationFailed)
	}
	b.config = cfg
	b.constants = make(map[binding]renderer.Handle)
	b.samplers = make(map[binding]renderer.Handle)
	b.textures = make(map[binding]renderer.Handle)
	b.initialized = true
	return nil
}

func (b *Backend) Shutdown() error {
	if !b.initialized {
		return nil
	}
	if n := b.ids.Live(); n > 0 {
		core.LogWarn("headless backend shut down with %d live objects", n)
	}
	b.initialized = false
	return nil
}

func (b *Backend) Initialized() bool {
	return b.initialized
}

func (b *Backend) Resized(width, height uint32) {
	b.config.FramebufferWidth, b.config.FramebufferHeight = width, height
	b.Resizes++
}

func (b *Backend) SupportsAnisotropy() bool {
	return !b.noAnisotropy
}

// Live returns the number of created and not yet released objects.
func (b *Backend) Live() int {
	return b.ids.Live()
}

func (b *Backend) create(kind Kind, desc interface{}, size uint32) (renderer.Handle, error) {
	if !b.initialized {
		return renderer.InvalidHandle, fmt.Errorf("create %s on a stopped device: %w", kind, core.ErrCreationFailed)
	}
	b.creates++
	if b.FailOn > 0 && b.creates == b.FailOn {
		return renderer.InvalidHandle, fmt.Errorf("create %s: %w", kind, core.ErrCreationFailed)
	}
	obj := &object{kind: kind, desc: desc, data: make([]byte, size)}
	h := renderer.Handle(b.ids.Acquire(obj))
	b.Events = append(b.Events, Event{Kind: kind, Handle: h})
	return h, nil
}

func (b *Backend) lookup(h renderer.Handle, kind Kind) (*object, error) {
	obj, ok := b.ids.Lookup(uint32(h)).(*object)
	if !ok {
		return nil, fmt.Errorf("%s handle %d: %w", kind, h, core.ErrInvalidHandle)
	}
	if obj.kind != kind {
		return nil, fmt.Errorf("handle %d is a %s, not a %s: %w", h, obj.kind, kind, core.ErrInvalidHandle)
	}
	return obj, nil
}

// Desc returns the descriptor a live handle was created with.
func (b *Backend) Desc(h renderer.Handle) interface{} {
	if obj, ok := b.ids.Lookup(uint32(h)).(*object); ok {
		return obj.desc
	}
	return nil
}

// Contents returns a copy of the current data of a buffer or texture.
func (b *Backend) Contents(h renderer.Handle) []byte {
	obj, ok := b.ids.Lookup(uint32(h)).(*object)
	if !ok {
		return nil
	}
	return append([]byte(nil), obj.data...)
}

func (b *Backend) CreateRasterizerState(desc renderer.RasterizerDesc) (renderer.Handle, error) {
	if !desc.Cull.Valid() || !desc.Fill.Valid() {
		return renderer.InvalidHandle, core.ErrInvalidMode
	}
	return b.create(KindRasterizer, desc, 0)
}

func (b *Backend) CreateBlendState(desc renderer.BlendDesc) (renderer.Handle, error) {
	return b.create(KindBlend, desc, 0)
}

func (b *Backend) CreateDepthStencilState(desc renderer.DepthStencilDesc) (renderer.Handle, error) {
	return b.create(KindDepth, desc, 0)
}

func (b *Backend) CreateSampler(desc renderer.SamplerDesc) (renderer.Handle, error) {
	if desc.MaxAnisotropy > renderer.MaxAnisotropy {
		return renderer.InvalidHandle, fmt.Errorf("anisotropy %d: %w", desc.MaxAnisotropy, core.ErrCreationFailed)
	}
	return b.create(KindSampler, desc, 0)
}

func (b *Backend) CreateShaderProgram(desc renderer.ShaderProgramDesc) (renderer.Handle, error) {
	if len(desc.VertexCode) == 0 || len(desc.PixelCode) == 0 {
		return renderer.InvalidHandle, fmt.Errorf("shader program `%s` without bytecode: %w", desc.Name, core.ErrShaderCompile)
	}
	return b.create(KindProgram, desc, 0)
}

func (b *Backend) CreateBuffer(desc renderer.BufferDesc) (renderer.Handle, error) {
	if desc.Size == 0 {
		return renderer.InvalidHandle, fmt.Errorf("zero sized buffer: %w", core.ErrCreationFailed)
	}
	h, err := b.create(KindBuffer, desc, desc.Size)
	if err != nil {
		return h, err
	}
	if desc.Data != nil {
		return h, b.UpdateBuffer(h, desc.Data)
	}
	return h, nil
}

func (b *Backend) CreateTexture(desc renderer.TextureDesc) (renderer.Handle, error) {
	size := desc.Width * desc.Height * 4
	if size == 0 || len(desc.Pixels) != int(size) {
		return renderer.InvalidHandle, fmt.Errorf("texture `%s` %dx%d with %d bytes: %w", desc.Name, desc.Width, desc.Height, len(desc.Pixels), core.ErrCreationFailed)
	}
	h, err := b.create(KindTexture, desc, size)
	if err != nil {
		return h, err
	}
	obj, _ := b.lookup(h, KindTexture)
	copy(obj.data, desc.Pixels)
	return h, nil
}

func (b *Backend) Release(h renderer.Handle) error {
	obj, ok := b.ids.Lookup(uint32(h)).(*object)
	if !ok {
		return fmt.Errorf("release handle %d: %w", h, core.ErrInvalidHandle)
	}
	if err := b.ids.Release(uint32(h)); err != nil {
		return err
	}
	b.Events = append(b.Events, Event{Release: true, Kind: obj.kind, Handle: h})
	return nil
}

func (b *Backend) UpdateBuffer(h renderer.Handle, data []byte) error {
	obj, err := b.lookup(h, KindBuffer)
	if err != nil {
		return err
	}
	if len(data) > len(obj.data) {
		return fmt.Errorf("write of %d bytes into a %d byte buffer: %w", len(data), len(obj.data), core.ErrInvalidHandle)
	}
	copy(obj.data, data)
	return nil
}

func (b *Backend) SetViewport(vp renderer.Viewport) {
	b.Viewport = vp
}

func (b *Backend) SetTopology(t renderer.Topology) {
	b.topology = t
}

func (b *Backend) bind(dst *renderer.Handle, h renderer.Handle, kind Kind) error {
	if _, err := b.lookup(h, kind); err != nil {
		return err
	}
	*dst = h
	b.Binds++
	return nil
}

func (b *Backend) BindRasterizerState(h renderer.Handle) error {
	return b.bind(&b.rasterizer, h, KindRasterizer)
}

func (b *Backend) BindBlendState(h renderer.Handle, _ *renderer.Color, _ uint32) error {
	return b.bind(&b.blend, h, KindBlend)
}

func (b *Backend) BindDepthStencilState(h renderer.Handle, _ uint32) error {
	return b.bind(&b.depth, h, KindDepth)
}

func (b *Backend) BindShaderProgram(h renderer.Handle) error {
	return b.bind(&b.program, h, KindProgram)
}

func (b *Backend) bindSlot(m map[binding]renderer.Handle, stage renderer.ShaderStage, slot uint32, h renderer.Handle, kind Kind) error {
	var bound renderer.Handle
	if err := b.bind(&bound, h, kind); err != nil {
		return err
	}
	m[binding{stage: stage, slot: slot}] = bound
	return nil
}

func (b *Backend) BindConstantBuffer(stage renderer.ShaderStage, slot uint32, h renderer.Handle) error {
	return b.bindSlot(b.constants, stage, slot, h, KindBuffer)
}

func (b *Backend) BindSampler(stage renderer.ShaderStage, slot uint32, h renderer.Handle) error {
	return b.bindSlot(b.samplers, stage, slot, h, KindSampler)
}

func (b *Backend) BindTexture(stage renderer.ShaderStage, slot uint32, h renderer.Handle) error {
	return b.bindSlot(b.textures, stage, slot, h, KindTexture)
}

func (b *Backend) BindVertexBuffer(h renderer.Handle, stride, _ uint32) error {
	if err := b.bind(&b.vertexBuffer, h, KindBuffer); err != nil {
		return err
	}
	b.stride = stride
	return nil
}

func (b *Backend) Clear(_ renderer.Color, _ float32) error {
	if !b.initialized {
		return core.ErrPipelineNotInitialized
	}
	b.inFrame = true
	return nil
}

func (b *Backend) Draw(vertexCount, firstVertex uint32) error {
	if !b.inFrame {
		return fmt.Errorf("draw outside of a frame")
	}
	if b.program == renderer.InvalidHandle || b.vertexBuffer == renderer.InvalidHandle {
		return fmt.Errorf("draw without a shader program or vertex buffer: %w", core.ErrInvalidHandle)
	}
	vb, err := b.lookup(b.vertexBuffer, KindBuffer)
	if err != nil {
		return err
	}
	if b.stride != metadata.VertexSize || uint32(len(vb.data)) < (firstVertex+vertexCount)*b.stride {
		return fmt.Errorf("draw of %d vertices from %d overruns the vertex buffer", vertexCount, firstVertex)
	}
	call := DrawCall{
		VertexCount: vertexCount,
		FirstVertex: firstVertex,
		Topology:    b.topology,
		Texture:     b.textures[binding{stage: renderer.ShaderStagePixel, slot: 0}],
		Vertices:    metadata.UnpackVertices(vb.data[firstVertex*b.stride : (firstVertex+vertexCount)*b.stride]),
	}
	if d, ok := b.Desc(b.rasterizer).(renderer.RasterizerDesc); ok {
		call.Rasterizer = d
	}
	if d, ok := b.Desc(b.blend).(renderer.BlendDesc); ok {
		call.Blend = d
	}
	if d, ok := b.Desc(b.depth).(renderer.DepthStencilDesc); ok {
		call.Depth = d
	}
	if h, ok := b.constants[binding{stage: renderer.ShaderStagePixel, slot: 0}]; ok {
		call.Material = b.Contents(h)
	}
	b.Draws = append(b.Draws, call)
	return nil
}

func (b *Backend) Present() error {
	if !b.inFrame {
		return fmt.Errorf("present without a frame")
	}
	b.inFrame = false
	b.Frames++
	return nil
}
