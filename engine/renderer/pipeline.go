package renderer

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-quad/engine/core"
	"github.com/spaghettifunk/anima-quad/engine/renderer/metadata"
)

// ConstantBuffer names the constant buffers owned by the pipeline.
type ConstantBuffer uint8

const (
	ConstantBufferWorld ConstantBuffer = iota
	ConstantBufferView
	ConstantBufferProjection
	ConstantBufferMaterial
	constantBufferCount
)

const matrixSize = 64

// Bindings is the resource layout shared by the shader program and every
// backend: VS b0..b2 hold world/view/projection, PS b0 the material and PS
// t0/s0 the sprite texture.
var Bindings = []ResourceBinding{
	{Stage: ShaderStageVertex, Kind: BindingConstantBuffer, Slot: 0, Binding: 0, Size: matrixSize},
	{Stage: ShaderStageVertex, Kind: BindingConstantBuffer, Slot: 1, Binding: 1, Size: matrixSize},
	{Stage: ShaderStageVertex, Kind: BindingConstantBuffer, Slot: 2, Binding: 2, Size: matrixSize},
	{Stage: ShaderStagePixel, Kind: BindingConstantBuffer, Slot: 0, Binding: 3, Size: metadata.MaterialSize},
	{Stage: ShaderStagePixel, Kind: BindingTexture, Slot: 0, Binding: 4},
}

// FindBinding returns the backend binding number of a stage slot.
func FindBinding(stage ShaderStage, kind BindingKind, slot uint32) (ResourceBinding, bool) {
	for _, b := range Bindings {
		if b.Stage == stage && b.Kind == kind && b.Slot == slot {
			return b, true
		}
	}
	return ResourceBinding{}, false
}

type PipelineConfig struct {
	Backend BackendConfig
	// Extent of the 2D projection, in sprite coordinates.
	ScreenWidth  float32
	ScreenHeight float32
	ClearColor   Color
	ClearDepth   float32
	Anisotropy   uint32
	VertexShader []uint32
	PixelShader  []uint32
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Backend: BackendConfig{
			ApplicationName:   "AppWindow",
			FramebufferWidth:  960,
			FramebufferHeight: 540,
			ResolutionWidth:   1920,
			ResolutionHeight:  1080,
			BackBufferCount:   1,
		},
		ScreenWidth:  960,
		ScreenHeight: 540,
		ClearColor:   Color{0, 1, 0, 1},
		ClearDepth:   1,
		Anisotropy:   MaxAnisotropy,
	}
}

// Pipeline owns every state object of the renderer and the current selection
// of each. All GPU work of the sprite goes through it.
type Pipeline struct {
	backend     Backend
	cfg         PipelineConfig
	backendUp   bool
	initialized bool

	// creation order, released in reverse
	created []Handle

	rasterizers [len(cullModeNames)][len(fillModeNames)]Handle
	blends      [len(blendModeNames)]Handle
	depths      [len(depthModeNames)]Handle
	sampler     Handle
	program     Handle
	constants   [constantBufferCount]Handle

	cull  CullMode
	fill  FillMode
	blend BlendMode
	depth DepthMode
}

func NewPipeline(backend Backend) *Pipeline {
	return &Pipeline{backend: backend}
}

func (p *Pipeline) Initialize(cfg PipelineConfig) error {
	if p.initialized {
		return nil
	}
	p.cfg = cfg
	if err := p.backend.Initialize(cfg.Backend); err != nil {
		core.LogError("failed to initialize %s backend: %s", p.backend.Name(), err)
		return fmt.Errorf("initialize %s backend: %w", p.backend.Name(), err)
	}
	p.backendUp = true

	if err := p.createStates(); err != nil {
		core.LogError("failed to create pipeline states: %s", err)
		if terr := p.Terminate(); terr != nil {
			core.LogWarn("pipeline cleanup after failed init: %s", terr)
		}
		return err
	}
	p.initialized = true
	core.LogInfo("render pipeline initialized on %s backend (%d objects)", p.backend.Name(), len(p.created))
	return nil
}

func (p *Pipeline) track(h Handle, err error) (Handle, error) {
	if err != nil {
		return InvalidHandle, err
	}
	if !h.Valid() {
		return InvalidHandle, core.ErrCreationFailed
	}
	p.created = append(p.created, h)
	return h, nil
}

func (p *Pipeline) createStates() error {
	var err error
	for c := range p.rasterizers {
		for f := range p.rasterizers[c] {
			desc := RasterizerStates[c][f]
			if p.rasterizers[c][f], err = p.track(p.backend.CreateRasterizerState(desc)); err != nil {
				return fmt.Errorf("create rasterizer state %s/%s: %w", desc.Cull, desc.Fill, err)
			}
		}
	}
	if err := p.bindRasterizer(CullModeBack, FillModeSolid); err != nil {
		return err
	}

	for b := range p.blends {
		if p.blends[b], err = p.track(p.backend.CreateBlendState(BlendStates[b])); err != nil {
			return fmt.Errorf("create blend state %s: %w", BlendMode(b), err)
		}
	}
	if err := p.bindBlend(BlendModeAlphaBlend); err != nil {
		return err
	}

	for d := range p.depths {
		if p.depths[d], err = p.track(p.backend.CreateDepthStencilState(DepthStencilStates[d])); err != nil {
			return fmt.Errorf("create depth state %s: %w", DepthMode(d), err)
		}
	}
	if err := p.bindDepth(DepthModeEnabled); err != nil {
		return err
	}

	sampler := DefaultSampler(p.cfg.Anisotropy)
	if !p.backend.SupportsAnisotropy() {
		core.LogWarn("device has no anisotropic filtering, using linear")
		sampler.Filter = SamplerFilterLinear
		sampler.MaxAnisotropy = 1
	}
	if p.sampler, err = p.track(p.backend.CreateSampler(sampler)); err != nil {
		return fmt.Errorf("create sampler: %w", err)
	}

	program := ShaderProgramDesc{
		Name:       "sprite",
		VertexCode: p.cfg.VertexShader,
		PixelCode:  p.cfg.PixelShader,
		Stride:     metadata.VertexSize,
		Bindings:   Bindings,
	}
	for _, e := range metadata.VertexLayout {
		program.Attributes = append(program.Attributes, VertexAttribute{
			Location:   e.Location,
			Components: e.Format.Components(),
			Offset:     e.Offset,
		})
	}
	if p.program, err = p.track(p.backend.CreateShaderProgram(program)); err != nil {
		return fmt.Errorf("create shader program: %w: %w", core.ErrShaderCompile, err)
	}

	sizes := [constantBufferCount]uint32{matrixSize, matrixSize, matrixSize, metadata.MaterialSize}
	for i, size := range sizes {
		desc := BufferDesc{Kind: BufferKindConstant, Size: size, Dynamic: true}
		if p.constants[i], err = p.track(p.backend.CreateBuffer(desc)); err != nil {
			return fmt.Errorf("create constant buffer %d: %w", i, err)
		}
	}

	p.backend.SetViewport(Viewport{
		Width:    float32(p.cfg.Backend.ResolutionWidth),
		Height:   float32(p.cfg.Backend.ResolutionHeight),
		MinDepth: 0,
		MaxDepth: 1,
	})

	if err := p.backend.BindShaderProgram(p.program); err != nil {
		return err
	}
	for i, cb := range []ConstantBuffer{ConstantBufferWorld, ConstantBufferView, ConstantBufferProjection} {
		if err := p.backend.BindConstantBuffer(ShaderStageVertex, uint32(i), p.constants[cb]); err != nil {
			return err
		}
	}
	if err := p.backend.BindSampler(ShaderStagePixel, 0, p.sampler); err != nil {
		return err
	}
	return p.backend.BindConstantBuffer(ShaderStagePixel, 0, p.constants[ConstantBufferMaterial])
}

// Terminate releases every object in reverse creation order and shuts the
// backend down. Calling it again does nothing.
func (p *Pipeline) Terminate() error {
	if !p.backendUp {
		return nil
	}
	var errs []error
	for i := len(p.created) - 1; i >= 0; i-- {
		if err := p.backend.Release(p.created[i]); err != nil {
			errs = append(errs, err)
		}
	}
	p.created = nil
	p.rasterizers = [len(cullModeNames)][len(fillModeNames)]Handle{}
	p.blends = [len(blendModeNames)]Handle{}
	p.depths = [len(depthModeNames)]Handle{}
	p.sampler, p.program = InvalidHandle, InvalidHandle
	p.constants = [constantBufferCount]Handle{}

	if err := p.backend.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	p.initialized = false
	p.backendUp = false
	core.LogInfo("render pipeline terminated")
	return errors.Join(errs...)
}

func (p *Pipeline) Initialized() bool {
	return p.initialized
}

func (p *Pipeline) Backend() Backend {
	return p.backend
}

func (p *Pipeline) ready() error {
	if !p.initialized {
		return core.ErrPipelineNotInitialized
	}
	return nil
}

func (p *Pipeline) bindRasterizer(c CullMode, f FillMode) error {
	if err := p.backend.BindRasterizerState(p.rasterizers[c][f]); err != nil {
		return err
	}
	p.cull, p.fill = c, f
	return nil
}

func (p *Pipeline) bindBlend(b BlendMode) error {
	if err := p.backend.BindBlendState(p.blends[b], nil, 0xffffffff); err != nil {
		return err
	}
	p.blend = b
	return nil
}

func (p *Pipeline) bindDepth(d DepthMode) error {
	if err := p.backend.BindDepthStencilState(p.depths[d], 0); err != nil {
		return err
	}
	p.depth = d
	return nil
}

func (p *Pipeline) SetRasterizerState(c CullMode, f FillMode) error {
	if err := p.ready(); err != nil {
		return err
	}
	if !c.Valid() || !f.Valid() {
		return fmt.Errorf("rasterizer state %s/%s: %w", c, f, core.ErrInvalidMode)
	}
	if c == p.cull && f == p.fill {
		return nil
	}
	return p.bindRasterizer(c, f)
}

func (p *Pipeline) SetCullMode(c CullMode) error {
	return p.SetRasterizerState(c, p.fill)
}

func (p *Pipeline) SetFillMode(f FillMode) error {
	return p.SetRasterizerState(p.cull, f)
}

func (p *Pipeline) SetBlendMode(b BlendMode) error {
	if err := p.ready(); err != nil {
		return err
	}
	if !b.Valid() {
		return fmt.Errorf("blend mode %s: %w", b, core.ErrInvalidMode)
	}
	if b == p.blend {
		return nil
	}
	return p.bindBlend(b)
}

func (p *Pipeline) SetDepthMode(d DepthMode) error {
	if err := p.ready(); err != nil {
		return err
	}
	if !d.Valid() {
		return fmt.Errorf("depth mode %s: %w", d, core.ErrInvalidMode)
	}
	if d == p.depth {
		return nil
	}
	return p.bindDepth(d)
}

func (p *Pipeline) CullMode() CullMode   { return p.cull }
func (p *Pipeline) FillMode() FillMode   { return p.fill }
func (p *Pipeline) BlendMode() BlendMode { return p.blend }
func (p *Pipeline) DepthMode() DepthMode { return p.depth }

// OrthoOffCenter maps the screen rectangle onto clip space with +y pointing
// down: top goes to -1, bottom to +1 and near..far to 0..1.
func OrthoOffCenter(left, right, top, bottom, near, far float32) mgl32.Mat4 {
	return mgl32.Mat4{
		2 / (right - left), 0, 0, 0,
		0, 2 / (bottom - top), 0, 0,
		0, 0, 1 / (far - near), 0,
		-(right + left) / (right - left), -(bottom + top) / (bottom - top), -near / (far - near), 1,
	}
}

// Projection2D is the projection uploaded by SetMatrixWorldViewProjection2D.
func (p *Pipeline) Projection2D() mgl32.Mat4 {
	return OrthoOffCenter(0, p.cfg.ScreenWidth, 0, p.cfg.ScreenHeight, 0, 1)
}

// SetMatrixWorldViewProjection2D uploads identity world and view matrices and
// the screen-space projection. mgl32 is column-major like std140 so the
// matrices go up untransposed.
func (p *Pipeline) SetMatrixWorldViewProjection2D() error {
	if err := p.ready(); err != nil {
		return err
	}
	world := mgl32.Ident4()
	view := mgl32.Ident4()
	projection := p.Projection2D()
	matrices := map[ConstantBuffer]mgl32.Mat4{
		ConstantBufferWorld:      world,
		ConstantBufferView:       view,
		ConstantBufferProjection: projection,
	}
	for _, cb := range []ConstantBuffer{ConstantBufferWorld, ConstantBufferView, ConstantBufferProjection} {
		m := matrices[cb]
		if err := p.backend.UpdateBuffer(p.constants[cb], metadata.PackFloats(m[:])); err != nil {
			return fmt.Errorf("upload matrix %d: %w", cb, err)
		}
	}
	return nil
}

func (p *Pipeline) SetMaterial(m *metadata.Material) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.backend.UpdateBuffer(p.constants[ConstantBufferMaterial], m.Bytes())
}

func (p *Pipeline) CreateVertexBuffer(vertexCount uint32) (Handle, error) {
	if err := p.ready(); err != nil {
		return InvalidHandle, err
	}
	h, err := p.backend.CreateBuffer(BufferDesc{
		Kind:    BufferKindVertex,
		Size:    vertexCount * metadata.VertexSize,
		Dynamic: true,
	})
	if err != nil {
		return InvalidHandle, fmt.Errorf("create vertex buffer: %w", err)
	}
	return h, nil
}

func (p *Pipeline) CreateTexture(t *metadata.Texture) (Handle, error) {
	if err := p.ready(); err != nil {
		return InvalidHandle, err
	}
	if t == nil || t.Width == 0 || t.Height == 0 || len(t.Pixels) != int(t.Width*t.Height*4) {
		return InvalidHandle, fmt.Errorf("texture has no usable RGBA8 pixels: %w", core.ErrCreationFailed)
	}
	h, err := p.backend.CreateTexture(TextureDesc{
		Name:   t.Name,
		Width:  t.Width,
		Height: t.Height,
		Pixels: t.Pixels,
	})
	if err != nil {
		return InvalidHandle, fmt.Errorf("create texture `%s`: %w", t.Name, err)
	}
	return h, nil
}

func (p *Pipeline) WriteVertices(h Handle, vertices []metadata.Vertex) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.backend.UpdateBuffer(h, metadata.PackVertices(vertices))
}

func (p *Pipeline) BindVertexBuffer(h Handle) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.backend.BindVertexBuffer(h, metadata.VertexSize, 0)
}

// BindTexture binds a texture to a pixel shader slot.
func (p *Pipeline) BindTexture(slot uint32, h Handle) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.backend.BindTexture(ShaderStagePixel, slot, h)
}

func (p *Pipeline) SetTopology(t Topology) error {
	if err := p.ready(); err != nil {
		return err
	}
	p.backend.SetTopology(t)
	return nil
}

func (p *Pipeline) Draw(vertexCount, firstVertex uint32) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.backend.Draw(vertexCount, firstVertex)
}

// Release frees an object created through the pipeline passthroughs.
func (p *Pipeline) Release(h Handle) error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.backend.Release(h)
}

// Clear begins the frame. core.ErrSwapchainBooting means skip this frame.
func (p *Pipeline) Clear() error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.backend.Clear(p.cfg.ClearColor, p.cfg.ClearDepth)
}

func (p *Pipeline) Present() error {
	if err := p.ready(); err != nil {
		return err
	}
	return p.backend.Present()
}

func (p *Pipeline) Resized(width, height uint32) {
	if p.backendUp {
		p.backend.Resized(width, height)
	}
}
