package renderer

// BackendConfig is handed to Backend.Initialize.
type BackendConfig struct {
	ApplicationName string
	// Framebuffer size of the window in pixels.
	FramebufferWidth  uint32
	FramebufferHeight uint32
	// Fixed render resolution the viewport is expressed in.
	ResolutionWidth  uint32
	ResolutionHeight uint32
	BackBufferCount  uint32
	Validation       bool
}

// Backend is the GPU API the pipeline drives. Objects are created once and
// referenced by Handle, binds only record state for the next Draw.
type Backend interface {
	Name() string
	Initialize(cfg BackendConfig) error
	// Shutdown destroys the device. Objects not released before are leaked.
	Shutdown() error
	// Resized tells the backend the window framebuffer changed size.
	Resized(width, height uint32)
	// SupportsAnisotropy is valid after Initialize.
	SupportsAnisotropy() bool

	CreateRasterizerState(desc RasterizerDesc) (Handle, error)
	CreateBlendState(desc BlendDesc) (Handle, error)
	CreateDepthStencilState(desc DepthStencilDesc) (Handle, error)
	CreateSampler(desc SamplerDesc) (Handle, error)
	CreateShaderProgram(desc ShaderProgramDesc) (Handle, error)
	CreateBuffer(desc BufferDesc) (Handle, error)
	CreateTexture(desc TextureDesc) (Handle, error)
	Release(h Handle) error

	UpdateBuffer(h Handle, data []byte) error

	SetViewport(vp Viewport)
	SetTopology(t Topology)
	BindRasterizerState(h Handle) error
	BindBlendState(h Handle, blendFactor *Color, sampleMask uint32) error
	BindDepthStencilState(h Handle, stencilRef uint32) error
	BindShaderProgram(h Handle) error
	BindConstantBuffer(stage ShaderStage, slot uint32, h Handle) error
	BindSampler(stage ShaderStage, slot uint32, h Handle) error
	BindTexture(stage ShaderStage, slot uint32, h Handle) error
	BindVertexBuffer(h Handle, stride, offset uint32) error

	// Clear begins a frame. It returns core.ErrSwapchainBooting when the
	// frame has to be skipped.
	Clear(color Color, depth float32) error
	Draw(vertexCount, firstVertex uint32) error
	Present() error
}
