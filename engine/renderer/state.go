package renderer

import "fmt"

// Handle identifies an object created by a Backend. 0 is never a valid handle.
type Handle uint32

const InvalidHandle Handle = 0

func (h Handle) Valid() bool {
	return h != InvalidHandle
}

type CullMode uint8

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

var cullModeNames = [...]string{"none", "front", "back"}

func (c CullMode) Valid() bool {
	return int(c) < len(cullModeNames)
}

func (c CullMode) String() string {
	if !c.Valid() {
		return fmt.Sprintf("CullMode(%d)", uint8(c))
	}
	return cullModeNames[c]
}

type FillMode uint8

const (
	FillModeWireframe FillMode = iota
	FillModeSolid
)

var fillModeNames = [...]string{"wireframe", "solid"}

func (f FillMode) Valid() bool {
	return int(f) < len(fillModeNames)
}

func (f FillMode) String() string {
	if !f.Valid() {
		return fmt.Sprintf("FillMode(%d)", uint8(f))
	}
	return fillModeNames[f]
}

type BlendMode uint8

const (
	BlendModeNone BlendMode = iota
	BlendModeAdd
	BlendModeSubtract
	BlendModeAlphaBlend
)

var blendModeNames = [...]string{"none", "add", "subtract", "alpha-blend"}

func (b BlendMode) Valid() bool {
	return int(b) < len(blendModeNames)
}

func (b BlendMode) String() string {
	if !b.Valid() {
		return fmt.Sprintf("BlendMode(%d)", uint8(b))
	}
	return blendModeNames[b]
}

type DepthMode uint8

const (
	DepthModeEnabled DepthMode = iota
	DepthModeDisabled
)

var depthModeNames = [...]string{"enabled", "disabled"}

func (d DepthMode) Valid() bool {
	return int(d) < len(depthModeNames)
}

func (d DepthMode) String() string {
	if !d.Valid() {
		return fmt.Sprintf("DepthMode(%d)", uint8(d))
	}
	return depthModeNames[d]
}

type BlendFactor uint8

const (
	BlendFactorZero BlendFactor = iota
	BlendFactorOne
	BlendFactorSrcAlpha
	BlendFactorInvSrcAlpha
)

type BlendOp uint8

const (
	BlendOpAdd BlendOp = iota
	BlendOpSubtract
	BlendOpReverseSubtract
)

type ColorWriteMask uint8

const (
	ColorWriteRed ColorWriteMask = 1 << iota
	ColorWriteGreen
	ColorWriteBlue
	ColorWriteAlpha

	ColorWriteNone ColorWriteMask = 0
	ColorWriteAll                 = ColorWriteRed | ColorWriteGreen | ColorWriteBlue | ColorWriteAlpha
)

type ComparisonFunc uint8

const (
	CompareNever ComparisonFunc = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

type RasterizerDesc struct {
	Cull      CullMode
	Fill      FillMode
	DepthClip bool
}

type BlendDesc struct {
	Enable    bool
	SrcColor  BlendFactor
	DstColor  BlendFactor
	ColorOp   BlendOp
	SrcAlpha  BlendFactor
	DstAlpha  BlendFactor
	AlphaOp   BlendOp
	WriteMask ColorWriteMask
}

type DepthStencilDesc struct {
	DepthEnable   bool
	DepthWrite    bool
	DepthFunc     ComparisonFunc
	StencilEnable bool
}

type SamplerFilter uint8

const (
	SamplerFilterLinear SamplerFilter = iota
	SamplerFilterAnisotropic
)

type AddressMode uint8

const (
	AddressModeWrap AddressMode = iota
	AddressModeClamp
	AddressModeMirror
)

// LODMax lifts the mip clamp, the sampler may use every level of the texture.
const LODMax float32 = 3.402823466e+38

type SamplerDesc struct {
	Filter        SamplerFilter
	AddressU      AddressMode
	AddressV      AddressMode
	AddressW      AddressMode
	MaxAnisotropy uint32
	Compare       ComparisonFunc
	MinLOD        float32
	MaxLOD        float32
}

// RasterizerStates is indexed by cull mode then fill mode.
var RasterizerStates = func() (t [len(cullModeNames)][len(fillModeNames)]RasterizerDesc) {
	for c := range t {
		for f := range t[c] {
			t[c][f] = RasterizerDesc{Cull: CullMode(c), Fill: FillMode(f), DepthClip: true}
		}
	}
	return t
}()

var BlendStates = [len(blendModeNames)]BlendDesc{
	BlendModeNone:       blendDesc(BlendFactorOne, BlendFactorZero, BlendOpAdd),
	BlendModeAdd:        blendDesc(BlendFactorSrcAlpha, BlendFactorOne, BlendOpAdd),
	BlendModeSubtract:   blendDesc(BlendFactorSrcAlpha, BlendFactorOne, BlendOpReverseSubtract),
	BlendModeAlphaBlend: blendDesc(BlendFactorSrcAlpha, BlendFactorInvSrcAlpha, BlendOpAdd),
}

// alpha is always passed through: One/Zero/Add.
func blendDesc(src, dst BlendFactor, op BlendOp) BlendDesc {
	return BlendDesc{
		Enable:    true,
		SrcColor:  src,
		DstColor:  dst,
		ColorOp:   op,
		SrcAlpha:  BlendFactorOne,
		DstAlpha:  BlendFactorZero,
		AlphaOp:   BlendOpAdd,
		WriteMask: ColorWriteAll,
	}
}

// DepthStencilStates keep the depth test on in both modes, Disabled only
// stops depth writes.
var DepthStencilStates = [len(depthModeNames)]DepthStencilDesc{
	DepthModeEnabled:  {DepthEnable: true, DepthWrite: true, DepthFunc: CompareLessEqual},
	DepthModeDisabled: {DepthEnable: true, DepthWrite: false, DepthFunc: CompareLessEqual},
}

// DefaultSampler returns the single sampler of the pipeline with the given
// anisotropy level, clamped to 1..16.
func DefaultSampler(anisotropy uint32) SamplerDesc {
	if anisotropy < 1 {
		anisotropy = 1
	}
	if anisotropy > MaxAnisotropy {
		anisotropy = MaxAnisotropy
	}
	return SamplerDesc{
		Filter:        SamplerFilterAnisotropic,
		AddressU:      AddressModeWrap,
		AddressV:      AddressModeWrap,
		AddressW:      AddressModeWrap,
		MaxAnisotropy: anisotropy,
		Compare:       CompareAlways,
		MinLOD:        0,
		MaxLOD:        LODMax,
	}
}

const MaxAnisotropy = 16

type ShaderStage uint8

const (
	ShaderStageVertex ShaderStage = iota
	ShaderStagePixel
)

func (s ShaderStage) String() string {
	if s == ShaderStageVertex {
		return "vertex"
	}
	return "pixel"
}

type BindingKind uint8

const (
	BindingConstantBuffer BindingKind = iota
	// BindingTexture is a texture and the sampler of the same slot.
	BindingTexture
)

// ResourceBinding maps a (stage, slot) pair onto a backend binding number.
type ResourceBinding struct {
	Stage   ShaderStage
	Kind    BindingKind
	Slot    uint32
	Binding uint32
	Size    uint32
}

type VertexAttribute struct {
	Location   uint32
	Components uint32
	Offset     uint32
}

type ShaderProgramDesc struct {
	Name       string
	VertexCode []uint32
	PixelCode  []uint32
	Attributes []VertexAttribute
	Stride     uint32
	Bindings   []ResourceBinding
}

type BufferKind uint8

const (
	BufferKindVertex BufferKind = iota
	BufferKindConstant
)

type BufferDesc struct {
	Kind BufferKind
	Size uint32
	// Dynamic buffers are rewritten by the CPU every frame.
	Dynamic bool
	Data    []byte
}

// TextureDesc is an RGBA8 texture, rows top to bottom.
type TextureDesc struct {
	Name   string
	Width  uint32
	Height uint32
	Pixels []byte
}

type Topology uint8

const (
	TopologyTriangleList Topology = iota
	TopologyTriangleStrip
)

func (t Topology) String() string {
	if t == TopologyTriangleStrip {
		return "triangle-strip"
	}
	return "triangle-list"
}

type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// Color is RGBA.
type Color [4]float32
