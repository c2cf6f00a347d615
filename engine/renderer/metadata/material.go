package metadata

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/anima-quad/engine/math"
)

/** @brief Size in bytes of the packed material constant buffer. */
const MaterialSize = 80

/**
 * @brief Surface parameters uploaded to the pixel shader material buffer.
 * The packed layout follows std140 (and HLSL 16-byte) rules: four vec4
 * colours, one float, one int and two floats of padding.
 */
type Material struct {
	Ambient  math.Vec4
	Diffuse  math.Vec4
	Specular math.Vec4
	Emission math.Vec4
	/** @brief Specular exponent. */
	SpecularIntensity float32
	/** @brief Non-zero disables the texture fetch in the pixel shader. */
	TextureSamplingDisable int32
	Padding                [2]float32
}

// NewMaterial returns a zeroed material with an opaque white diffuse colour.
func NewMaterial() *Material {
	return &Material{Diffuse: math.NewVec4One()}
}

func (m *Material) SetAmbient(c math.Vec4) {
	m.Ambient = c
}

func (m *Material) SetDiffuse(c math.Vec4) {
	m.Diffuse = c
}

func (m *Material) SetSpecular(c math.Vec4) {
	m.Specular = c
}

func (m *Material) SetEmission(c math.Vec4) {
	m.Emission = c
}

func (m *Material) SetSpecularIntensity(v float32) {
	m.SpecularIntensity = v
}

func (m *Material) SetTextureSamplingDisable(disable bool) {
	m.TextureSamplingDisable = 0
	if disable {
		m.TextureSamplingDisable = 1
	}
}

// Bytes packs the material into its 80 byte constant buffer layout.
func (m *Material) Bytes() []byte {
	out := make([]byte, MaterialSize)
	colors := [4]math.Vec4{m.Ambient, m.Diffuse, m.Specular, m.Emission}
	for i, c := range colors {
		a := c.Array()
		putFloats(out[i*16:], a[:])
	}
	binary.LittleEndian.PutUint32(out[64:], gomath.Float32bits(m.SpecularIntensity))
	binary.LittleEndian.PutUint32(out[68:], uint32(m.TextureSamplingDisable))
	putFloats(out[72:], m.Padding[:])
	return out
}
