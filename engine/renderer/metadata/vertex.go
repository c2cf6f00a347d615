package metadata

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/anima-quad/engine/math"
)

/**
 * @brief A single vertex of the sprite quad. The field order is the memory
 * order expected by the vertex input layout.
 */
type Vertex struct {
	/** @brief The position of the vertex. */
	Position math.Vec3
	/** @brief The normal of the vertex. Unused by the sprite shader. */
	Normal math.Vec3
	/** @brief The colour of the vertex. */
	Color math.Vec4
	/** @brief The texture coordinate of the vertex. */
	Texcoord math.Vec2
}

/** @brief Size in bytes of one packed vertex (12 float32). */
const VertexSize = 48

// VertexFormat is the element format of an input layout entry.
type VertexFormat uint8

const (
	VertexFormatFloat2 VertexFormat = iota + 2
	VertexFormatFloat3
	VertexFormatFloat4
)

// Components returns the float32 count of the format.
func (f VertexFormat) Components() uint32 {
	return uint32(f)
}

// VertexElement describes one attribute of the vertex input layout.
type VertexElement struct {
	Semantic string
	Location uint32
	Format   VertexFormat
	Offset   uint32
}

// VertexLayout is the input layout matching Vertex.
var VertexLayout = []VertexElement{
	{Semantic: "POSITION", Location: 0, Format: VertexFormatFloat3, Offset: 0},
	{Semantic: "NORMAL", Location: 1, Format: VertexFormatFloat3, Offset: 12},
	{Semantic: "COLOR", Location: 2, Format: VertexFormatFloat4, Offset: 24},
	{Semantic: "TEXCOORD", Location: 3, Format: VertexFormatFloat2, Offset: 40},
}

// Floats returns the vertex as 12 float32 values in layout order.
func (v Vertex) Floats() [12]float32 {
	return [12]float32{
		v.Position.X, v.Position.Y, v.Position.Z,
		v.Normal.X, v.Normal.Y, v.Normal.Z,
		v.Color.X, v.Color.Y, v.Color.Z, v.Color.W,
		v.Texcoord.X, v.Texcoord.Y,
	}
}

// PackVertices encodes vertices little-endian in layout order.
func PackVertices(vertices []Vertex) []byte {
	out := make([]byte, len(vertices)*VertexSize)
	for i, v := range vertices {
		f := v.Floats()
		putFloats(out[i*VertexSize:], f[:])
	}
	return out
}

// UnpackVertices decodes a buffer written by PackVertices. Trailing bytes that
// do not form a whole vertex are ignored.
func UnpackVertices(data []byte) []Vertex {
	vertices := make([]Vertex, len(data)/VertexSize)
	for i := range vertices {
		f := readFloats(data[i*VertexSize:], 12)
		vertices[i] = Vertex{
			Position: math.Vec3{X: f[0], Y: f[1], Z: f[2]},
			Normal:   math.Vec3{X: f[3], Y: f[4], Z: f[5]},
			Color:    math.Vec4{X: f[6], Y: f[7], Z: f[8], W: f[9]},
			Texcoord: math.Vec2{X: f[10], Y: f[11]},
		}
	}
	return vertices
}

// PackFloats encodes float32 values little-endian, e.g. a column-major matrix.
func PackFloats(values []float32) []byte {
	out := make([]byte, len(values)*4)
	putFloats(out, values)
	return out
}

func putFloats(dst []byte, values []float32) {
	for i, f := range values {
		binary.LittleEndian.PutUint32(dst[i*4:], gomath.Float32bits(f))
	}
}

func readFloats(src []byte, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = gomath.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return out
}
