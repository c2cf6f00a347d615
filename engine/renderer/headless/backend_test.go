package headless

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/anima-quad/engine/core"
	"github.com/spaghettifunk/anima-quad/engine/math"
	"github.com/spaghettifunk/anima-quad/engine/renderer"
	"github.com/spaghettifunk/anima-quad/engine/renderer/metadata"
)

func started(t *testing.T) *Backend {
	t.Helper()
	b := New()
	if err := b.Initialize(renderer.BackendConfig{ResolutionWidth: 4, ResolutionHeight: 4}); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestBackendValidatesHandles(t *testing.T) {
	b := started(t)
	sampler, err := b.CreateSampler(renderer.DefaultSampler(16))
	if err != nil {
		t.Fatal(err)
	}
	buf, err := b.CreateBuffer(renderer.BufferDesc{Kind: renderer.BufferKindConstant, Size: 16})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		err  error
	}{
		{"bind sampler as texture", b.BindTexture(renderer.ShaderStagePixel, 0, sampler)},
		{"bind invalid handle", b.BindVertexBuffer(renderer.InvalidHandle, metadata.VertexSize, 0)},
		{"overfull write", b.UpdateBuffer(buf, make([]byte, 32))},
		{"write to sampler", b.UpdateBuffer(sampler, make([]byte, 4))},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, core.ErrInvalidHandle) {
			t.Errorf("%s: err = %v, want ErrInvalidHandle", tt.name, tt.err)
		}
	}

	if err := b.Release(buf); err != nil {
		t.Fatalf("Release: %s", err)
	}
	if err := b.Release(buf); !errors.Is(err, core.ErrInvalidHandle) {
		t.Errorf("double release: err = %v", err)
	}
	if b.Live() != 1 {
		t.Errorf("live = %d, want 1", b.Live())
	}
}

func TestBackendRecordsDraws(t *testing.T) {
	b := started(t)
	program, _ := b.CreateShaderProgram(renderer.ShaderProgramDesc{VertexCode: []uint32{1}, PixelCode: []uint32{1}})
	vb, _ := b.CreateBuffer(renderer.BufferDesc{Kind: renderer.BufferKindVertex, Size: 4 * metadata.VertexSize, Dynamic: true})
	raster, _ := b.CreateRasterizerState(renderer.RasterizerStates[renderer.CullModeBack][renderer.FillModeSolid])

	if err := b.Draw(4, 0); err == nil {
		t.Error("draw outside a frame succeeded")
	}
	if err := b.Clear(renderer.Color{}, 1); err != nil {
		t.Fatal(err)
	}
	for _, err := range []error{
		b.BindShaderProgram(program),
		b.BindVertexBuffer(vb, metadata.VertexSize, 0),
		b.BindRasterizerState(raster),
		b.UpdateBuffer(vb, metadata.PackVertices([]metadata.Vertex{{Position: math.Vec3{X: 1}}})),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}
	b.SetTopology(renderer.TopologyTriangleStrip)

	if err := b.Draw(5, 0); err == nil {
		t.Error("draw past the end of the vertex buffer succeeded")
	}
	if err := b.Draw(4, 0); err != nil {
		t.Fatalf("Draw: %s", err)
	}
	if err := b.Present(); err != nil {
		t.Fatalf("Present: %s", err)
	}

	if b.Frames != 1 || len(b.Draws) != 1 {
		t.Fatalf("frames = %d, draws = %d", b.Frames, len(b.Draws))
	}
	d := b.Draws[0]
	if d.Topology != renderer.TopologyTriangleStrip || len(d.Vertices) != 4 || d.Vertices[0].Position.X != 1 {
		t.Errorf("draw = %+v", d)
	}
	if d.Rasterizer.Cull != renderer.CullModeBack {
		t.Errorf("draw rasterizer = %+v", d.Rasterizer)
	}
}

func TestBackendFailOn(t *testing.T) {
	b := started(t)
	b.FailOn = 2
	if _, err := b.CreateBlendState(renderer.BlendStates[0]); err != nil {
		t.Fatal(err)
	}
	if _, err := b.CreateBlendState(renderer.BlendStates[0]); !errors.Is(err, core.ErrCreationFailed) {
		t.Errorf("err = %v, want ErrCreationFailed", err)
	}
	if b.Live() != 1 {
		t.Errorf("live = %d", b.Live())
	}
}
