package sprite

import (
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	gomath "math"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/anima-quad/engine/core"
	"github.com/spaghettifunk/anima-quad/engine/math"
	"github.com/spaghettifunk/anima-quad/engine/renderer"
	"github.com/spaghettifunk/anima-quad/engine/renderer/headless"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

// writeTexture writes a 1x1 solid color png.
func writeTexture(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.NRGBA{R: 255, G: 128, A: 255})
	path := filepath.Join(t.TempDir(), "test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func newPipeline(t *testing.T) (*renderer.Pipeline, *headless.Backend) {
	t.Helper()
	backend := headless.New()
	p := renderer.NewPipeline(backend)
	cfg := renderer.DefaultPipelineConfig()
	cfg.VertexShader = []uint32{0x07230203, 0x00010000}
	cfg.PixelShader = cfg.VertexShader
	if err := p.Initialize(cfg); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Terminate() })
	return p, backend
}

func near(a, b float32) bool {
	return gomath.Abs(float64(a-b)) < 1e-3
}

func TestDefaults(t *testing.T) {
	s := New(nil)
	if s.TexturePath != "resource/texture/test.png" {
		t.Errorf("path = %s", s.TexturePath)
	}
	if s.Position != math.NewVec2(480, 270) || s.Scale != math.NewVec2(720, 405) {
		t.Errorf("position = %v, scale = %v", s.Position, s.Scale)
	}
	if s.Texcoord != math.NewVec2(0, 0) || s.Texsize != math.NewVec2(1, 1) || s.Color != math.NewVec4One() {
		t.Errorf("texcoord = %v, texsize = %v, color = %v", s.Texcoord, s.Texsize, s.Color)
	}
	if s.Loaded() {
		t.Error("new sprite is loaded")
	}
}

func TestSetAnchorPointCenter(t *testing.T) {
	s := New(nil)
	s.SetAnchorPointCenter()

	want := [4][2]float32{{120, 67.5}, {840, 67.5}, {120, 472.5}, {840, 472.5}}
	uv := [4][2]float32{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	v := s.Vertices()
	for i := range v {
		p := v[i].Position
		if !near(p.X, want[i][0]) || !near(p.Y, want[i][1]) || p.Z != 0 {
			t.Errorf("v%d = %v, want %v", i, p, want[i])
		}
		if v[i].Texcoord.X != uv[i][0] || v[i].Texcoord.Y != uv[i][1] {
			t.Errorf("v%d texcoord = %v, want %v", i, v[i].Texcoord, uv[i])
		}
		if v[i].Color != s.Color || v[i].Normal != math.NewVec3Zero() {
			t.Errorf("v%d color = %v, normal = %v", i, v[i].Color, v[i].Normal)
		}
	}
}

func TestSetAnchorPointCenterRotation(t *testing.T) {
	s := New(nil)
	s.Rotation = 0.5
	s.SetAnchorPointCenter()

	hx, hy := float64(s.Scale.X)/2, float64(s.Scale.Y)/2
	angle := gomath.Atan2(hy, hx)
	radius := gomath.Hypot(hx, hy)
	r := float64(s.Rotation)
	px, py := float64(s.Position.X), float64(s.Position.Y)
	want := [4][2]float64{
		{px - gomath.Cos(angle+r)*radius, py - gomath.Sin(angle+r)*radius},
		{px + gomath.Cos(angle-r)*radius, py - gomath.Sin(angle-r)*radius},
		{px - gomath.Cos(angle-r)*radius, py + gomath.Sin(angle-r)*radius},
		{px + gomath.Cos(angle+r)*radius, py + gomath.Sin(angle+r)*radius},
	}

	v := s.Vertices()
	for i := range v {
		p := v[i].Position
		if !near(p.X, float32(want[i][0])) || !near(p.Y, float32(want[i][1])) {
			t.Errorf("v%d = (%.2f, %.2f), want (%.2f, %.2f)", i, p.X, p.Y, want[i][0], want[i][1])
		}
	}
	for i := 0; i < 2; i++ {
		a, b := v[i].Position, v[3-i].Position
		if !near(a.X+b.X, 2*s.Position.X) || !near(a.Y+b.Y, 2*s.Position.Y) {
			t.Errorf("corners %d and %d not symmetric: %v %v", i, 3-i, a, b)
		}
	}
}

// failingDraw is a renderer whose Draw always fails.
type failingDraw struct {
	Renderer
}

func (failingDraw) Draw(vertexCount, firstVertex uint32) error {
	return core.ErrInvalidHandle
}

func TestDrawRestoresDepthOnFailure(t *testing.T) {
	p, _ := newPipeline(t)
	s := New(nil)
	s.TexturePath = writeTexture(t)
	if err := s.Initialize(p); err != nil {
		t.Fatal(err)
	}
	if err := p.Clear(); err != nil {
		t.Fatal(err)
	}

	if err := s.Draw(failingDraw{p}); !errors.Is(err, core.ErrInvalidHandle) {
		t.Fatalf("err = %v, want ErrInvalidHandle", err)
	}
	if p.DepthMode() != renderer.DepthModeEnabled {
		t.Errorf("depth mode after failed draw = %v, want enabled", p.DepthMode())
	}
}

func TestDrawStrip(t *testing.T) {
	p, backend := newPipeline(t)
	s := New(nil)
	s.TexturePath = writeTexture(t)

	if err := s.Initialize(p); err != nil {
		t.Fatal(err)
	}
	if !s.Loaded() || s.Texture.Width != 1 || s.Texture.Height != 1 {
		t.Fatalf("texture = %+v", s.Texture)
	}

	if err := p.Clear(); err != nil {
		t.Fatal(err)
	}
	s.Update()
	if err := s.Draw(p); err != nil {
		t.Fatalf("Draw: %s", err)
	}
	if err := p.Present(); err != nil {
		t.Fatal(err)
	}

	if len(backend.Draws) != 1 {
		t.Fatalf("draws = %d, want 1", len(backend.Draws))
	}
	d := backend.Draws[0]
	if d.Topology != renderer.TopologyTriangleStrip || d.VertexCount != 4 || d.FirstVertex != 0 {
		t.Errorf("draw = %d vertices from %d as %v", d.VertexCount, d.FirstVertex, d.Topology)
	}
	if d.Depth.DepthWrite {
		t.Error("depth writes on during the sprite draw")
	}
	if d.Blend != renderer.BlendStates[renderer.BlendModeNone] {
		t.Errorf("blend = %+v", d.Blend)
	}
	uv := [4][2]float32{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	for i, v := range d.Vertices {
		if v.Texcoord.X != uv[i][0] || v.Texcoord.Y != uv[i][1] {
			t.Errorf("v%d texcoord = %v", i, v.Texcoord)
		}
	}
	diffuse := gomath.Float32frombits(binary.LittleEndian.Uint32(d.Material[16:]))
	if len(d.Material) != 80 || diffuse != 1 {
		t.Errorf("material = %v", d.Material)
	}
	if p.DepthMode() != renderer.DepthModeEnabled {
		t.Errorf("depth mode after draw = %v", p.DepthMode())
	}
}

func TestInitializeFailure(t *testing.T) {
	p, backend := newPipeline(t)
	live := backend.Live()

	s := New(nil)
	s.TexturePath = filepath.Join(t.TempDir(), "missing.png")
	if err := s.Initialize(p); !errors.Is(err, core.ErrAssetNotFound) {
		t.Errorf("err = %v, want ErrAssetNotFound", err)
	}

	// vertex buffer creation fails after the texture exists
	s.TexturePath = writeTexture(t)
	backend.FailOn = len(backend.Events) + 2
	if err := s.Initialize(p); !errors.Is(err, core.ErrCreationFailed) {
		t.Errorf("err = %v, want ErrCreationFailed", err)
	}
	if s.Loaded() || backend.Live() != live {
		t.Errorf("loaded = %t, live = %d, want %d", s.Loaded(), backend.Live(), live)
	}
}

func TestTerminate(t *testing.T) {
	p, backend := newPipeline(t)
	live := backend.Live()

	s := New(nil)
	s.TexturePath = writeTexture(t)
	if err := s.Initialize(p); err != nil {
		t.Fatal(err)
	}
	if backend.Live() != live+2 {
		t.Fatalf("live = %d, want %d", backend.Live(), live+2)
	}
	created := len(backend.Events)

	if err := s.Terminate(p); err != nil {
		t.Fatal(err)
	}
	if err := s.Terminate(p); err != nil {
		t.Errorf("second Terminate: %s", err)
	}
	released := backend.Events[created:]
	if len(released) != 2 || released[0].Kind != headless.KindTexture || released[1].Kind != headless.KindBuffer {
		t.Errorf("released = %+v, want texture then buffer", released)
	}
	if s.Loaded() || backend.Live() != live {
		t.Errorf("loaded = %t, live = %d", s.Loaded(), backend.Live())
	}
	// drawing an unloaded sprite is a no-op
	if err := s.Draw(p); err != nil {
		t.Error(err)
	}
}
