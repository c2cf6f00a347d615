package engine

import (
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spaghettifunk/anima-quad/engine/config"
	"github.com/spaghettifunk/anima-quad/engine/core"
	"github.com/spaghettifunk/anima-quad/engine/platform"
	"github.com/spaghettifunk/anima-quad/engine/renderer"
	"github.com/spaghettifunk/anima-quad/engine/renderer/headless"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func writePNG(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 50), G: uint8(y * 50), B: 255, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

// writeShader writes a GLSL source with an up to date SPIR-V module next to
// it, so no compiler runs.
func writeShader(t *testing.T, path string) {
	t.Helper()
	words := []uint32{0x07230203, 0x00010000, 0, 1, 0}
	spv := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(spv[i*4:], w)
	}
	if err := os.WriteFile(path, []byte("#version 450\nvoid main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path+".spv", spv, 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"texture", "shader"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	writePNG(t, filepath.Join(root, "texture", "test.png"), 4, 4)
	writeShader(t, filepath.Join(root, "shader", "vertex_shader.vert"))
	writeShader(t, filepath.Join(root, "shader", "pixel_shader.frag"))

	cfg := config.Default()
	cfg.Renderer.Backend = config.BackendHeadless
	cfg.Assets.Root = root
	cfg.Assets.Texture = filepath.Join(root, "texture", "test.png")
	cfg.Assets.VertexShader = filepath.Join(root, "shader", "vertex_shader.vert")
	cfg.Assets.PixelShader = filepath.Join(root, "shader", "pixel_shader.frag")
	cfg.Assets.ShaderCompiler = filepath.Join(root, "no-such-glslc")
	return cfg
}

// fakeClock advances by step on every read.
func fakeClock(step time.Duration) core.TimeSource {
	now := time.Unix(0, 0)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func startEngine(t *testing.T, cfg *config.Config) (*Engine, *headless.Backend) {
	t.Helper()
	e, err := New(cfg, WithTimeSource(fakeClock(time.Millisecond)))
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %s", err)
	}
	t.Cleanup(func() { e.Terminate() })
	return e, e.Backend().(*headless.Backend)
}

func TestRunDrawsFrames(t *testing.T) {
	cfg := testConfig(t)
	cfg.Window.Debug = true
	cfg.Timing.MaxFrames = 3
	e, backend := startEngine(t, cfg)

	if err := e.Run(); err != nil {
		t.Fatal(err)
	}
	if e.Frames() != 3 || backend.Frames != 3 || len(backend.Draws) != 3 {
		t.Fatalf("frames = %d, presented = %d, draws = %d", e.Frames(), backend.Frames, len(backend.Draws))
	}
	for _, d := range backend.Draws {
		if d.Topology != renderer.TopologyTriangleStrip || d.VertexCount != 4 {
			t.Errorf("draw = %+v", d)
		}
	}
	title := e.Window().(*platform.Headless).Title
	if !strings.HasPrefix(title, "AppWindow - fps [ ") {
		t.Errorf("title = %q", title)
	}
}

// bootingBackend reports an out of date swap chain for the first Clear calls.
type bootingBackend struct {
	*headless.Backend
	boots int
}

func (b *bootingBackend) Clear(color renderer.Color, depth float32) error {
	if b.boots > 0 {
		b.boots--
		return core.ErrSwapchainBooting
	}
	return b.Backend.Clear(color, depth)
}

func TestRunSkipsBootingFrames(t *testing.T) {
	cfg := testConfig(t)
	cfg.Timing.MaxFrames = 2
	backend := &bootingBackend{Backend: headless.New(), boots: 3}
	e, err := New(cfg, WithBackend(backend), WithTimeSource(fakeClock(time.Millisecond)))
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	defer e.Terminate()

	if err := e.Run(); err != nil {
		t.Fatal(err)
	}
	if backend.boots != 0 {
		t.Errorf("%d booting frames left", backend.boots)
	}
	if e.Frames() != 2 || backend.Frames != 2 || len(backend.Draws) != 2 {
		t.Errorf("frames = %d, presented = %d, draws = %d", e.Frames(), backend.Frames, len(backend.Draws))
	}
}

func TestRunStops(t *testing.T) {
	tests := []struct {
		name string
		stop func(e *Engine)
	}{
		{"escape", func(e *Engine) { e.Input().ProcessKey(core.KEY_ESCAPE, true) }},
		{"quit event", func(e *Engine) {
			e.Events().Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
		}},
		{"stop request", func(e *Engine) { e.Stop() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, backend := startEngine(t, testConfig(t))
			tt.stop(e)
			if err := e.Run(); err != nil {
				t.Fatal(err)
			}
			if backend.Frames != 0 {
				t.Errorf("presented %d frames after stopping", backend.Frames)
			}
		})
	}
}

func TestDisplayModeKeys(t *testing.T) {
	cfg := testConfig(t)
	cfg.Window.Debug = true
	e, _ := startEngine(t, cfg)
	window := e.Window().(*platform.Headless)

	e.Input().ProcessKey(core.KEY_F2, true)
	if !window.Fullscreen {
		t.Error("F2 did not switch to fullscreen")
	}
	e.Input().ProcessKey(core.KEY_F2, false)
	e.Input().ProcessKey(core.KEY_F1, true)
	if window.Fullscreen {
		t.Error("F1 did not switch to windowed")
	}

	// without debug the keys do nothing
	cfg = testConfig(t)
	e, _ = startEngine(t, cfg)
	e.Input().ProcessKey(core.KEY_F2, true)
	if e.Window().IsFullscreen() {
		t.Error("F2 switched display mode outside debug mode")
	}
}

func TestResizeSuspends(t *testing.T) {
	e, backend := startEngine(t, testConfig(t))

	e.Events().Fire(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.SystemEvent{}})
	if !e.isSuspended {
		t.Error("zero size did not suspend")
	}
	e.Events().Fire(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.SystemEvent{WindowWidth: 800, WindowHeight: 600}})
	if e.isSuspended || backend.Resizes != 1 {
		t.Errorf("suspended = %t, resizes = %d", e.isSuspended, backend.Resizes)
	}
}

func TestTextureReload(t *testing.T) {
	cfg := testConfig(t)
	e, backend := startEngine(t, cfg)
	texture := e.Sprite().TexturePath

	writePNG(t, texture, 8, 2)
	e.Events().Fire(core.EventContext{Type: core.EVENT_CODE_ASSET_CHANGED, Data: &core.AssetEvent{Path: "elsewhere.png"}})
	if e.pendingReload {
		t.Fatal("unrelated change scheduled a reload")
	}
	e.Events().Fire(core.EventContext{Type: core.EVENT_CODE_ASSET_CHANGED, Data: &core.AssetEvent{Path: texture}})
	if err := e.step(); err != nil {
		t.Fatal(err)
	}

	s := e.Sprite()
	if !s.Loaded() || s.Texture.Width != 8 || s.Texture.Height != 2 {
		t.Fatalf("texture after reload = %+v", s.Texture)
	}
	if len(backend.Draws) != 1 {
		t.Errorf("draws = %d", len(backend.Draws))
	}
}

func TestTerminateOrder(t *testing.T) {
	e, backend := startEngine(t, testConfig(t))
	created := len(backend.Events)

	if err := e.Terminate(); err != nil {
		t.Fatal(err)
	}
	released := backend.Events[created:]
	if len(released) != created {
		t.Fatalf("released %d of %d objects", len(released), created)
	}
	// sprite objects first, then the pipeline in reverse creation order
	if released[0].Kind != headless.KindTexture || released[1].Kind != headless.KindBuffer {
		t.Errorf("first releases = %+v", released[:2])
	}
	for i, ev := range released[2:] {
		if want := backend.Events[created-3-i].Handle; ev.Handle != want {
			t.Errorf("release %d = %d, want %d", i+2, ev.Handle, want)
		}
	}
	if backend.Initialized() || e.Window().PumpMessages() {
		t.Error("backend or window still up after Terminate")
	}
	if err := e.Terminate(); err != nil {
		t.Errorf("second Terminate: %s", err)
	}
	if e.Stage() != EngineStageTerminated {
		t.Errorf("stage = %d", e.Stage())
	}
}

func TestInitializeFailure(t *testing.T) {
	cfg := testConfig(t)
	if err := os.Remove(cfg.Assets.Texture); err != nil {
		t.Fatal(err)
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); !errors.Is(err, core.ErrAssetNotFound) {
		t.Fatalf("err = %v, want ErrAssetNotFound", err)
	}
	backend := e.Backend().(*headless.Backend)
	if backend.Initialized() || backend.Live() != 0 {
		t.Errorf("initialized = %t, live = %d", backend.Initialized(), backend.Live())
	}
	if err := e.Run(); err == nil {
		t.Error("Run after failed Initialize succeeded")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Timing.TargetFPS = 0
	if _, err := New(cfg); err == nil {
		t.Error("New accepted target_fps = 0")
	}
}
