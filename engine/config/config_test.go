package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spaghettifunk/anima-quad/engine/core"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %s", err)
	}
	if cfg.Window.Title != "AppWindow" || cfg.Window.Width != 960 || cfg.Window.Height != 540 {
		t.Errorf("window = %+v", cfg.Window)
	}
	if cfg.Renderer.ResolutionWidth != 1920 || cfg.Renderer.ResolutionHeight != 1080 || cfg.Renderer.Anisotropy != 16 {
		t.Errorf("renderer = %+v", cfg.Renderer)
	}
	if cfg.Timing.TargetFPS != 120 || cfg.Timing.MaxFrames != 0 {
		t.Errorf("timing = %+v", cfg.Timing)
	}
	if cfg.Assets.Texture != "resource/texture/test.png" {
		t.Errorf("texture = %s", cfg.Assets.Texture)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "anima.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[window]
fullscreen = true
debug = true

[renderer]
backend = "headless"

[timing]
max_frames = 10
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Window.Fullscreen || !cfg.Window.Debug || cfg.Renderer.Backend != BackendHeadless || cfg.Timing.MaxFrames != 10 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	// untouched keys keep their defaults
	if cfg.Window.Width != 960 || cfg.Timing.TargetFPS != 120 || cfg.Assets.Root != "resource" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if *cfg != *Default() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "[window]\ncolour = 3\n", "colour"},
		{"syntax", "[window\n", "line "},
		{"zero width", "[window]\nwidth = 0\n", "window size"},
		{"bad backend", "[renderer]\nbackend = \"d3d11\"\n", "d3d11"},
		{"bad rate", "[timing]\ntarget_fps = 0\n", "target_fps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("no error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Renderer.Backend = BackendHeadless
	data, err := cfg.Encode()
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(writeConfig(t, string(data)))
	if err != nil {
		t.Fatal(err)
	}
	if *loaded != *cfg {
		t.Errorf("loaded = %+v, want %+v", loaded, cfg)
	}
}
