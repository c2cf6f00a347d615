package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima-quad/engine/core"
)

const (
	BackendVulkan   = "vulkan"
	BackendHeadless = "headless"
)

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Timing   TimingConfig   `toml:"timing"`
	Assets   AssetsConfig   `toml:"assets"`
	Log      LogConfig      `toml:"log"`
}

type WindowConfig struct {
	Title      string `toml:"title"`
	Width      uint32 `toml:"width"`
	Height     uint32 `toml:"height"`
	Fullscreen bool   `toml:"fullscreen"`
	// Debug shows the frame rate in the title and logs at debug level.
	Debug bool `toml:"debug"`
}

type RendererConfig struct {
	Backend          string `toml:"backend"`
	ResolutionWidth  uint32 `toml:"resolution_width"`
	ResolutionHeight uint32 `toml:"resolution_height"`
	Validation       bool   `toml:"validation"`
	Anisotropy       uint32 `toml:"anisotropy"`
}

type TimingConfig struct {
	TargetFPS int `toml:"target_fps"`
	// MaxFrames stops the application after that many steps, 0 runs forever.
	MaxFrames uint64 `toml:"max_frames"`
}

type AssetsConfig struct {
	Root           string `toml:"root"`
	Texture        string `toml:"texture"`
	VertexShader   string `toml:"vertex_shader"`
	PixelShader    string `toml:"pixel_shader"`
	ShaderCompiler string `toml:"shader_compiler"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "AppWindow",
			Width:  960,
			Height: 540,
		},
		Renderer: RendererConfig{
			Backend:          BackendVulkan,
			ResolutionWidth:  1920,
			ResolutionHeight: 1080,
			Anisotropy:       16,
		},
		Timing: TimingConfig{
			TargetFPS: core.DefaultTargetFPS,
		},
		Assets: AssetsConfig{
			Root:           "resource",
			Texture:        "resource/texture/test.png",
			VertexShader:   "resource/shader/vertex_shader.vert",
			PixelShader:    "resource/shader/pixel_shader.frag",
			ShaderCompiler: "glslc",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			core.LogDebug("no config file at '%s', using defaults", path)
			return cfg, nil
		}
		return nil, err
	}

	d := toml.NewDecoder(bytes.NewReader(data))
	d.DisallowUnknownFields()
	if err := d.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("config '%s': %s", path, strict.String())
		}
		var decode *toml.DecodeError
		if errors.As(err, &decode) {
			row, col := decode.Position()
			return nil, fmt.Errorf("config '%s' line %d column %d: %s", path, row, col, decode.Error())
		}
		return nil, fmt.Errorf("config '%s': %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config '%s': %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Window.Width == 0 || c.Window.Height == 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d is invalid", c.Window.Width, c.Window.Height))
	}
	if c.Renderer.ResolutionWidth == 0 || c.Renderer.ResolutionHeight == 0 {
		errs = append(errs, fmt.Errorf("resolution %dx%d is invalid", c.Renderer.ResolutionWidth, c.Renderer.ResolutionHeight))
	}
	switch c.Renderer.Backend {
	case BackendVulkan, BackendHeadless:
	default:
		errs = append(errs, fmt.Errorf("unknown renderer backend '%s'", c.Renderer.Backend))
	}
	if c.Timing.TargetFPS <= 0 {
		errs = append(errs, fmt.Errorf("target_fps must be positive, got %d", c.Timing.TargetFPS))
	}
	if c.Assets.Root == "" {
		errs = append(errs, errors.New("assets root is empty"))
	}
	return errors.Join(errs...)
}

// Encode writes the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
