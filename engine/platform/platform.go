package platform

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/anima-quad/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type WindowConfig struct {
	Title      string
	Width      uint32
	Height     uint32
	Fullscreen bool
}

// Window is what the engine needs from the OS window. Platform is the glfw
// implementation, Headless runs without a display.
type Window interface {
	Startup(cfg WindowConfig) error
	// PumpMessages processes pending events and reports whether the window
	// is still open.
	PumpMessages() bool
	SetTitle(title string)
	SetFullscreen(fullscreen bool)
	IsFullscreen() bool
	FramebufferSize() (uint32, uint32)
	Close()
	Shutdown() error
}

type Platform struct {
	Window *glfw.Window

	events *core.EventBus
	input  *core.InputState

	cfg        WindowConfig
	fullscreen bool
	// windowed position to restore when leaving fullscreen
	windowX, windowY int
	started          bool
}

var _ Window = (*Platform)(nil)

func New(events *core.EventBus, input *core.InputState) *Platform {
	return &Platform{events: events, input: input}
}

func (p *Platform) Startup(cfg WindowConfig) error {
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("window size %dx%d is invalid", cfg.Width, cfg.Height)
	}
	p.cfg = cfg

	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return fmt.Errorf("glfw: vulkan loader not found")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(cfg.Width), int(cfg.Height), cfg.Title, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		glfw.Terminate()
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)

	p.windowX, p.windowY = centered(glfw.GetPrimaryMonitor(), cfg.Width, cfg.Height)
	p.Window.SetPos(p.windowX, p.windowY)
	if cfg.Fullscreen {
		p.SetFullscreen(true)
	}
	p.Window.Show()
	p.started = true

	core.LogInfo("window '%s' created: %dx%d", cfg.Title, cfg.Width, cfg.Height)
	return nil
}

// centered returns the top-left corner that centers a window of the given
// size on the monitor.
func centered(monitor *glfw.Monitor, width, height uint32) (int, int) {
	if monitor == nil {
		return 0, 0
	}
	mode := monitor.GetVideoMode()
	mx, my := monitor.GetPos()
	return mx + (mode.Width-int(width))/2, my + (mode.Height-int(height))/2
}

func (p *Platform) Shutdown() error {
	if !p.started {
		return nil
	}
	p.Window.Destroy()
	p.Window = nil
	glfw.Terminate()
	p.started = false
	return nil
}

func (p *Platform) PumpMessages() bool {
	if p.Window == nil {
		return false
	}
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

func (p *Platform) SetTitle(title string) {
	if p.Window != nil {
		p.Window.SetTitle(title)
	}
}

func (p *Platform) Close() {
	if p.Window != nil {
		p.Window.SetShouldClose(true)
	}
}

func (p *Platform) FramebufferSize() (uint32, uint32) {
	if p.Window == nil {
		return 0, 0
	}
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

// SetFullscreen switches between a window of the configured size and the
// primary monitor in its current video mode.
func (p *Platform) SetFullscreen(fullscreen bool) {
	if p.Window == nil || fullscreen == p.fullscreen {
		return
	}
	monitor := glfw.GetPrimaryMonitor()
	if fullscreen {
		if monitor == nil {
			core.LogWarn("no primary monitor, staying windowed")
			return
		}
		p.windowX, p.windowY = p.Window.GetPos()
		mode := monitor.GetVideoMode()
		p.Window.SetMonitor(monitor, 0, 0, mode.Width, mode.Height, mode.RefreshRate)
	} else {
		p.Window.SetMonitor(nil, p.windowX, p.windowY, int(p.cfg.Width), int(p.cfg.Height), 0)
	}
	p.fullscreen = fullscreen

	w, h := p.FramebufferSize()
	core.LogInfo("display mode: fullscreen=%t, %dx%d", fullscreen, w, h)
	p.events.Fire(core.EventContext{
		Type: core.EVENT_CODE_DISPLAY_MODE_CHANGED,
		Data: &core.SystemEvent{WindowWidth: w, WindowHeight: h, Fullscreen: fullscreen},
	})
}

func (p *Platform) IsFullscreen() bool {
	return p.fullscreen
}

func (p *Platform) GetRequiredExtensionNames() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

// CreateWindowSurface creates the Vulkan surface of the window for the
// given VkInstance.
func (p *Platform) CreateWindowSurface(instance interface{}) (uintptr, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return 0, fmt.Errorf("glfw: create window surface: %w", err)
	}
	return surface, nil
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	code := translateKey(key)
	if code == core.KEY_UNKNOWN {
		return
	}
	switch action {
	case glfw.Press:
		p.input.ProcessKey(code, true)
	case glfw.Release:
		p.input.ProcessKey(code, false)
	}
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.events.Fire(core.EventContext{
		Type: core.EVENT_CODE_RESIZED,
		Data: &core.SystemEvent{WindowWidth: uint32(width), WindowHeight: uint32(height), Fullscreen: p.fullscreen},
	})
}

var keys = map[glfw.Key]core.KeyCode{
	glfw.KeyEnter:  core.KEY_ENTER,
	glfw.KeyEscape: core.KEY_ESCAPE,
	glfw.KeySpace:  core.KEY_SPACE,
	glfw.KeyF1:     core.KEY_F1,
	glfw.KeyF2:     core.KEY_F2,
	glfw.KeyF11:    core.KEY_F11,
}

func translateKey(key glfw.Key) core.KeyCode {
	if code, ok := keys[key]; ok {
		return code
	}
	return core.KEY_UNKNOWN
}
