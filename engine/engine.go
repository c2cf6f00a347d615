package engine

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-quad/engine/assets"
	"github.com/spaghettifunk/anima-quad/engine/config"
	"github.com/spaghettifunk/anima-quad/engine/core"
	"github.com/spaghettifunk/anima-quad/engine/platform"
	"github.com/spaghettifunk/anima-quad/engine/renderer"
	"github.com/spaghettifunk/anima-quad/engine/renderer/headless"
	"github.com/spaghettifunk/anima-quad/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-quad/engine/renderer/vulkan"
	"github.com/spaghettifunk/anima-quad/engine/sprite"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released everything, it cannot be started again
	EngineStageTerminated
)

type Option func(*Engine)

// WithTimeSource replaces time.Now for the frame driver.
func WithTimeSource(now core.TimeSource) Option {
	return func(e *Engine) { e.now = now }
}

// WithWindow and WithBackend replace the window and backend picked from the
// configuration.
func WithWindow(w platform.Window) Option {
	return func(e *Engine) { e.window = w }
}

func WithBackend(b renderer.Backend) Option {
	return func(e *Engine) { e.backend = b }
}

type Engine struct {
	ID           uuid.UUID
	currentStage Stage
	cfg          *config.Config

	events       *core.EventBus
	input        *core.InputState
	window       platform.Window
	backend      renderer.Backend
	pipeline     *renderer.Pipeline
	assetManager *assets.AssetManager
	sprite       *sprite.Sprite
	driver       *core.FrameDriver
	now          core.TimeSource

	isRunning     bool
	isSuspended   bool
	stopRequested atomic.Bool
	pendingReload bool
	frames        uint64
}

func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		ID:     uuid.New(),
		cfg:    cfg,
		events: core.NewEventBus(),
	}
	e.input = core.NewInputState(e.events)
	for _, opt := range opts {
		opt(e)
	}

	switch cfg.Renderer.Backend {
	case config.BackendVulkan:
		if e.window == nil {
			e.window = platform.New(e.events, e.input)
		}
		if e.backend == nil {
			surface, ok := e.window.(vulkan.SurfaceProvider)
			if !ok {
				return nil, fmt.Errorf("window %T cannot create a vulkan surface", e.window)
			}
			e.backend = vulkan.New(surface)
		}
	case config.BackendHeadless:
		if e.window == nil {
			e.window = platform.NewHeadless(e.events)
		}
		if e.backend == nil {
			e.backend = headless.New()
		}
	}

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError("failed to create the asset manager: %s", err)
		return nil, err
	}
	e.assetManager = am
	e.pipeline = renderer.NewPipeline(e.backend)
	e.sprite = sprite.New(am)

	driver, err := core.NewFrameDriver(cfg.Timing.TargetFPS, e.now, e.step)
	if err != nil {
		return nil, err
	}
	e.driver = driver

	return e, nil
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("engine cannot be initialized in stage %d", e.currentStage)
	}
	e.currentStage = EngineStageInitializing
	core.LogInfo("engine %s starting with the %s backend", e.ID, e.backend.Name())

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	e.events.Register(core.EVENT_CODE_KEY_RELEASED, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e.onResized)
	e.events.Register(core.EVENT_CODE_DISPLAY_MODE_CHANGED, e.onResized)
	e.events.Register(core.EVENT_CODE_ASSET_CHANGED, e.onAssetChanged)

	if err := e.initialize(); err != nil {
		core.LogError("engine initialization failed: %s", err)
		if terr := e.Terminate(); terr != nil {
			core.LogWarn("cleanup after failed initialization: %s", terr)
		}
		return err
	}

	e.currentStage = EngineStageInitialized
	e.isRunning = true
	return nil
}

func (e *Engine) initialize() error {
	wc := e.cfg.Window
	if err := e.window.Startup(platform.WindowConfig{
		Title:      wc.Title,
		Width:      wc.Width,
		Height:     wc.Height,
		Fullscreen: wc.Fullscreen,
	}); err != nil {
		return err
	}

	if err := e.assetManager.Initialize(e.cfg.Assets.Root); err != nil {
		return err
	}

	vertex, err := e.loadShader(e.cfg.Assets.VertexShader)
	if err != nil {
		return err
	}
	pixel, err := e.loadShader(e.cfg.Assets.PixelShader)
	if err != nil {
		return err
	}

	fbWidth, fbHeight := e.window.FramebufferSize()
	pc := renderer.DefaultPipelineConfig()
	pc.Backend = renderer.BackendConfig{
		ApplicationName:   wc.Title,
		FramebufferWidth:  fbWidth,
		FramebufferHeight: fbHeight,
		ResolutionWidth:   e.cfg.Renderer.ResolutionWidth,
		ResolutionHeight:  e.cfg.Renderer.ResolutionHeight,
		BackBufferCount:   1,
		Validation:        e.cfg.Renderer.Validation,
	}
	pc.Anisotropy = e.cfg.Renderer.Anisotropy
	pc.VertexShader = vertex
	pc.PixelShader = pixel
	if err := e.pipeline.Initialize(pc); err != nil {
		return err
	}

	texture, err := e.assetManager.Resolve(e.cfg.Assets.Texture)
	if err != nil {
		return err
	}
	e.sprite.TexturePath = texture
	return e.sprite.Initialize(e.pipeline)
}

func (e *Engine) loadShader(path string) ([]uint32, error) {
	res, err := e.assetManager.LoadAsset(path, &metadata.ShaderResourceParams{Compiler: e.cfg.Assets.ShaderCompiler})
	if err != nil {
		core.LogError("failed to load shader '%s': %s", path, err)
		return nil, err
	}
	return res.Data.([]uint32), nil
}

// Run pumps window messages and steps the frame driver until the window
// closes, a quit event arrives or Stop is called.
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine cannot run in stage %d", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.driver.Start()

	for e.isRunning {
		if e.stopRequested.Load() {
			core.LogInfo("stop requested, shutting down")
			break
		}
		if !e.window.PumpMessages() {
			core.LogInfo("window closed, shutting down")
			break
		}
		if e.isSuspended {
			continue
		}
		if _, err := e.driver.Tick(); err != nil {
			core.LogError("frame %d failed: %s", e.frames, err)
			e.isRunning = false
			e.currentStage = EngineStageInitialized
			return err
		}
	}

	e.isRunning = false
	e.currentStage = EngineStageInitialized
	core.LogInfo("ran %d frames in %s", e.frames, e.driver.Uptime())
	return nil
}

// Stop asks Run to return. It is safe to call from any goroutine.
func (e *Engine) Stop() {
	e.stopRequested.Store(true)
}

func (e *Engine) step() error {
	e.drainAssetChanges()
	if e.pendingReload {
		e.pendingReload = false
		if err := e.sprite.Reload(e.pipeline); err != nil {
			core.LogError("texture reload failed, sprite hidden until the next change: %s", err)
		} else {
			core.LogInfo("reloaded texture '%s'", e.sprite.TexturePath)
		}
	}

	e.sprite.Update()

	if err := e.pipeline.Clear(); err != nil {
		if errors.Is(err, core.ErrSwapchainBooting) {
			return core.ErrFrameSkipped
		}
		return err
	}
	if err := e.sprite.Draw(e.pipeline); err != nil {
		return err
	}
	if err := e.pipeline.Present(); err != nil {
		if errors.Is(err, core.ErrSwapchainBooting) {
			return core.ErrFrameSkipped
		}
		return err
	}
	e.frames++

	if e.cfg.Window.Debug {
		e.window.SetTitle(fmt.Sprintf("%s - fps [ %d ]", e.cfg.Window.Title, e.driver.FPS()))
	}
	if e.cfg.Timing.MaxFrames > 0 && e.frames >= e.cfg.Timing.MaxFrames {
		e.isRunning = false
	}

	// Input is updated last so this step can still compare against the
	// previous one.
	e.input.Update()
	return nil
}

// drainAssetChanges forwards watcher notifications to the event bus on the
// main thread.
func (e *Engine) drainAssetChanges() {
	for {
		select {
		case change, ok := <-e.assetManager.Changes():
			if !ok {
				return
			}
			e.events.Fire(core.EventContext{Type: core.EVENT_CODE_ASSET_CHANGED, Data: &change})
		default:
			return
		}
	}
}

// Terminate releases everything in reverse initialization order. Calling it
// again does nothing.
func (e *Engine) Terminate() error {
	if e.currentStage == EngineStageTerminated {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false

	var errs []error
	if err := e.sprite.Terminate(e.pipeline); err != nil {
		errs = append(errs, fmt.Errorf("sprite: %w", err))
	}
	if err := e.pipeline.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("pipeline: %w", err))
	}
	if err := e.assetManager.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("asset manager: %w", err))
	}
	if err := e.window.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("window: %w", err))
	}
	e.events.Reset()

	e.currentStage = EngineStageTerminated
	core.LogInfo("engine %s terminated", e.ID)
	return errors.Join(errs...)
}

func (e *Engine) Stage() Stage                 { return e.currentStage }
func (e *Engine) Frames() uint64               { return e.frames }
func (e *Engine) Window() platform.Window      { return e.window }
func (e *Engine) Backend() renderer.Backend    { return e.backend }
func (e *Engine) Pipeline() *renderer.Pipeline { return e.pipeline }
func (e *Engine) Sprite() *sprite.Sprite       { return e.sprite }
func (e *Engine) Events() *core.EventBus       { return e.events }
func (e *Engine) Input() *core.InputState      { return e.input }

func (e *Engine) onEvent(context core.EventContext) bool {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%s`", context.Type)
		return false
	}
	if context.Type != core.EVENT_CODE_KEY_PRESSED {
		return false
	}

	switch ke.KeyCode {
	case core.KEY_ESCAPE:
		e.window.Close()
		return true
	case core.KEY_F1, core.KEY_F2, core.KEY_F11:
		if !e.cfg.Window.Debug {
			return false
		}
		fullscreen := ke.KeyCode == core.KEY_F2
		if ke.KeyCode == core.KEY_F11 {
			fullscreen = !e.window.IsFullscreen()
		}
		e.window.SetFullscreen(fullscreen)
		return true
	}
	return false
}

func (e *Engine) onResized(context core.EventContext) bool {
	se, ok := context.Data.(*core.SystemEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%s`", context.Type)
		return false
	}
	width, height := se.WindowWidth, se.WindowHeight
	core.LogDebug("%s: %dx%d fullscreen=%t", context.Type, width, height, se.Fullscreen)

	// Handle minimization
	if width == 0 || height == 0 {
		if !e.isSuspended {
			core.LogInfo("Window minimized, suspending application.")
		}
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	e.pipeline.Resized(width, height)
	return true
}

func (e *Engine) onAssetChanged(context core.EventContext) bool {
	ae, ok := context.Data.(*core.AssetEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%s`", context.Type)
		return false
	}
	if ae.Path != e.sprite.TexturePath {
		core.LogDebug("asset changed: %s (removed=%t)", ae.Path, ae.Removed)
		return false
	}
	if ae.Removed {
		core.LogWarn("sprite texture '%s' was removed, keeping the loaded copy", ae.Path)
		return true
	}
	e.pendingReload = true
	return true
}
