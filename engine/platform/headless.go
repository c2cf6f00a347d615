package platform

import "github.com/spaghettifunk/anima-quad/engine/core"

// Headless is a window without a display. It stays open until Close is
// called, tests and the headless renderer use it.
type Headless struct {
	Title      string
	Fullscreen bool

	events  *core.EventBus
	cfg     WindowConfig
	open    bool
	started bool
}

var _ Window = (*Headless)(nil)

func NewHeadless(events *core.EventBus) *Headless {
	return &Headless{events: events}
}

func (h *Headless) Startup(cfg WindowConfig) error {
	h.cfg = cfg
	h.Title = cfg.Title
	h.Fullscreen = cfg.Fullscreen
	h.open = true
	h.started = true
	core.LogDebug("headless window '%s' started: %dx%d", cfg.Title, cfg.Width, cfg.Height)
	return nil
}

func (h *Headless) PumpMessages() bool {
	return h.open
}

func (h *Headless) SetTitle(title string) {
	h.Title = title
}

func (h *Headless) SetFullscreen(fullscreen bool) {
	if fullscreen == h.Fullscreen {
		return
	}
	h.Fullscreen = fullscreen
	w, ht := h.FramebufferSize()
	if h.events != nil {
		h.events.Fire(core.EventContext{
			Type: core.EVENT_CODE_DISPLAY_MODE_CHANGED,
			Data: &core.SystemEvent{WindowWidth: w, WindowHeight: ht, Fullscreen: fullscreen},
		})
	}
}

func (h *Headless) IsFullscreen() bool {
	return h.Fullscreen
}

func (h *Headless) FramebufferSize() (uint32, uint32) {
	return h.cfg.Width, h.cfg.Height
}

func (h *Headless) Close() {
	h.open = false
}

func (h *Headless) Shutdown() error {
	h.open = false
	h.started = false
	return nil
}
