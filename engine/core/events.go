package core

import "fmt"

// System internal event codes.
type EventCode uint8

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT EventCode = iota + 1
	// Keyboard key pressed. Data is a *KeyEvent.
	EVENT_CODE_KEY_PRESSED
	// Keyboard key released. Data is a *KeyEvent.
	EVENT_CODE_KEY_RELEASED
	// Framebuffer resized. Data is a *SystemEvent.
	EVENT_CODE_RESIZED
	// Display mode switched between windowed and fullscreen. Data is a *SystemEvent.
	EVENT_CODE_DISPLAY_MODE_CHANGED
	// A watched asset changed on disk. Data is a *AssetEvent.
	EVENT_CODE_ASSET_CHANGED
)

func (c EventCode) String() string {
	switch c {
	case EVENT_CODE_APPLICATION_QUIT:
		return "application_quit"
	case EVENT_CODE_KEY_PRESSED:
		return "key_pressed"
	case EVENT_CODE_KEY_RELEASED:
		return "key_released"
	case EVENT_CODE_RESIZED:
		return "resized"
	case EVENT_CODE_DISPLAY_MODE_CHANGED:
		return "display_mode_changed"
	case EVENT_CODE_ASSET_CHANGED:
		return "asset_changed"
	}
	return fmt.Sprintf("event(%d)", uint8(c))
}

type EventContext struct {
	Type EventCode
	Data interface{}
}

type KeyEvent struct {
	KeyCode KeyCode
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
	Fullscreen   bool
}

type AssetEvent struct {
	Path    string
	Removed bool
}

// Should return true if handled.
type FnOnEvent func(context EventContext) bool

// EventBus dispatches events synchronously on the caller's goroutine.
// It is owned by the engine and only used from the main thread.
type EventBus struct {
	registered map[EventCode][]FnOnEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[EventCode][]FnOnEvent),
	}
}

// Register adds a listener for the given code. Listeners are called in
// registration order.
func (eb *EventBus) Register(code EventCode, onEvent FnOnEvent) {
	eb.registered[code] = append(eb.registered[code], onEvent)
}

// Fire sends the event to the listeners of its code. If a listener returns
// true the event is considered handled and is not passed on.
func (eb *EventBus) Fire(context EventContext) bool {
	for _, callback := range eb.registered[context.Type] {
		if callback(context) {
			return true
		}
	}
	return false
}

// Reset drops all listeners.
func (eb *EventBus) Reset() {
	eb.registered = make(map[EventCode][]FnOnEvent)
}
