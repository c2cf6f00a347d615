package core

// Key code definitions. Values are the Win32 virtual key codes.
type KeyCode uint16

const (
	KEY_UNKNOWN KeyCode = 0x00
	KEY_ENTER   KeyCode = 0x0D
	KEY_ESCAPE  KeyCode = 0x1B
	KEY_SPACE   KeyCode = 0x20
	KEY_F1      KeyCode = 0x70
	KEY_F2      KeyCode = 0x71
	KEY_F11     KeyCode = 0x7A

	MAX_KEYS KeyCode = 0xFF
)

func (k KeyCode) String() string {
	switch k {
	case KEY_ENTER:
		return "enter"
	case KEY_ESCAPE:
		return "escape"
	case KEY_SPACE:
		return "space"
	case KEY_F1:
		return "f1"
	case KEY_F2:
		return "f2"
	case KEY_F11:
		return "f11"
	}
	return "unknown"
}

type KeyboardState struct {
	Keys [MAX_KEYS]bool
}

// InputState tracks key state and turns changes into key events.
type InputState struct {
	KeyboardCurrent  KeyboardState
	KeyboardPrevious KeyboardState

	events *EventBus
}

func NewInputState(events *EventBus) *InputState {
	return &InputState{events: events}
}

// Update copies the current state to the previous state. Call it once per step.
func (is *InputState) Update() {
	is.KeyboardPrevious = is.KeyboardCurrent
}

func (is *InputState) IsKeyDown(key KeyCode) bool {
	return key < MAX_KEYS && is.KeyboardCurrent.Keys[key]
}

func (is *InputState) WasKeyDown(key KeyCode) bool {
	return key < MAX_KEYS && is.KeyboardPrevious.Keys[key]
}

// ProcessKey records the key state and fires a key event when it changed.
func (is *InputState) ProcessKey(key KeyCode, pressed bool) {
	if key >= MAX_KEYS || is.KeyboardCurrent.Keys[key] == pressed {
		return
	}
	is.KeyboardCurrent.Keys[key] = pressed

	code := EVENT_CODE_KEY_RELEASED
	if pressed {
		code = EVENT_CODE_KEY_PRESSED
	}
	if is.events != nil {
		is.events.Fire(EventContext{
			Type: code,
			Data: &KeyEvent{KeyCode: key},
		})
	}
}
