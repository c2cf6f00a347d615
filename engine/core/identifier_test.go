package core

import (
	"errors"
	"testing"
)

func TestIdentifiersAcquireRelease(t *testing.T) {
	var ids Identifiers

	a := ids.Acquire("a")
	b := ids.Acquire("b")
	if a == 0 || b == 0 || a == b {
		t.Fatalf("unexpected ids a=%d b=%d", a, b)
	}
	if got := ids.Lookup(b); got != "b" {
		t.Errorf("Lookup(%d) = %v, want b", b, got)
	}
	if err := ids.Release(a); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := ids.Release(a); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("second Release = %v, want ErrInvalidHandle", err)
	}
	// released slot is reused
	if c := ids.Acquire("c"); c != a {
		t.Errorf("Acquire after release = %d, want %d", c, a)
	}
	if got := ids.Live(); got != 2 {
		t.Errorf("Live = %d, want 2", got)
	}
	if err := ids.Release(0); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Release(0) = %v, want ErrInvalidHandle", err)
	}
}

func TestEventBusStopsWhenHandled(t *testing.T) {
	bus := NewEventBus()
	var calls []string
	bus.Register(EVENT_CODE_KEY_PRESSED, func(ctx EventContext) bool {
		calls = append(calls, "first")
		return true
	})
	bus.Register(EVENT_CODE_KEY_PRESSED, func(ctx EventContext) bool {
		calls = append(calls, "second")
		return false
	})

	if !bus.Fire(EventContext{Type: EVENT_CODE_KEY_PRESSED}) {
		t.Error("Fire returned false for a handled event")
	}
	if len(calls) != 1 || calls[0] != "first" {
		t.Errorf("calls = %v, want [first]", calls)
	}
	if bus.Fire(EventContext{Type: EVENT_CODE_RESIZED}) {
		t.Error("Fire returned true with no listeners")
	}
}

func TestInputFiresOnChangeOnly(t *testing.T) {
	bus := NewEventBus()
	pressed := 0
	bus.Register(EVENT_CODE_KEY_PRESSED, func(ctx EventContext) bool {
		if ke := ctx.Data.(*KeyEvent); ke.KeyCode == KEY_ESCAPE {
			pressed++
		}
		return false
	})
	input := NewInputState(bus)

	input.ProcessKey(KEY_ESCAPE, true)
	input.ProcessKey(KEY_ESCAPE, true)
	if pressed != 1 {
		t.Errorf("pressed events = %d, want 1", pressed)
	}
	if !input.IsKeyDown(KEY_ESCAPE) {
		t.Error("escape not down")
	}
	input.Update()
	input.ProcessKey(KEY_ESCAPE, false)
	if !input.WasKeyDown(KEY_ESCAPE) || input.IsKeyDown(KEY_ESCAPE) {
		t.Error("previous/current key state not tracked")
	}
}
