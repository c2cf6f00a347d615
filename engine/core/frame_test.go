package core

import (
	"errors"
	"io"
	"os"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

type fakeClock struct {
	t time.Time
}

func (fc *fakeClock) now() time.Time { return fc.t }

func (fc *fakeClock) advance(d time.Duration) { fc.t = fc.t.Add(d) }

func newTestDriver(t *testing.T, steps *int) (*FrameDriver, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	fd, err := NewFrameDriver(DefaultTargetFPS, clk.now, func() error {
		*steps++
		return nil
	})
	if err != nil {
		t.Fatalf("NewFrameDriver: %v", err)
	}
	fd.Start()
	return fd, clk
}

func TestFrameDriverRateLimit(t *testing.T) {
	steps := 0
	fd, clk := newTestDriver(t, &steps)
	tick := fd.TickDuration()

	tests := []struct {
		advance time.Duration
		stepped bool
	}{
		{0, false},
		{tick / 2, false},
		{tick - tick/2 - time.Nanosecond, false},
		{time.Nanosecond, true},
		{0, false},
		{tick - time.Millisecond, false},
		{time.Millisecond, true},
		// a long stall still executes exactly one step
		{50 * tick, true},
		{0, false},
	}

	want := 0
	for i, tt := range tests {
		clk.advance(tt.advance)
		stepped, err := fd.Tick()
		if err != nil {
			t.Fatalf("%d: unexpected error %v", i, err)
		}
		if stepped != tt.stepped {
			t.Errorf("%d: stepped = %v, want %v", i, stepped, tt.stepped)
		}
		if tt.stepped {
			want++
		}
		if steps != want {
			t.Errorf("%d: steps = %d, want %d", i, steps, want)
		}
	}
}

func TestFrameDriverTickDuration(t *testing.T) {
	fd, err := NewFrameDriver(120, nil, func() error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	if got, want := fd.TickDuration(), time.Second/120; got != want {
		t.Errorf("tick = %v, want %v", got, want)
	}
}

func TestFrameDriverRejectsBadConfig(t *testing.T) {
	if _, err := NewFrameDriver(0, nil, func() error { return nil }); err == nil {
		t.Error("expected error for zero fps")
	}
	if _, err := NewFrameDriver(60, nil, nil); err == nil {
		t.Error("expected error for nil step")
	}
}

func TestFrameDriverCountsFPS(t *testing.T) {
	steps := 0
	fd, clk := newTestDriver(t, &steps)

	// 10 ms per call is above the tick, so every call steps.
	for i := 0; i < 100; i++ {
		clk.advance(10 * time.Millisecond)
		if _, err := fd.Tick(); err != nil {
			t.Fatal(err)
		}
	}
	// The roll at the 100th call happens before that call's step.
	if got := fd.FPS(); got != 99 {
		t.Errorf("fps = %d, want 99", got)
	}
}

func TestFrameDriverStepError(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	boom := errors.New("boom")
	fd, err := NewFrameDriver(60, clk.now, func() error { return boom })
	if err != nil {
		t.Fatal(err)
	}
	fd.Start()
	clk.advance(time.Second)
	stepped, err := fd.Tick()
	if !stepped || !errors.Is(err, boom) {
		t.Errorf("Tick = (%v, %v), want (true, boom)", stepped, err)
	}
}

func TestFrameDriverSkippedStepNotCounted(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	calls := 0
	fd, err := NewFrameDriver(DefaultTargetFPS, clk.now, func() error {
		calls++
		if calls%2 == 0 {
			return ErrFrameSkipped
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	fd.Start()

	for i := 0; i < 100; i++ {
		clk.advance(10 * time.Millisecond)
		stepped, err := fd.Tick()
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if !stepped {
			t.Fatalf("tick %d did not step", i)
		}
	}
	// 99 steps ran before the roll, every second one was skipped.
	if got := fd.FPS(); got != 50 {
		t.Errorf("fps = %d, want 50", got)
	}
}
