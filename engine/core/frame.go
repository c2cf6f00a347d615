package core

import (
	"errors"
	"fmt"
	"time"
)

// DefaultTargetFPS is the fixed update/draw rate of the sample.
const DefaultTargetFPS = 120

// FrameDriver runs the update+draw step at a fixed rate. Each Tick executes at
// most one step and never catches up on missed ticks.
type FrameDriver struct {
	tick     time.Duration
	clock    *Clock
	lastStep time.Time
	counter  FrameCounter
	started  bool
	step     func() error
}

func NewFrameDriver(targetFPS int, now TimeSource, step func() error) (*FrameDriver, error) {
	if targetFPS <= 0 {
		return nil, fmt.Errorf("target fps must be positive, got %d", targetFPS)
	}
	if step == nil {
		return nil, fmt.Errorf("frame driver needs a step function")
	}
	return &FrameDriver{
		tick:  time.Second / time.Duration(targetFPS),
		clock: NewClock(now),
		step:  step,
	}, nil
}

// Start resets the step and per-second references to the current time.
func (fd *FrameDriver) Start() {
	fd.clock.Start()
	now := fd.clock.Now()
	fd.lastStep = now
	fd.counter = FrameCounter{}
	fd.counter.Roll(now)
	fd.started = true
}

// Tick polls the time source and executes the step if a tick has elapsed.
// It reports whether the step ran.
func (fd *FrameDriver) Tick() (bool, error) {
	if !fd.started {
		fd.Start()
	}
	fd.clock.Update()
	now := fd.clock.Now()

	if fd.counter.Roll(now) {
		LogDebug("fps: %d", fd.counter.FPS)
	}

	if now.Sub(fd.lastStep) < fd.tick {
		return false, nil
	}
	fd.lastStep = now

	if err := fd.step(); err != nil {
		// A skipped step is not an error but does not count as a frame.
		if errors.Is(err, ErrFrameSkipped) {
			return true, nil
		}
		return true, err
	}
	fd.counter.Count()
	return true, nil
}

// FPS is the number of steps executed during the last full second.
func (fd *FrameDriver) FPS() int32 {
	return fd.counter.FPS
}

func (fd *FrameDriver) TickDuration() time.Duration {
	return fd.tick
}

// Uptime is the time since Start, as of the last Tick.
func (fd *FrameDriver) Uptime() time.Duration {
	return fd.clock.Elapsed()
}
