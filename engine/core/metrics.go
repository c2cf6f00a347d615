package core

import "time"

// FrameCounter counts executed frames and publishes the count once per second.
// The published value is only shown in the debug window title.
type FrameCounter struct {
	Frames   int32
	FPS      int32
	lastRoll time.Time
}

// Roll publishes the frame count if at least one second passed since the
// previous roll and starts a new window.
func (fc *FrameCounter) Roll(now time.Time) bool {
	if fc.lastRoll.IsZero() {
		fc.lastRoll = now
		return false
	}
	if now.Sub(fc.lastRoll) < time.Second {
		return false
	}
	fc.lastRoll = now
	fc.FPS = fc.Frames
	fc.Frames = 0
	return true
}

func (fc *FrameCounter) Count() {
	fc.Frames++
}
