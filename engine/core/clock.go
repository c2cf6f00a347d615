package core

import "time"

// TimeSource returns the current time. The engine uses time.Now, tests inject a fake.
type TimeSource func() time.Time

type Clock struct {
	now       TimeSource
	startTime time.Time
	elapsed   time.Duration
}

func NewClock(now TimeSource) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Updates the provided clock. Should be called just before checking elapsed time.
// Has no effect on non-started clocks.
func (c *Clock) Update() {
	if !c.startTime.IsZero() {
		c.elapsed = c.now().Sub(c.startTime)
	}
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	c.startTime = c.now()
	c.elapsed = 0
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.startTime = time.Time{}
}

func (c *Clock) Elapsed() time.Duration {
	return c.elapsed
}

// Now reads the clock's time source without touching the elapsed time.
func (c *Clock) Now() time.Time {
	return c.now()
}
