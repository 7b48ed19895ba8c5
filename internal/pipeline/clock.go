package pipeline

import (
	"sync"
	"time"
)

// StepClock is a synthetic clock that advances by a fixed step on every
// reading. Offline runs use it so throttling follows frame cadence rather
// than processing speed.
type StepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewStepClock starts at start and advances by step per call to Now.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{now: start, step: step}
}

// NewFPSClock steps at the frame interval of fps, starting at the Unix epoch.
func NewFPSClock(fps float64) *StepClock {
	step := time.Duration(0)
	if fps > 0 {
		step = time.Duration(float64(time.Second) / fps)
	}
	return NewStepClock(time.Unix(0, 0).UTC(), step)
}

// Now returns the current reading and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}
