// ABOUTME: Pausable playback clock anchored at a presentation time
// ABOUTME: Reports elapsed seconds and supports forward-only drift re-anchoring
package sync

import (
	"sync"
	"time"
)

// Clock is a stopwatch that starts at an arbitrary presentation time,
// excludes paused intervals and is safe for concurrent use
type Clock struct {
	mu      sync.RWMutex
	now     func() time.Time
	offset  float64   // seconds at the last anchor or pause
	started time.Time // wall time of the last anchor or resume
	paused  bool
}

// NewClock creates a clock paused at zero
func NewClock() *Clock {
	return newClockWithNow(time.Now)
}

func newClockWithNow(now func() time.Time) *Clock {
	return &Clock{
		now:    now,
		paused: true,
	}
}

// StartAt anchors the clock at seconds and runs it
func (c *Clock) StartAt(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.offset = seconds
	c.started = c.now()
	c.paused = false
}

// Restart anchors the clock at seconds and leaves it paused
func (c *Clock) Restart(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.offset = seconds
	c.paused = true
}

// Pause freezes elapsed time
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused {
		return
	}
	c.offset = c.elapsedLocked()
	c.paused = true
}

// Resume continues from the paused position
func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.paused {
		return
	}
	c.started = c.now()
	c.paused = false
}

// Elapsed returns the current presentation time in seconds
func (c *Clock) Elapsed() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.elapsedLocked()
}

func (c *Clock) elapsedLocked() float64 {
	if c.paused {
		return c.offset
	}
	return c.offset + c.now().Sub(c.started).Seconds()
}

// IsPaused reports whether the clock is frozen
func (c *Clock) IsPaused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// Advance re-anchors the clock at seconds when that is ahead of the current
// position, keeping the paused or running state. It reports whether the
// anchor moved.
func (c *Clock) Advance(seconds float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seconds <= c.elapsedLocked() {
		return false
	}
	c.offset = seconds
	c.started = c.now()
	return true
}
