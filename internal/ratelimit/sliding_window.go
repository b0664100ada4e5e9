package ratelimit

import (
	"time"
)

// SlidingWindow counts requests in a window that starts at the first
// request after the previous window ended.
//
// Despite the name it is a fixed-window counter: the count resets once per
// period, so a client can get up to twice the burst through across a
// window boundary.
type SlidingWindow struct {
	// windowEnd is the instant after which the next request opens a new
	// window. The zero value makes the first request open one.
	windowEnd time.Time
	count     int
	now       Clock
}

var (
	_ Guard = (*SlidingWindow)(nil)
	_ Usage = (*SlidingWindow)(nil)
)

// NewSlidingWindow creates a guard using the wall clock.
func NewSlidingWindow() *SlidingWindow {
	return NewSlidingWindowWithClock(time.Now)
}

// NewSlidingWindowWithClock creates a guard reading time from clock.
func NewSlidingWindowWithClock(clock Clock) *SlidingWindow {
	if clock == nil {
		clock = time.Now
	}
	return &SlidingWindow{now: clock}
}

// Verify implements Guard.
func (w *SlidingWindow) Verify(quota Quota) bool {
	now := w.now()
	if now.After(w.windowEnd) {
		w.windowEnd = now.Add(quota.Period)
		w.count = 0
	}

	if w.count < quota.Burst {
		w.count++
		return true
	}
	return false
}

// Remaining implements Usage.
func (w *SlidingWindow) Remaining(quota Quota) int {
	if remaining := quota.Burst - w.count; remaining > 0 {
		return remaining
	}
	return 0
}

// ResetAt implements Usage.
func (w *SlidingWindow) ResetAt() time.Time {
	return w.windowEnd
}

// Count returns the number of requests admitted in the current window.
func (w *SlidingWindow) Count() int {
	return w.count
}
