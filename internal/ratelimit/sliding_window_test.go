package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ============================================================================
// Test Cases for SlidingWindow
// ============================================================================

func TestSlidingWindow_AdmissionSequence(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	w := NewSlidingWindowWithClock(clock.Now)
	quota := Quota{Period: time.Second, Burst: 2}

	assert.True(t, w.Verify(quota), "call 1")
	assert.Equal(t, 1, w.Count())
	assert.True(t, w.Verify(quota), "call 2")
	assert.Equal(t, 2, w.Count())
	assert.False(t, w.Verify(quota), "call 3 in same window")
	assert.Equal(t, 2, w.Count())

	clock.Advance(time.Second + time.Nanosecond)

	assert.True(t, w.Verify(quota), "call 4 after window")
	assert.Equal(t, 1, w.Count())
}

func TestSlidingWindow_ResetOnlyStrictlyAfterWindowEnd(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	w := NewSlidingWindowWithClock(clock.Now)
	quota := Quota{Period: time.Second, Burst: 1}

	require.True(t, w.Verify(quota))
	windowEnd := w.ResetAt()
	assert.Equal(t, clock.Now().Add(time.Second), windowEnd)

	clock.Advance(time.Second)
	assert.False(t, w.Verify(quota), "exactly at window end is still the same window")

	clock.Advance(time.Nanosecond)
	assert.True(t, w.Verify(quota))
	assert.True(t, w.ResetAt().After(windowEnd))
}

func TestSlidingWindow_RejectionDoesNotChangeState(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	w := NewSlidingWindowWithClock(clock.Now)
	quota := Quota{Period: time.Minute, Burst: 1}

	require.True(t, w.Verify(quota))
	end := w.ResetAt()

	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		assert.False(t, w.Verify(quota))
	}

	assert.Equal(t, end, w.ResetAt())
	assert.Equal(t, 1, w.Count())
}

func TestSlidingWindow_BoundaryBurst(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	w := NewSlidingWindowWithClock(clock.Now)
	quota := Quota{Period: time.Second, Burst: 3}

	// First request opens the window; the rest of the burst arrives just
	// before it closes and another full burst right after.
	admitted := 0
	if w.Verify(quota) {
		admitted++
	}
	clock.Advance(999 * time.Millisecond)
	for i := 0; i < 3; i++ {
		if w.Verify(quota) {
			admitted++
		}
	}
	clock.Advance(2 * time.Millisecond)
	for i := 0; i < 3; i++ {
		if w.Verify(quota) {
			admitted++
		}
	}

	assert.Equal(t, 6, admitted)
}

func TestSlidingWindow_Remaining(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	w := NewSlidingWindowWithClock(clock.Now)
	quota := Quota{Period: time.Second, Burst: 3}

	assert.Equal(t, 3, w.Remaining(quota))
	w.Verify(quota)
	assert.Equal(t, 2, w.Remaining(quota))
	w.Verify(quota)
	w.Verify(quota)
	w.Verify(quota)
	assert.Equal(t, 0, w.Remaining(quota))
}

func TestSlidingWindow_QuotaChangeTakesEffectImmediately(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	w := NewSlidingWindowWithClock(clock.Now)

	require.True(t, w.Verify(Quota{Period: time.Second, Burst: 1}))
	assert.False(t, w.Verify(Quota{Period: time.Second, Burst: 1}))
	assert.True(t, w.Verify(Quota{Period: time.Second, Burst: 2}))
}

func TestSlidingWindow_WallClock(t *testing.T) {
	t.Parallel()

	w := NewSlidingWindow()
	quota := Quota{Period: 50 * time.Millisecond, Burst: 2}

	assert.True(t, w.Verify(quota))
	assert.True(t, w.Verify(quota))
	assert.False(t, w.Verify(quota))

	time.Sleep(60 * time.Millisecond)

	assert.True(t, w.Verify(quota))
	assert.Equal(t, 1, w.Count())
}

func TestNewSlidingWindowWithClock_NilClock(t *testing.T) {
	t.Parallel()

	w := NewSlidingWindowWithClock(nil)
	assert.True(t, w.Verify(Quota{Period: time.Second, Burst: 1}))
}
