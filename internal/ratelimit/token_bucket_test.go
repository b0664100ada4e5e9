package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket_StartsFull(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewTokenBucketWithClock(clock.Now)
	quota := Quota{Period: time.Second, Burst: 3}

	assert.Equal(t, 3, b.Remaining(quota))
	assert.True(t, b.Verify(quota))
	assert.True(t, b.Verify(quota))
	assert.True(t, b.Verify(quota))
	assert.False(t, b.Verify(quota))
	assert.Equal(t, 0, b.Remaining(quota))
}

func TestTokenBucket_Refill(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewTokenBucketWithClock(clock.Now)
	quota := Quota{Period: time.Second, Burst: 2}

	require.True(t, b.Verify(quota))
	require.True(t, b.Verify(quota))
	require.False(t, b.Verify(quota))

	// Two tokens per second: one token every 500ms.
	clock.Advance(500 * time.Millisecond)
	assert.True(t, b.Verify(quota))
	assert.False(t, b.Verify(quota))

	clock.Advance(time.Second)
	assert.Equal(t, 2, b.Remaining(quota))
}

func TestTokenBucket_ResetAt(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewTokenBucketWithClock(clock.Now)
	quota := Quota{Period: time.Second, Burst: 2}

	assert.Equal(t, clock.Now(), b.ResetAt())

	require.True(t, b.Verify(quota))
	require.True(t, b.Verify(quota))

	assert.Equal(t, clock.Now().Add(time.Second), b.ResetAt())
}

func TestTokenBucket_QuotaChange(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewTokenBucketWithClock(clock.Now)

	require.True(t, b.Verify(Quota{Period: time.Second, Burst: 1}))
	require.False(t, b.Verify(Quota{Period: time.Second, Burst: 1}))

	// Tokens accrued at the old rate are kept; the faster refill applies
	// from the change onwards.
	faster := Quota{Period: time.Second, Burst: 10}
	clock.Advance(100 * time.Millisecond)
	assert.False(t, b.Verify(faster))

	clock.Advance(100 * time.Millisecond)
	assert.True(t, b.Verify(faster))
}

func TestNewGuardFactory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		algorithm Algorithm
		wantType  interface{}
		wantErr   bool
	}{
		{name: "default", algorithm: "", wantType: &SlidingWindow{}},
		{name: "sliding window", algorithm: AlgorithmSlidingWindow, wantType: &SlidingWindow{}},
		{name: "token bucket", algorithm: AlgorithmTokenBucket, wantType: &TokenBucket{}},
		{name: "unknown", algorithm: "leaky_bucket", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			factory, err := NewGuardFactory(tt.algorithm, nil)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, factory)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, factory())
		})
	}
}
