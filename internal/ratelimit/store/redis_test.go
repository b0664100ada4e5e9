package store

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/avaguard/internal/ratelimit"
)

func newTestRedisStore(t *testing.T, clock *fakeClock) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	s, err := NewRedisStoreWithConfig(&RedisConfig{
		Address:     mr.Addr(),
		Prefix:      "test:",
		DialTimeout: time.Second,
		Logger:      zap.NewNop(),
		Clock:       clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, mr
}

// ============================================================================
// Test Cases for RedisStore
// ============================================================================

func TestRedisStore_WindowSequence(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s, _ := newTestRedisStore(t, clock)

	ctx := context.Background()
	quota := ratelimit.Quota{Period: time.Second, Burst: 2}

	res, err := Allow(ctx, s, "client", quota)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, time.Second, res.ResetAfter)

	res, err = Allow(ctx, s, "client", quota)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	clock.Advance(300 * time.Millisecond)
	res, err = Allow(ctx, s, "client", quota)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 700*time.Millisecond, res.ResetAfter)

	clock.Advance(701 * time.Millisecond)
	res, err = Allow(ctx, s, "client", quota)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
}

func TestRedisStore_MatchesMemoryStore(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	rs, _ := newTestRedisStore(t, clock)
	ms := NewMemoryStore(WithClock(clock.Now))
	defer ms.Close()

	ctx := context.Background()
	quota := ratelimit.Quota{Period: 100 * time.Millisecond, Burst: 3}
	steps := []time.Duration{0, 10, 10, 10, 10, 80, 1, 1, 1, 1, 150, 0, 0}

	for i, step := range steps {
		clock.Advance(step * time.Millisecond)

		want, err := Allow(ctx, ms, "k", quota)
		require.NoError(t, err)
		got, err := Allow(ctx, rs, "k", quota)
		require.NoError(t, err)

		assert.Equal(t, want.Allowed, got.Allowed, "step %d", i)
		assert.Equal(t, want.Remaining, got.Remaining, "step %d", i)
	}
}

func TestRedisStore_KeyLayout(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s, mr := newTestRedisStore(t, clock)

	_, err := Allow(context.Background(), s, "10.0.0.1", ratelimit.Quota{Period: time.Minute, Burst: 5})
	require.NoError(t, err)

	require.True(t, mr.Exists("test:10.0.0.1"))
	assert.Equal(t, "1", mr.HGet("test:10.0.0.1", "count"))

	windowEnd, err := strconv.ParseInt(mr.HGet("test:10.0.0.1", "window_end"), 10, 64)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Minute).UnixMilli(), windowEnd)
	assert.Greater(t, mr.TTL("test:10.0.0.1"), time.Minute)
}

func TestRedisStore_KeyExpiryResetsWindow(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s, mr := newTestRedisStore(t, clock)

	ctx := context.Background()
	quota := ratelimit.Quota{Period: time.Minute, Burst: 1}

	res, err := Allow(ctx, s, "k", quota)
	require.NoError(t, err)
	require.True(t, res.Allowed)

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("test:k"))

	res, err = Allow(ctx, s, "k", quota)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRedisStore_Errors(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s, mr := newTestRedisStore(t, clock)

	_, err := s.GetOrCreate(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidKey)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.GetOrCreate(ctx, "k")
	assert.True(t, errors.Is(err, context.Canceled), "expected context.Canceled, got %v", err)

	h, err := s.GetOrCreate(context.Background(), "k")
	require.NoError(t, err)
	_, err = h.Verify(context.Background(), ratelimit.Quota{Period: time.Second})
	assert.ErrorIs(t, err, ratelimit.ErrInvalidQuota)

	mr.Close()
	_, err = h.Verify(context.Background(), ratelimit.Quota{Period: time.Second, Burst: 1})
	assert.Error(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, err = s.GetOrCreate(context.Background(), "k")
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestNewRedisStore_ConnectionFailure(t *testing.T) {
	t.Parallel()

	_, err := NewRedisStoreWithConfig(&RedisConfig{
		Address:           "127.0.0.1:1",
		DialTimeout:       100 * time.Millisecond,
		ConnectionRetries: 1,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        time.Millisecond,
	})
	require.Error(t, err)
}

func TestDecorrelatedJitterBackoff(t *testing.T) {
	t.Parallel()

	b := newDecorrelatedJitterBackoff(10*time.Millisecond, 50*time.Millisecond)

	assert.Equal(t, 10*time.Millisecond, b.next(0))
	for attempt := 1; attempt < 10; attempt++ {
		wait := b.next(attempt)
		assert.GreaterOrEqual(t, wait, 10*time.Millisecond)
		assert.LessOrEqual(t, wait, 50*time.Millisecond)
	}
}

func TestRedisStore_Ping(t *testing.T) {
	t.Parallel()

	s, mr := newTestRedisStore(t, newFakeClock())
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))

	mr.SetError("ERR injected failure")
	assert.Error(t, s.Ping(ctx))
	mr.SetError("")

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(ctx), ErrStoreClosed)
}
