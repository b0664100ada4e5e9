package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avaguard/internal/ratelimit"
)

var errPrimaryDown = errors.New("primary down")

// failingStore returns handles whose Verify always fails.
type failingStore struct {
	calls  atomic.Int64
	closed atomic.Bool
}

func (s *failingStore) GetOrCreate(context.Context, string) (Handle, error) {
	return s, nil
}

func (s *failingStore) Verify(context.Context, ratelimit.Quota) (Result, error) {
	s.calls.Add(1)
	return Result{}, errPrimaryDown
}

func (s *failingStore) Close() error {
	s.closed.Store(true)
	return nil
}

// ============================================================================
// Test Cases for BreakerStore
// ============================================================================

func TestBreakerStore_UsesPrimaryWhenHealthy(t *testing.T) {
	t.Parallel()

	primary := NewMemoryStore()
	fallback := NewMemoryStore()
	s := NewBreakerStore(primary, fallback, BreakerConfig{})
	defer s.Close()

	ctx := context.Background()
	quota := ratelimit.Quota{Period: time.Minute, Burst: 1}

	res, err := Allow(ctx, s, "k", quota)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	assert.Equal(t, 1, primary.Size())
	assert.Equal(t, 0, fallback.Size())
	assert.Equal(t, gobreaker.StateClosed, s.State())
}

func TestBreakerStore_FallsBackAndOpens(t *testing.T) {
	t.Parallel()

	primary := &failingStore{}
	fallback := NewMemoryStore()

	var transitions atomic.Int64
	s := NewBreakerStore(primary, fallback, BreakerConfig{
		Threshold: 3,
		Timeout:   time.Minute,
		OnStateChange: func(_ string, _, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				transitions.Add(1)
			}
		},
	})
	defer s.Close()

	ctx := context.Background()
	quota := ratelimit.Quota{Period: time.Minute, Burst: 2}

	for i := 0; i < 3; i++ {
		res, err := Allow(ctx, s, "k", quota)
		require.NoError(t, err)
		assert.Equal(t, i < 2, res.Allowed, "request %d", i)
	}

	assert.Equal(t, gobreaker.StateOpen, s.State())
	assert.Equal(t, int64(1), transitions.Load())
	assert.Equal(t, int64(3), primary.calls.Load())

	// While open the primary is not called.
	_, err := Allow(ctx, s, "k", quota)
	require.NoError(t, err)
	assert.Equal(t, int64(3), primary.calls.Load())
}

func TestBreakerStore_InvalidQuotaDoesNotTrip(t *testing.T) {
	t.Parallel()

	primary := &failingStore{}
	s := NewBreakerStore(primary, NewMemoryStore(), BreakerConfig{Threshold: 1})
	defer s.Close()

	_, err := Allow(context.Background(), s, "k", ratelimit.Quota{})
	assert.ErrorIs(t, err, ratelimit.ErrInvalidQuota)
	assert.Equal(t, int64(0), primary.calls.Load())
	assert.Equal(t, gobreaker.StateClosed, s.State())
}

func TestBreakerStore_CloseClosesBoth(t *testing.T) {
	t.Parallel()

	primary := &failingStore{}
	fallback := NewMemoryStore()
	s := NewBreakerStore(primary, fallback, BreakerConfig{})

	require.NoError(t, s.Close())
	assert.True(t, primary.closed.Load())

	_, err := fallback.GetOrCreate(context.Background(), "k")
	assert.ErrorIs(t, err, ErrStoreClosed)

	_, err = s.GetOrCreate(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestBreakerStore_PingChecksPrimary(t *testing.T) {
	t.Parallel()

	primary := NewMemoryStore()
	s := NewBreakerStore(primary, NewMemoryStore(), BreakerConfig{})
	defer s.Close()

	assert.NoError(t, s.Ping(context.Background()))

	require.NoError(t, primary.Close())
	assert.ErrorIs(t, s.Ping(context.Background()), ErrStoreClosed)

	// A primary that cannot be pinged is assumed healthy.
	s2 := NewBreakerStore(&failingStore{}, NewMemoryStore(), BreakerConfig{})
	defer s2.Close()
	assert.NoError(t, s2.Ping(context.Background()))
}
