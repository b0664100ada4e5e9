package store

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/avaguard/internal/ratelimit"
)

// BreakerConfig configures a BreakerStore.
type BreakerConfig struct {
	// Name identifies the breaker in logs.
	Name string

	// Threshold is the number of requests in an interval before the
	// failure ratio is evaluated.
	Threshold int

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// Logger for state changes and fallbacks.
	Logger *zap.Logger

	// OnStateChange is called after every state transition.
	OnStateChange func(name string, from, to gobreaker.State)
}

// BreakerStore wraps a primary store in a circuit breaker. When the
// primary fails or the breaker is open, requests are checked against the
// fallback store instead, so a Redis outage degrades to per-process limits.
type BreakerStore struct {
	primary  Store
	fallback Store
	cb       *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

// NewBreakerStore creates a BreakerStore. The breaker owns both stores and
// closes them on Close.
func NewBreakerStore(primary, fallback Store, cfg BreakerConfig) *BreakerStore {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "ratelimit-store"
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	threshold := uint32(cfg.Threshold) //nolint:gosec // positive, checked above

	s := &BreakerStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}

	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    cfg.Timeout,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= threshold && failureRatio >= 0.5
		},
		IsSuccessful: func(err error) bool {
			// Cancellation by the caller says nothing about the primary.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("rate limit store breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	})

	return s
}

// State returns the current breaker state.
func (s *BreakerStore) State() gobreaker.State {
	return s.cb.State()
}

// Ping checks the primary store. A failing primary is reported even
// though requests are still served by the fallback.
func (s *BreakerStore) Ping(ctx context.Context) error {
	if p, ok := s.primary.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// GetOrCreate implements Store.
func (s *BreakerStore) GetOrCreate(ctx context.Context, key string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrInvalidKey
	}
	return &breakerHandle{store: s, key: key}, nil
}

// Close implements Store.
func (s *BreakerStore) Close() error {
	return errors.Join(s.primary.Close(), s.fallback.Close())
}

type breakerHandle struct {
	store *BreakerStore
	key   string
}

// Verify implements Handle.
func (h *breakerHandle) Verify(ctx context.Context, quota ratelimit.Quota) (Result, error) {
	if err := quota.Validate(); err != nil {
		return Result{}, err
	}

	out, err := h.store.cb.Execute(func() (interface{}, error) {
		return Allow(ctx, h.store.primary, h.key, quota)
	})
	if err == nil {
		return out.(Result), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}

	h.store.logger.Debug("rate limit store falling back",
		zap.String("key", h.key),
		zap.String("state", h.store.cb.State().String()),
		zap.Error(err),
	)

	return Allow(ctx, h.store.fallback, h.key, quota)
}
