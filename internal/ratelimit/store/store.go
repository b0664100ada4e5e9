// Package store provides keyed storage for rate limit guards.
//
// A Store maps a client key to the state of its guard. Handles returned by
// GetOrCreate serialize Verify calls for their key, so a guard is never
// mutated by two callers at once.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/vyrodovalexey/avaguard/internal/ratelimit"
)

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("rate limit store is closed")

// ErrInvalidKey is returned when a key is empty.
var ErrInvalidKey = errors.New("invalid rate limit key")

// Result is the outcome of a single admission check.
type Result struct {
	// Allowed reports whether the request is admitted.
	Allowed bool

	// Limit is the burst of the quota that was applied.
	Limit int

	// Remaining is the number of requests still admitted in the window.
	Remaining int

	// ResetAfter is the time until the key regains capacity.
	ResetAfter time.Duration
}

// Handle gives access to the guard of a single key.
type Handle interface {
	// Verify consumes one unit of quota for the key.
	Verify(ctx context.Context, quota ratelimit.Quota) (Result, error)
}

// Store defines the interface for keyed guard storage.
type Store interface {
	// GetOrCreate returns the handle for key, creating its guard if needed.
	GetOrCreate(ctx context.Context, key string) (Handle, error)

	// Close closes the store and releases resources.
	Close() error
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Allow is a convenience for GetOrCreate followed by Verify.
func Allow(ctx context.Context, s Store, key string, quota ratelimit.Quota) (Result, error) {
	h, err := s.GetOrCreate(ctx, key)
	if err != nil {
		return Result{}, err
	}
	return h.Verify(ctx, quota)
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
