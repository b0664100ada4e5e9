// Package ratelimit provides the per-key admission guards used by the
// rate limit middleware. Guards hold only their own window state; the
// association between a client key and its guard belongs to a keyed store
// (see the store subpackage), which also serializes access per key.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// ErrInvalidQuota is returned when a quota cannot be enforced.
var ErrInvalidQuota = errors.New("invalid quota")

// Quota describes how many requests a key may make per period.
type Quota struct {
	// Period is the length of a window.
	Period time.Duration

	// Burst is the number of requests admitted per window.
	Burst int
}

// Validate checks that the quota can be enforced.
func (q Quota) Validate() error {
	if q.Period <= 0 {
		return fmt.Errorf("%w: period must be positive, got %s", ErrInvalidQuota, q.Period)
	}
	if q.Burst < 1 {
		return fmt.Errorf("%w: burst must be at least 1, got %d", ErrInvalidQuota, q.Burst)
	}
	return nil
}

// String returns the quota as "burst/period".
func (q Quota) String() string {
	return fmt.Sprintf("%d/%s", q.Burst, q.Period)
}

// QuotaGetter returns the quota that applies to a key.
type QuotaGetter interface {
	Quota(ctx context.Context, key string) (Quota, error)
}

// StaticQuota applies the same quota to every key.
type StaticQuota Quota

// Quota implements QuotaGetter.
func (s StaticQuota) Quota(context.Context, string) (Quota, error) {
	return Quota(s), nil
}

// DynamicQuota applies one quota to every key and can be swapped at runtime.
type DynamicQuota struct {
	current atomic.Pointer[Quota]
}

// NewDynamicQuota returns a DynamicQuota starting at q.
func NewDynamicQuota(q Quota) *DynamicQuota {
	d := &DynamicQuota{}
	d.Store(q)
	return d
}

// Store replaces the quota.
func (d *DynamicQuota) Store(q Quota) {
	d.current.Store(&q)
}

// Load returns the current quota.
func (d *DynamicQuota) Load() Quota {
	return *d.current.Load()
}

// Quota implements QuotaGetter.
func (d *DynamicQuota) Quota(context.Context, string) (Quota, error) {
	return d.Load(), nil
}
