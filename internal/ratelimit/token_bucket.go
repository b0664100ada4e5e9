package ratelimit

import (
	"math"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket admits requests while tokens remain. The bucket holds
// quota.Burst tokens and refills completely over quota.Period.
type TokenBucket struct {
	limiter *rate.Limiter
	quota   Quota
	now     Clock
}

var (
	_ Guard = (*TokenBucket)(nil)
	_ Usage = (*TokenBucket)(nil)
)

// NewTokenBucket creates a guard using the wall clock.
func NewTokenBucket() *TokenBucket {
	return NewTokenBucketWithClock(time.Now)
}

// NewTokenBucketWithClock creates a guard reading time from clock.
func NewTokenBucketWithClock(clock Clock) *TokenBucket {
	if clock == nil {
		clock = time.Now
	}
	return &TokenBucket{now: clock}
}

// refillRate returns the number of tokens added per second.
func refillRate(quota Quota) rate.Limit {
	if quota.Period <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(quota.Burst) / quota.Period.Seconds())
}

// Verify implements Guard.
func (b *TokenBucket) Verify(quota Quota) bool {
	now := b.now()

	switch {
	case b.limiter == nil:
		// A new bucket starts full.
		b.limiter = rate.NewLimiter(refillRate(quota), quota.Burst)
		b.quota = quota
	case b.quota != quota:
		b.limiter.SetLimitAt(now, refillRate(quota))
		b.limiter.SetBurstAt(now, quota.Burst)
		b.quota = quota
	}

	return b.limiter.AllowN(now, 1)
}

// Remaining implements Usage.
func (b *TokenBucket) Remaining(quota Quota) int {
	if b.limiter == nil {
		return quota.Burst
	}
	tokens := b.limiter.TokensAt(b.now())
	if tokens <= 0 {
		return 0
	}
	return int(math.Floor(tokens))
}

// ResetAt implements Usage. It returns when the bucket will be full again.
func (b *TokenBucket) ResetAt() time.Time {
	now := b.now()
	if b.limiter == nil {
		return now
	}

	missing := float64(b.limiter.Burst()) - b.limiter.TokensAt(now)
	limit := float64(b.limiter.Limit())
	if missing <= 0 || limit <= 0 || math.IsInf(limit, 1) {
		return now
	}
	return now.Add(time.Duration(missing / limit * float64(time.Second)))
}
