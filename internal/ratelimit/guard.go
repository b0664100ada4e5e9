package ratelimit

import (
	"fmt"
	"time"
)

// Guard decides whether a single key may make another request.
//
// Guards are not safe for concurrent use; the store that owns a guard
// must ensure at most one caller runs Verify at a time.
type Guard interface {
	// Verify consumes one unit of quota and reports whether the request
	// is admitted. It never blocks and never fails.
	Verify(quota Quota) bool
}

// Usage is implemented by guards that can report their remaining capacity.
type Usage interface {
	// Remaining returns how many more requests the current window admits.
	Remaining(quota Quota) int

	// ResetAt returns when the guard next regains capacity.
	ResetAt() time.Time
}

// Clock returns the current time.
type Clock func() time.Time

// Algorithm represents the admission algorithm of a guard.
type Algorithm string

const (
	// AlgorithmSlidingWindow uses the window counter guard.
	AlgorithmSlidingWindow Algorithm = "sliding_window"

	// AlgorithmTokenBucket uses the token bucket guard.
	AlgorithmTokenBucket Algorithm = "token_bucket"
)

// GuardFactory creates a fresh guard for a new key.
type GuardFactory func() Guard

// NewGuardFactory returns a factory for the given algorithm.
// A nil clock uses time.Now.
func NewGuardFactory(algorithm Algorithm, clock Clock) (GuardFactory, error) {
	if clock == nil {
		clock = time.Now
	}

	switch algorithm {
	case AlgorithmSlidingWindow, "":
		return func() Guard { return NewSlidingWindowWithClock(clock) }, nil
	case AlgorithmTokenBucket:
		return func() Guard { return NewTokenBucketWithClock(clock) }, nil
	default:
		return nil, fmt.Errorf("unknown rate limit algorithm: %s", algorithm)
	}
}
