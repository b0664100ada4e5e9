package health

import (
	"context"

	"github.com/sony/gobreaker"
)

// Pinger is implemented by dependencies that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports unhealthy when p fails to answer.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) Check {
		if err := p.Ping(ctx); err != nil {
			return Check{Status: StatusUnhealthy, Message: err.Error()}
		}
		return Check{Status: StatusHealthy}
	}
}

// BreakerStateFunc returns the state of a circuit breaker.
type BreakerStateFunc func() gobreaker.State

// BreakerCheck reports degraded while the breaker is not closed: requests
// are still served, but by the fallback.
func BreakerCheck(state BreakerStateFunc) CheckFunc {
	return func(context.Context) Check {
		switch s := state(); s {
		case gobreaker.StateClosed:
			return Check{Status: StatusHealthy}
		default:
			return Check{Status: StatusDegraded, Message: "circuit breaker " + s.String()}
		}
	}
}

// DegradedOnFailure downgrades an unhealthy result to degraded, for
// dependencies that have a fallback.
func DegradedOnFailure(check CheckFunc) CheckFunc {
	return func(ctx context.Context) Check {
		res := check(ctx)
		if res.Status == StatusUnhealthy {
			res.Status = StatusDegraded
		}
		return res
	}
}
