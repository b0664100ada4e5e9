package cors

import (
	"context"
	"net/http"
)

// Decider computes a header value for a request carrying an Origin header.
//
// Implementations must be safe for concurrent use. Decide is only called
// when the request has an origin value.
type Decider interface {
	Decide(ctx context.Context, origin string, r *http.Request) string
}

// DeciderFunc adapts an ordinary function to the Decider interface.
type DeciderFunc func(ctx context.Context, origin string, r *http.Request) string

// Decide calls f(ctx, origin, r).
func (f DeciderFunc) Decide(ctx context.Context, origin string, r *http.Request) string {
	return f(ctx, origin, r)
}
