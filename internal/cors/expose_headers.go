package cors

import (
	"context"
	"net/http"
)

// ExposeHeaders holds the configuration for setting the
// Access-Control-Expose-Headers header.
//
// The zero value emits no header.
type ExposeHeaders struct {
	kind    policyKind
	value   string
	decider Decider
}

// AnyExposeHeaders exposes all headers by sending a wildcard.
func AnyExposeHeaders() ExposeHeaders {
	return ExposeHeaders{kind: kindExact, value: Wildcard}
}

// ExposeHeadersList exposes the given header names. Names are joined with
// commas in the order given; an empty list emits no header.
func ExposeHeadersList(names ...string) ExposeHeaders {
	value, ok := joinHeaders(names)
	if !ok {
		return ExposeHeaders{}
	}
	return ExposeHeaders{kind: kindExact, value: value}
}

// ExposeHeadersFunc computes the exposed headers with d for every request
// that carries an origin.
func ExposeHeadersFunc(d Decider) ExposeHeaders {
	if d == nil {
		return ExposeHeaders{}
	}
	return ExposeHeaders{kind: kindDecide, decider: d}
}

// IsWildcard reports whether the policy always sends "*".
func (e ExposeHeaders) IsWildcard() bool {
	return e.kind == kindExact && e.value == Wildcard
}

// Resolve returns the header to set for the request, if any.
// An empty origin means the request carries no Origin header.
func (e ExposeHeaders) Resolve(ctx context.Context, origin string, r *http.Request) (name, value string, ok bool) {
	switch e.kind {
	case kindExact:
		value = e.value
	case kindDecide:
		if origin == "" {
			return "", "", false
		}
		value = e.decider.Decide(ctx, origin, r)
	default:
		return "", "", false
	}

	return HeaderExposeHeaders, value, true
}

// String describes the policy for logs.
func (e ExposeHeaders) String() string {
	if e.kind == kindExact {
		return "exact(" + e.value + ")"
	}
	return e.kind.String()
}
