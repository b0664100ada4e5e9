package cors

import (
	"context"
	"net/http"
)

// policyKind enumerates the strategies a header policy can follow.
type policyKind int

const (
	kindNone policyKind = iota
	kindExact
	kindDecide
	kindMirror
)

// String returns the name of the strategy.
func (k policyKind) String() string {
	switch k {
	case kindNone:
		return "none"
	case kindExact:
		return "exact"
	case kindDecide:
		return "decide"
	case kindMirror:
		return "mirror"
	default:
		return "unknown"
	}
}

// AllowHeaders holds the configuration for setting the
// Access-Control-Allow-Headers header.
//
// The zero value emits no header.
type AllowHeaders struct {
	kind    policyKind
	value   string
	decider Decider
}

// AnyAllowHeaders allows any header by sending a wildcard.
func AnyAllowHeaders() AllowHeaders {
	return AllowHeaders{kind: kindExact, value: Wildcard}
}

// AllowHeadersList allows the given header names. Names are joined with
// commas in the order given; an empty list emits no header.
func AllowHeadersList(names ...string) AllowHeaders {
	value, ok := joinHeaders(names)
	if !ok {
		return AllowHeaders{}
	}
	return AllowHeaders{kind: kindExact, value: value}
}

// AllowHeadersFunc computes the allowed headers with d for every request
// that carries an origin.
func AllowHeadersFunc(d Decider) AllowHeaders {
	if d == nil {
		return AllowHeaders{}
	}
	return AllowHeaders{kind: kindDecide, decider: d}
}

// MirrorRequestHeaders allows any header by echoing the preflight
// Access-Control-Request-Headers header.
func MirrorRequestHeaders() AllowHeaders {
	return AllowHeaders{kind: kindMirror}
}

// IsWildcard reports whether the policy always sends "*".
func (a AllowHeaders) IsWildcard() bool {
	return a.kind == kindExact && a.value == Wildcard
}

// IsMirror reports whether the policy echoes the request headers.
func (a AllowHeaders) IsMirror() bool {
	return a.kind == kindMirror
}

// Resolve returns the header to set for the request, if any.
// An empty origin means the request carries no Origin header.
func (a AllowHeaders) Resolve(ctx context.Context, origin string, r *http.Request) (name, value string, ok bool) {
	switch a.kind {
	case kindExact:
		value = a.value
	case kindDecide:
		if origin == "" {
			return "", "", false
		}
		value = a.decider.Decide(ctx, origin, r)
	case kindMirror:
		values, found := r.Header[HeaderRequestHeaders]
		if !found || len(values) == 0 {
			return "", "", false
		}
		value = values[0]
	default:
		return "", "", false
	}

	return HeaderAllowHeaders, value, true
}

// String describes the policy for logs.
func (a AllowHeaders) String() string {
	if a.kind == kindExact {
		return "exact(" + a.value + ")"
	}
	return a.kind.String()
}
