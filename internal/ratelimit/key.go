package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc is a function that extracts a rate limit key from an HTTP request.
type KeyFunc func(r *http.Request) string

// RemoteIPKeyFunc uses the connection's remote IP as the key. It ignores
// forwarding headers; use a trusted-proxy aware extractor behind proxies.
func RemoteIPKeyFunc(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.Trim(r.RemoteAddr, "[]")
	}
	return host
}

// HeaderKeyFunc returns a KeyFunc that uses a specific header value as the
// rate limit key, falling back to fallback when the header is absent.
func HeaderKeyFunc(header string, fallback KeyFunc) KeyFunc {
	if fallback == nil {
		fallback = RemoteIPKeyFunc
	}
	return func(r *http.Request) string {
		if value := r.Header.Get(header); value != "" {
			return value
		}
		return fallback(r)
	}
}

// CompositeKeyFunc returns a KeyFunc that joins the non-empty keys of funcs.
func CompositeKeyFunc(funcs ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(funcs))
		for _, fn := range funcs {
			if key := fn(r); key != "" {
				parts = append(parts, key)
			}
		}
		if len(parts) == 0 {
			return RemoteIPKeyFunc(r)
		}
		return strings.Join(parts, ":")
	}
}

// MethodPathKeyFunc returns a KeyFunc that combines method and path.
func MethodPathKeyFunc(r *http.Request) string {
	return r.Method + ":" + r.URL.Path
}

// PerEndpointKeyFunc returns a KeyFunc that scopes base to the endpoint
// (method + path).
func PerEndpointKeyFunc(base KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		return r.Method + ":" + r.URL.Path + ":" + base(r)
	}
}
