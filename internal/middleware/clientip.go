package middleware

import (
	"net/http"
	"net/netip"
	"strings"

	"github.com/vyrodovalexey/avaguard/internal/ratelimit"
)

// ClientIPExtractor extracts the real client IP from requests,
// handling X-Forwarded-For with trusted proxy validation.
// When no trusted proxies are configured, only RemoteAddr is used.
type ClientIPExtractor struct {
	trusted []netip.Prefix
}

// NewClientIPExtractor creates a new ClientIPExtractor with the given
// trusted proxy CIDRs or single addresses. Invalid entries are skipped;
// configuration validation reports them.
func NewClientIPExtractor(trustedProxies []string) *ClientIPExtractor {
	prefixes := make([]netip.Prefix, 0, len(trustedProxies))
	for _, proxy := range trustedProxies {
		if prefix, err := netip.ParsePrefix(proxy); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(proxy); err == nil {
			addr = addr.Unmap()
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return &ClientIPExtractor{trusted: prefixes}
}

// Extract returns the real client IP from the request.
// If RemoteAddr is a trusted proxy, X-Forwarded-For is walked right-to-left
// and the first untrusted address wins.
func (e *ClientIPExtractor) Extract(r *http.Request) string {
	remoteIP := stripPort(r.RemoteAddr)

	if len(e.trusted) == 0 || !e.isTrusted(remoteIP) {
		return remoteIP
	}

	xff := r.Header.Values(HeaderXForwardedFor)
	if len(xff) == 0 {
		return remoteIP
	}

	hops := strings.Split(strings.Join(xff, ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		ip := strings.TrimSpace(hops[i])
		if ip == "" {
			continue
		}
		if !e.isTrusted(ip) {
			return ip
		}
	}

	return remoteIP
}

// KeyFunc adapts the extractor to a rate limit key function.
func (e *ClientIPExtractor) KeyFunc() ratelimit.KeyFunc {
	return e.Extract
}

func (e *ClientIPExtractor) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range e.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// stripPort removes the port from "host:port" and "[v6]:port" forms.
func stripPort(addr string) string {
	if ap, err := netip.ParseAddrPort(addr); err == nil {
		return ap.Addr().Unmap().String()
	}
	return strings.Trim(addr, "[]")
}
