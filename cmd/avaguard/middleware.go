package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vyrodovalexey/avaguard/internal/csrf"
	"github.com/vyrodovalexey/avaguard/internal/health"
	"github.com/vyrodovalexey/avaguard/internal/middleware"
	"github.com/vyrodovalexey/avaguard/internal/observability"
	"github.com/vyrodovalexey/avaguard/internal/ratelimit"
	"github.com/vyrodovalexey/avaguard/internal/ratelimit/store"
	"github.com/vyrodovalexey/avaguard/internal/secrets"
)

// buildHandler assembles the routes and the middleware chain.
// The execution order (outermost executes first):
// Recovery -> RequestID -> Tracing -> Metrics -> Logging -> [mux]
// and for policy routes:
// CORS -> RateLimit -> CSRF -> [handler]
//
// The probes and /metrics bypass the policies.
func (a *application) buildHandler(ctx context.Context) (http.Handler, error) {
	protect, err := a.buildPolicies(ctx)
	if err != nil {
		return nil, err
	}

	a.registerHealthChecks()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", a.metrics.Handler())
	mux.HandleFunc("GET /healthz", a.health.HealthHandler())
	mux.HandleFunc("GET /readyz", a.health.ReadinessHandler())
	mux.Handle("GET /csrf", protect(http.HandlerFunc(csrfTokenHandler)))
	mux.Handle("/", protect(http.HandlerFunc(acceptHandler)))

	var trustedProxies []string
	if a.config.RateLimit != nil {
		trustedProxies = a.config.RateLimit.TrustedProxies
	}

	route := observability.MuxRoute(mux)

	h := http.Handler(mux)
	h = middleware.Logging(a.logger, middleware.NewClientIPExtractor(trustedProxies))(h)
	h = observability.MetricsMiddleware(a.metrics, route)(h)
	h = observability.TracingMiddleware(a.tracer, route)(h)
	h = middleware.RequestID()(h)
	h = middleware.Recovery(a.logger)(h)

	return h, nil
}

// buildPolicies builds the CORS, rate limit and CSRF middlewares.
func (a *application) buildPolicies(ctx context.Context) (func(http.Handler) http.Handler, error) {
	cfg := a.config

	corsMW, err := middleware.CORSFromConfig(cfg.CORS, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build cors policy: %w", err)
	}

	var quota ratelimit.QuotaGetter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		a.quota = ratelimit.NewDynamicQuota(cfg.RateLimit.Quota())
		quota = a.quota
	}
	rateLimitMW, s, err := middleware.RateLimitFromConfig(cfg.RateLimit, quota, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build rate limiter: %w", err)
	}
	a.store = s

	var key [csrf.KeySize]byte
	if cfg.CSRF != nil && cfg.CSRF.Enabled {
		key, err = secrets.LoadKey(ctx, cfg.CSRF.Key, a.logger)
		if err != nil {
			a.closeStore()
			return nil, fmt.Errorf("failed to load csrf key: %w", err)
		}
	}
	csrfMW, err := middleware.CSRFFromConfig(cfg.CSRF, key, a.logger)
	if err != nil {
		a.closeStore()
		return nil, fmt.Errorf("failed to build csrf protection: %w", err)
	}

	return func(h http.Handler) http.Handler {
		return corsMW(rateLimitMW(csrfMW(h)))
	}, nil
}

func (a *application) closeStore() {
	if a.store != nil {
		_ = a.store.Close()
		a.store = nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set(middleware.HeaderContentType, middleware.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// registerHealthChecks adds readiness checks for the rate limit store.
// With a breaker in front, a failing primary only degrades readiness.
func (a *application) registerHealthChecks() {
	if a.store == nil {
		return
	}

	if p, ok := a.store.(store.Pinger); ok {
		check := health.PingCheck(p)
		if bs, ok := a.store.(*store.BreakerStore); ok {
			check = health.DegradedOnFailure(check)
			a.health.RegisterCheck("ratelimit_breaker", health.BreakerCheck(bs.State))
		}
		a.health.RegisterCheck("ratelimit_store", check)
	}
}

// csrfTokenHandler returns the token minted by the CSRF middleware.
func csrfTokenHandler(w http.ResponseWriter, r *http.Request) {
	token := csrf.TokenFromContext(r.Context())
	if token == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":   "not_found",
			"message": "csrf protection is disabled",
		})
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// acceptHandler answers every request that passed the policies.
func acceptHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "accepted",
		"method":     r.Method,
		"path":       r.URL.Path,
		"request_id": observability.RequestIDFromContext(r.Context()),
	})
}
