package middleware

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MiddlewareMetrics holds Prometheus metrics for the policy middlewares.
type MiddlewareMetrics struct {
	corsRequestsTotal *prometheus.CounterVec

	csrfTokensIssued  *prometheus.CounterVec
	csrfVerifications *prometheus.CounterVec

	rateLimitAllowed  prometheus.Counter
	rateLimitRejected prometheus.Counter
	rateLimitErrors   prometheus.Counter

	panicsRecovered prometheus.Counter
}

var (
	middlewareMetrics     *MiddlewareMetrics
	middlewareMetricsOnce sync.Once
)

// GetMiddlewareMetrics returns the singleton middleware metrics
// instance.
func GetMiddlewareMetrics() *MiddlewareMetrics {
	middlewareMetricsOnce.Do(func() {
		middlewareMetrics = newMiddlewareMetrics()
	})
	return middlewareMetrics
}

func newMiddlewareMetrics() *MiddlewareMetrics {
	return &MiddlewareMetrics{
		corsRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "avaguard",
				Subsystem: "middleware",
				Name:      "cors_requests_total",
				Help: "Total number of CORS " +
					"requests by type",
			},
			[]string{"type"},
		),
		csrfTokensIssued: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "avaguard",
				Subsystem: "middleware",
				Name:      "csrf_tokens_issued_total",
				Help: "Total number of CSRF tokens " +
					"handed out, by whether the pair was reused",
			},
			[]string{"source"},
		),
		csrfVerifications: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "avaguard",
				Subsystem: "middleware",
				Name:      "csrf_verifications_total",
				Help: "Total number of CSRF token " +
					"verifications by result",
			},
			[]string{"result"},
		),
		rateLimitAllowed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "avaguard",
				Subsystem: "middleware",
				Name:      "rate_limit_allowed_total",
				Help: "Total number of requests " +
					"allowed by rate limiter",
			},
		),
		rateLimitRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "avaguard",
				Subsystem: "middleware",
				Name:      "rate_limit_rejected_total",
				Help: "Total number of requests " +
					"rejected by rate limiter",
			},
		),
		rateLimitErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "avaguard",
				Subsystem: "middleware",
				Name:      "rate_limit_errors_total",
				Help: "Total number of requests " +
					"let through because the quota store failed",
			},
		),
		panicsRecovered: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "avaguard",
				Subsystem: "middleware",
				Name:      "panics_recovered_total",
				Help: "Total number of panics " +
					"recovered",
			},
		),
	}
}
