// Package health provides the liveness and readiness endpoints of the
// policy server.
//
// Liveness (/healthz) only reports that the process serves requests.
// Readiness (/readyz) runs the registered checks, such as a ping of the
// rate limit store, and answers 503 when a check is unhealthy:
//
//	checker := health.NewChecker(version)
//	checker.RegisterCheck("ratelimit_store", health.PingCheck(s))
//
//	mux.HandleFunc("GET /healthz", checker.HealthHandler())
//	mux.HandleFunc("GET /readyz", checker.ReadinessHandler())
package health
