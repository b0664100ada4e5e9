package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// DefaultCheckTimeout bounds a single readiness check.
const DefaultCheckTimeout = 2 * time.Second

// Status represents the health status.
type Status string

const (
	// StatusHealthy indicates the service is healthy.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the service is unhealthy.
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded indicates the service is degraded but operational.
	StatusDegraded Status = "degraded"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadinessResponse represents the readiness check response.
type ReadinessResponse struct {
	Status    Status           `json:"status"`
	Checks    map[string]Check `json:"checks,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Check represents an individual health check result.
type Check struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// CheckFunc performs a health check. It must honor ctx.
type CheckFunc func(ctx context.Context) Check

// Checker provides health and readiness checking functionality.
type Checker struct {
	version   string
	startTime time.Time
	timeout   time.Duration
	now       func() time.Time

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// Option configures a Checker.
type Option func(*Checker)

// WithCheckTimeout sets the timeout of each readiness check.
func WithCheckTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewChecker creates a new health checker.
func NewChecker(version string, opts ...Option) *Checker {
	c := &Checker{
		version: version,
		timeout: DefaultCheckTimeout,
		now:     time.Now,
		checks:  make(map[string]CheckFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.startTime = c.now()
	return c
}

// RegisterCheck registers a readiness check, replacing one of the same name.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// UnregisterCheck removes a readiness check.
func (c *Checker) UnregisterCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// Health returns the liveness status.
func (c *Checker) Health() HealthResponse {
	now := c.now()
	return HealthResponse{
		Status:    StatusHealthy,
		Version:   c.version,
		Uptime:    now.Sub(c.startTime).Round(time.Second).String(),
		Timestamp: now,
	}
}

// Readiness runs all checks and aggregates their status: any unhealthy
// check makes the result unhealthy, any degraded one degraded.
func (c *Checker) Readiness(ctx context.Context) ReadinessResponse {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, fn := range c.checks {
		checks[name] = fn
	}
	c.mu.RUnlock()
	sort.Strings(names)

	metrics := GetHealthMetrics()
	response := ReadinessResponse{
		Status:    StatusHealthy,
		Checks:    make(map[string]Check, len(names)),
		Timestamp: c.now(),
	}

	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
		check := checks[name](checkCtx)
		cancel()

		response.Checks[name] = check
		metrics.record(name, check.Status)

		switch {
		case check.Status == StatusUnhealthy:
			response.Status = StatusUnhealthy
		case check.Status == StatusDegraded && response.Status != StatusUnhealthy:
			response.Status = StatusDegraded
		}
	}

	return response
}

// HealthHandler returns an HTTP handler for the liveness endpoint.
func (c *Checker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, c.Health())
	}
}

// ReadinessHandler returns an HTTP handler for the readiness endpoint.
// Degraded still answers 200.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := c.Readiness(r.Context())

		statusCode := http.StatusOK
		if response.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		writeJSON(w, statusCode, response)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
