package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func staticCheck(status Status) CheckFunc {
	return func(context.Context) Check { return Check{Status: status} }
}

func TestChecker_Health(t *testing.T) {
	t.Parallel()

	c := NewChecker("v1.2.3")
	start := c.startTime
	c.now = func() time.Time { return start.Add(90 * time.Second) }

	h := c.Health()
	assert.Equal(t, StatusHealthy, h.Status)
	assert.Equal(t, "v1.2.3", h.Version)
	assert.Equal(t, "1m30s", h.Uptime)

	rec := httptest.NewRecorder()
	c.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestChecker_Readiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus Status
		wantCode   int
	}{
		{name: "no checks", wantStatus: StatusHealthy, wantCode: http.StatusOK},
		{
			name:       "all healthy",
			checks:     map[string]CheckFunc{"a": staticCheck(StatusHealthy), "b": staticCheck(StatusHealthy)},
			wantStatus: StatusHealthy,
			wantCode:   http.StatusOK,
		},
		{
			name:       "degraded",
			checks:     map[string]CheckFunc{"a": staticCheck(StatusHealthy), "b": staticCheck(StatusDegraded)},
			wantStatus: StatusDegraded,
			wantCode:   http.StatusOK,
		},
		{
			name: "unhealthy wins",
			checks: map[string]CheckFunc{
				"a": staticCheck(StatusUnhealthy),
				"b": staticCheck(StatusDegraded),
			},
			wantStatus: StatusUnhealthy,
			wantCode:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewChecker("test")
			for name, fn := range tt.checks {
				c.RegisterCheck(name, fn)
			}

			rec := httptest.NewRecorder()
			c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tt.wantCode, rec.Code)

			var body ReadinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Len(t, body.Checks, len(tt.checks))
		})
	}
}

func TestChecker_UnregisterCheck(t *testing.T) {
	t.Parallel()

	c := NewChecker("test")
	c.RegisterCheck("broken", staticCheck(StatusUnhealthy))
	assert.Equal(t, StatusUnhealthy, c.Readiness(context.Background()).Status)

	c.UnregisterCheck("broken")
	assert.Equal(t, StatusHealthy, c.Readiness(context.Background()).Status)
}

func TestChecker_CheckTimeout(t *testing.T) {
	t.Parallel()

	c := NewChecker("test", WithCheckTimeout(20*time.Millisecond))
	c.RegisterCheck("slow", PingCheck(pingerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})))

	res := c.Readiness(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Contains(t, res.Checks["slow"].Message, "deadline exceeded")
}

func TestPingCheck(t *testing.T) {
	t.Parallel()

	ok := PingCheck(pingerFunc(func(context.Context) error { return nil }))
	assert.Equal(t, Check{Status: StatusHealthy}, ok(context.Background()))

	failing := PingCheck(pingerFunc(func(context.Context) error { return errors.New("connection refused") }))
	assert.Equal(t, Check{Status: StatusUnhealthy, Message: "connection refused"}, failing(context.Background()))

	degraded := DegradedOnFailure(failing)
	assert.Equal(t, StatusDegraded, degraded(context.Background()).Status)
	assert.Equal(t, StatusHealthy, DegradedOnFailure(ok)(context.Background()).Status)
}

func TestBreakerCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state gobreaker.State
		want  Status
	}{
		{state: gobreaker.StateClosed, want: StatusHealthy},
		{state: gobreaker.StateHalfOpen, want: StatusDegraded},
		{state: gobreaker.StateOpen, want: StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			t.Parallel()

			check := BreakerCheck(func() gobreaker.State { return tt.state })
			assert.Equal(t, tt.want, check(context.Background()).Status)
		})
	}
}

// Not parallel: the metrics are process wide.
func TestReadiness_RecordsMetrics(t *testing.T) {
	m := GetHealthMetrics()
	before := testutil.ToFloat64(m.checksTotal.WithLabelValues("metrics_probe", string(StatusDegraded)))

	c := NewChecker("test")
	c.RegisterCheck("metrics_probe", staticCheck(StatusDegraded))
	c.Readiness(context.Background())

	assert.Equal(t, before+1, testutil.ToFloat64(m.checksTotal.WithLabelValues("metrics_probe", string(StatusDegraded))))
	assert.Equal(t, 0.5, testutil.ToFloat64(m.checkStatus.WithLabelValues("metrics_probe")))
}
