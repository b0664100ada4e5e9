package health

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HealthMetrics holds Prometheus metrics for readiness checks.
type HealthMetrics struct {
	checksTotal *prometheus.CounterVec
	checkStatus *prometheus.GaugeVec
}

var (
	healthMetricsInstance *HealthMetrics
	healthMetricsOnce     sync.Once
)

// GetHealthMetrics returns the singleton health metrics instance.
func GetHealthMetrics() *HealthMetrics {
	healthMetricsOnce.Do(func() {
		healthMetricsInstance = &HealthMetrics{
			checksTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avaguard",
					Subsystem: "health",
					Name:      "checks_total",
					Help:      "Total number of readiness checks performed",
				},
				[]string{"check", "status"},
			),
			checkStatus: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: "avaguard",
					Subsystem: "health",
					Name:      "check_status",
					Help:      "Current readiness check status (1=healthy, 0.5=degraded, 0=unhealthy)",
				},
				[]string{"check"},
			),
		}
	})
	return healthMetricsInstance
}

func (m *HealthMetrics) record(check string, status Status) {
	m.checksTotal.WithLabelValues(check, string(status)).Inc()

	value := 0.0
	switch status {
	case StatusHealthy:
		value = 1
	case StatusDegraded:
		value = 0.5
	}
	m.checkStatus.WithLabelValues(check).Set(value)
}
