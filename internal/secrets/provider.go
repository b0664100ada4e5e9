// Package secrets loads key material for the CSRF cipher from environment
// variables, local files, or a HashiCorp Vault KV v2 secret.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProviderType represents the type of secrets provider
type ProviderType string

const (
	// ProviderTypeEnv reads the key from an environment variable
	ProviderTypeEnv ProviderType = "env"
	// ProviderTypeFile reads the key from a local file
	ProviderTypeFile ProviderType = "file"
	// ProviderTypeVault reads the key from a Vault KV v2 secret
	ProviderTypeVault ProviderType = "vault"
)

// Common errors for secrets providers
var (
	// ErrSecretNotFound is returned when the configured secret does not exist
	ErrSecretNotFound = errors.New("secret not found")
	// ErrProviderNotConfigured is returned when no or several sources are set
	ErrProviderNotConfigured = errors.New("provider not configured")
	// ErrInvalidKey is returned when the loaded material is not a usable key
	ErrInvalidKey = errors.New("invalid key")
)

// Provider loads raw key material.
type Provider interface {
	// Type returns the provider type
	Type() ProviderType

	// Load returns the encoded key material.
	Load(ctx context.Context) ([]byte, error)

	// Close cleans up provider resources
	Close() error
}

type secretsMetrics struct {
	operationDuration *prometheus.HistogramVec
	operationTotal    *prometheus.CounterVec
}

var (
	metricsInstance *secretsMetrics
	metricsOnce     sync.Once
)

func getSecretsMetrics() *secretsMetrics {
	metricsOnce.Do(func() {
		metricsInstance = &secretsMetrics{
			operationDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "avaguard",
					Subsystem: "secrets",
					Name:      "operation_duration_seconds",
					Help:      "Duration of secrets provider operations in seconds",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"provider", "result"},
			),
			operationTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avaguard",
					Subsystem: "secrets",
					Name:      "operation_total",
					Help:      "Total number of secrets provider operations",
				},
				[]string{"provider", "result"},
			),
		}
	})
	return metricsInstance
}

// RecordOperation records metrics for a key load.
func RecordOperation(provider ProviderType, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m := getSecretsMetrics()
	m.operationDuration.WithLabelValues(string(provider), result).Observe(duration.Seconds())
	m.operationTotal.WithLabelValues(string(provider), result).Inc()
}

// ValidateProviderType validates that the given string is a valid provider type
func ValidateProviderType(providerType string) (ProviderType, error) {
	switch ProviderType(providerType) {
	case ProviderTypeEnv, ProviderTypeFile, ProviderTypeVault:
		return ProviderType(providerType), nil
	default:
		return "", fmt.Errorf("%w: %q, must be one of: env, file, vault", ErrProviderNotConfigured, providerType)
	}
}
