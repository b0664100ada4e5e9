package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/vyrodovalexey/avaguard/internal/observability"
)

// LookupFunc resolves an environment variable.
type LookupFunc func(name string) (string, bool)

// EnvProvider reads the key from a single environment variable.
type EnvProvider struct {
	name   string
	lookup LookupFunc
	logger observability.Logger
}

// NewEnvProvider creates a provider for the variable name. A nil lookup
// uses os.LookupEnv.
func NewEnvProvider(name string, lookup LookupFunc, logger observability.Logger) (*EnvProvider, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: environment variable name is required", ErrProviderNotConfigured)
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &EnvProvider{name: name, lookup: lookup, logger: logger}, nil
}

// Type returns the provider type
func (p *EnvProvider) Type() ProviderType {
	return ProviderTypeEnv
}

// Load implements Provider.
func (p *EnvProvider) Load(_ context.Context) ([]byte, error) {
	value, ok := p.lookup(p.name)
	if !ok || strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("%w: environment variable %s not set", ErrSecretNotFound, p.name)
	}

	p.logger.Debug("loaded key from environment",
		observability.String("env", p.name),
	)
	return []byte(strings.TrimSpace(value)), nil
}

// Close implements Provider.
func (p *EnvProvider) Close() error {
	return nil
}
