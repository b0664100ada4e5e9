package secrets

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/vyrodovalexey/avaguard/internal/config"
	"github.com/vyrodovalexey/avaguard/internal/csrf"
	"github.com/vyrodovalexey/avaguard/internal/observability"
)

// NewProviderFromConfig creates the provider for the single source set in
// cfg.
func NewProviderFromConfig(cfg config.KeySourceConfig, logger observability.Logger) (Provider, error) {
	var sources int
	if cfg.Env != "" {
		sources++
	}
	if cfg.File != "" {
		sources++
	}
	if cfg.Vault != nil {
		sources++
	}
	if sources != 1 {
		return nil, fmt.Errorf("%w: exactly one key source must be set, got %d", ErrProviderNotConfigured, sources)
	}

	switch {
	case cfg.Env != "":
		return NewEnvProvider(cfg.Env, nil, logger)
	case cfg.File != "":
		return NewFileProvider(cfg.File, logger)
	default:
		return NewVaultProvider(&VaultProviderConfig{
			Address: cfg.Vault.Address,
			Token:   cfg.Vault.Token,
			Mount:   cfg.Vault.Mount,
			Path:    cfg.Vault.Path,
			Field:   cfg.Vault.Field,
			Timeout: cfg.Vault.Timeout.Duration(),
			Logger:  logger,
		})
	}
}

// LoadKey reads and decodes the CSRF key from the source set in cfg.
func LoadKey(ctx context.Context, cfg config.KeySourceConfig, logger observability.Logger) ([csrf.KeySize]byte, error) {
	p, err := NewProviderFromConfig(cfg, logger)
	if err != nil {
		return [csrf.KeySize]byte{}, err
	}
	defer func() { _ = p.Close() }()

	return LoadKeyFrom(ctx, p)
}

// LoadKeyFrom reads and decodes the CSRF key from p.
func LoadKeyFrom(ctx context.Context, p Provider) ([csrf.KeySize]byte, error) {
	start := time.Now()

	raw, err := p.Load(ctx)
	if err != nil {
		RecordOperation(p.Type(), time.Since(start), err)
		return [csrf.KeySize]byte{}, err
	}

	key, err := DecodeKey(string(raw))
	RecordOperation(p.Type(), time.Since(start), err)
	if err != nil {
		return [csrf.KeySize]byte{}, fmt.Errorf("%s key: %w", p.Type(), err)
	}
	return key, nil
}

// DecodeKey decodes a 256-bit key written as hex or as standard, raw, or
// URL-safe base64.
func DecodeKey(s string) ([csrf.KeySize]byte, error) {
	var key [csrf.KeySize]byte

	if len(s) == hex.EncodedLen(csrf.KeySize) {
		if b, err := hex.DecodeString(s); err == nil {
			copy(key[:], b)
			return key, nil
		}
	}

	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		b, err := enc.DecodeString(s)
		if err != nil {
			continue
		}
		if len(b) != csrf.KeySize {
			return key, fmt.Errorf("%w: decoded %d bytes, want %d", ErrInvalidKey, len(b), csrf.KeySize)
		}
		copy(key[:], b)
		return key, nil
	}

	return key, fmt.Errorf("%w: expected %d bytes as hex or base64", ErrInvalidKey, csrf.KeySize)
}
