package secrets

import (
	"context"
	"fmt"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/vyrodovalexey/avaguard/internal/observability"
)

// VaultProviderConfig holds configuration for the Vault secrets provider
type VaultProviderConfig struct {
	// Address is the Vault server address. Empty uses VAULT_ADDR.
	Address string
	// Token is the Vault token. Empty uses VAULT_TOKEN.
	Token string
	// Mount is the KV v2 secrets engine mount point
	Mount string
	// Path is the secret path below the mount
	Path string
	// Field is the secret data field holding the key
	Field string
	// Timeout is the request timeout
	Timeout time.Duration
	// Logger is the logger instance
	Logger observability.Logger
}

// VaultProvider reads the key from one field of a Vault KV v2 secret.
type VaultProvider struct {
	client *vaultapi.Client
	mount  string
	path   string
	field  string
	logger observability.Logger
}

// NewVaultProvider creates a new Vault secrets provider
func NewVaultProvider(cfg *VaultProviderConfig) (*VaultProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrProviderNotConfigured)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: vault secret path is required", ErrProviderNotConfigured)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	mount := strings.Trim(cfg.Mount, "/")
	if mount == "" {
		mount = "secret"
	}
	field := cfg.Field
	if field == "" {
		field = "key"
	}

	apiConfig := vaultapi.DefaultConfig()
	if apiConfig.Error != nil {
		return nil, fmt.Errorf("failed to read vault environment: %w", apiConfig.Error)
	}
	if cfg.Address != "" {
		apiConfig.Address = cfg.Address
	}
	if cfg.Timeout > 0 {
		apiConfig.Timeout = cfg.Timeout
	}

	client, err := vaultapi.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	logger.Info("Vault key provider initialized",
		observability.String("address", apiConfig.Address),
		observability.String("mount", mount),
		observability.String("path", cfg.Path),
	)

	return &VaultProvider{
		client: client,
		mount:  mount,
		path:   strings.Trim(cfg.Path, "/"),
		field:  field,
		logger: logger.With(observability.String("component", "vault")),
	}, nil
}

// Type returns the provider type
func (p *VaultProvider) Type() ProviderType {
	return ProviderTypeVault
}

// Load implements Provider.
func (p *VaultProvider) Load(ctx context.Context) ([]byte, error) {
	fullPath := fmt.Sprintf("%s/data/%s", p.mount, p.path)

	secret, err := p.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		p.logger.Error("Failed to read key from Vault",
			observability.String("path", fullPath),
			observability.Error(err),
		)
		return nil, fmt.Errorf("failed to read secret from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, fullPath)
	}

	// KV v2 nests the payload under "data".
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s has no data", ErrSecretNotFound, fullPath)
	}

	value, ok := data[p.field].(string)
	if !ok || value == "" {
		return nil, fmt.Errorf("%w: field %q missing in %s", ErrSecretNotFound, p.field, fullPath)
	}

	p.logger.Debug("loaded key from Vault",
		observability.String("path", fullPath),
		observability.String("field", p.field),
	)
	return []byte(strings.TrimSpace(value)), nil
}

// Close implements Provider.
func (p *VaultProvider) Close() error {
	p.client.ClearToken()
	return nil
}
