package secrets

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avaguard/internal/config"
)

const testVaultToken = "s.test-token"

// newFakeVault serves KV v2 reads for the given secrets, keyed by the
// request path below /v1/.
func newFakeVault(t *testing.T, secrets map[string]map[string]interface{}) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.Header.Get("X-Vault-Token") != testVaultToken {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
			return
		}

		data, ok := secrets[r.URL.Path[len("/v1/"):]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"data":     data,
				"metadata": map[string]interface{}{"version": 3},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVaultProvider_Load(t *testing.T) {
	t.Parallel()

	key := sampleKey()
	srv := newFakeVault(t, map[string]map[string]interface{}{
		"secret/data/avaguard/csrf": {"key": hex.EncodeToString(key[:])},
		"kv/data/app":               {"csrf": hex.EncodeToString(key[:]), "other": 1},
	})

	tests := []struct {
		name    string
		cfg     VaultProviderConfig
		token   string
		wantErr error
	}{
		{
			name:  "default mount and field",
			cfg:   VaultProviderConfig{Path: "avaguard/csrf"},
			token: testVaultToken,
		},
		{
			name:  "custom mount and field",
			cfg:   VaultProviderConfig{Mount: "/kv/", Path: "/app", Field: "csrf"},
			token: testVaultToken,
		},
		{
			name:    "missing field",
			cfg:     VaultProviderConfig{Mount: "kv", Path: "app", Field: "absent"},
			token:   testVaultToken,
			wantErr: ErrSecretNotFound,
		},
		{
			name:    "non-string field",
			cfg:     VaultProviderConfig{Mount: "kv", Path: "app", Field: "other"},
			token:   testVaultToken,
			wantErr: ErrSecretNotFound,
		},
		{
			name:    "missing secret",
			cfg:     VaultProviderConfig{Path: "nope"},
			token:   testVaultToken,
			wantErr: ErrSecretNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := tt.cfg
			cfg.Address = srv.URL
			cfg.Token = tt.token
			cfg.Timeout = 5 * time.Second

			p, err := NewVaultProvider(&cfg)
			require.NoError(t, err)
			defer func() { _ = p.Close() }()
			assert.Equal(t, ProviderTypeVault, p.Type())

			got, err := LoadKeyFrom(context.Background(), p)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, key, got)
		})
	}
}

func TestVaultProvider_PermissionDenied(t *testing.T) {
	t.Parallel()

	srv := newFakeVault(t, nil)

	p, err := NewVaultProvider(&VaultProviderConfig{
		Address: srv.URL,
		Token:   "wrong",
		Path:    "avaguard/csrf",
	})
	require.NoError(t, err)

	_, err = p.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read secret from vault")
}

func TestLoadKey_Vault(t *testing.T) {
	t.Parallel()

	key := sampleKey()
	srv := newFakeVault(t, map[string]map[string]interface{}{
		"secret/data/csrf": {"key": hex.EncodeToString(key[:])},
	})

	got, err := LoadKey(context.Background(), config.KeySourceConfig{
		Vault: &config.VaultKeyConfig{
			Address: srv.URL,
			Token:   testVaultToken,
			Path:    "csrf",
		},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestNewVaultProvider_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewVaultProvider(nil)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)

	_, err = NewVaultProvider(&VaultProviderConfig{Address: "http://127.0.0.1:8200"})
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}
