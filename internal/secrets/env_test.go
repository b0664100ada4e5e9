package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvProvider(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"SET":   "value",
		"BLANK": "   ",
	}
	lookup := func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}

	tests := []struct {
		name    string
		varName string
		want    string
		wantErr error
	}{
		{name: "set", varName: "SET", want: "value"},
		{name: "blank", varName: "BLANK", wantErr: ErrSecretNotFound},
		{name: "unset", varName: "UNSET", wantErr: ErrSecretNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := NewEnvProvider(tt.varName, lookup, nil)
			require.NoError(t, err)
			assert.Equal(t, ProviderTypeEnv, p.Type())

			got, err := p.Load(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestEnvProvider_UsesProcessEnvironment(t *testing.T) {
	t.Setenv("AVAGUARD_TEST_CSRF_KEY", "from-process")

	p, err := NewEnvProvider("AVAGUARD_TEST_CSRF_KEY", nil, nil)
	require.NoError(t, err)

	got, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-process", string(got))
}

func TestNewEnvProvider_RequiresName(t *testing.T) {
	t.Parallel()

	_, err := NewEnvProvider("", nil, nil)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}
