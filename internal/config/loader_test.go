package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfigYAML = `
server:
  address: ":9090"
  readTimeout: 5s
logging:
  level: debug
  format: console
cors:
  allowOrigins:
    - https://app.example.com
    - "*.example.org"
  allowMethods: [GET, POST]
  allowHeaders:
    headers: [Content-Type, X-Api-Key]
  exposeHeaders:
    mode: cel
    expression: 'origin.endsWith(".example.com") ? "X-Request-ID" : ""'
  allowCredentials: true
  maxAge: 600
csrf:
  enabled: true
  cipher: aesgcm
  tokenSize: 16
  key:
    env: CSRF_KEY
  cookie:
    sameSite: strict
rateLimit:
  enabled: true
  period: 10s
  burst: 5
  keyBy: header
  header: X-Api-Key
  headers: true
  store: redis
  redis:
    address: ${REDIS_HOST:-localhost}:6379
  breaker:
    enabled: true
    threshold: 3
    timeout: 5s
`

func mapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoader_LoadFromReader(t *testing.T) {
	t.Parallel()

	l := NewLoader(WithLookup(mapLookup(nil)))
	cfg, err := l.LoadFromReader(strings.NewReader(fullConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout.Duration())
	assert.Equal(t, DefaultWriteTimeout, cfg.Server.WriteTimeout.Duration())
	assert.Equal(t, "debug", cfg.Logging.Level)

	require.NotNil(t, cfg.CORS)
	assert.Equal(t, []string{"https://app.example.com", "*.example.org"}, cfg.CORS.AllowOrigins)
	assert.Equal(t, HeaderModeList, cfg.CORS.AllowHeaders.EffectiveMode())
	assert.Equal(t, HeaderModeCEL, cfg.CORS.ExposeHeaders.EffectiveMode())
	assert.Equal(t, 600, cfg.CORS.MaxAge)

	require.NotNil(t, cfg.CSRF)
	assert.Equal(t, "aesgcm", cfg.CSRF.Cipher)
	assert.Equal(t, 16, cfg.CSRF.TokenSize)
	assert.Equal(t, "CSRF_KEY", cfg.CSRF.Key.Env)
	assert.Equal(t, "X-CSRF-Token", cfg.CSRF.HeaderName)

	require.NotNil(t, cfg.RateLimit)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Period.Duration())
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, "localhost:6379", cfg.RateLimit.Redis.Address)
	assert.Equal(t, 3, cfg.RateLimit.Breaker.Threshold)

	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoader_SubstituteEnvVars(t *testing.T) {
	t.Parallel()

	l := NewLoader(WithLookup(mapLookup(map[string]string{
		"HOST":  "redis.internal",
		"EMPTY": "",
	})))

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "set", input: "${HOST}", want: "redis.internal"},
		{name: "set with default", input: "${HOST:-localhost}", want: "redis.internal"},
		{name: "unset with default", input: "${MISSING:-localhost}", want: "localhost"},
		{name: "unset", input: "${MISSING}", want: ""},
		{name: "set but empty", input: "${EMPTY:-x}", want: ""},
		{name: "escaped", input: "$${HOST}", want: "${HOST}"},
		{name: "plain", input: "no vars", want: "no vars"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, l.substituteEnvVars(tt.input))
		})
	}
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Parallel()

	l := NewLoader(WithLookup(mapLookup(map[string]string{
		"AVAGUARD_SERVER_ADDRESS":   ":7000",
		"AVAGUARD_LOG_LEVEL":        "warn",
		"AVAGUARD_RATELIMIT_BURST":  "42",
		"AVAGUARD_RATELIMIT_PERIOD": "30s",
		"AVAGUARD_REDIS_ADDRESS":    "redis:6379",
		"AVAGUARD_TRACING_ENDPOINT": "otel:4317",
	})))

	cfg, err := l.LoadFromReader(strings.NewReader("server:\n  address: \":8080\"\n"))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Address)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "otel:4317", cfg.Tracing.OTLPEndpoint)
	require.NotNil(t, cfg.RateLimit)
	assert.Equal(t, 42, cfg.RateLimit.Burst)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Period.Duration())
	require.NotNil(t, cfg.RateLimit.Redis)
	assert.Equal(t, "redis:6379", cfg.RateLimit.Redis.Address)
}

func TestLoader_InvalidEnvOverride(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "burst", env: map[string]string{"AVAGUARD_RATELIMIT_BURST": "many"}},
		{name: "period", env: map[string]string{"AVAGUARD_RATELIMIT_PERIOD": "forever"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := NewLoader(WithLookup(mapLookup(tt.env)))
			_, err := l.LoadFromReader(strings.NewReader(""))
			assert.Error(t, err)
		})
	}
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "avaguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: error\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}
