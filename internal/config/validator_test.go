package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func validConfig() *Config {
	cfg := &Config{
		CORS: &CORSConfig{
			AllowOrigins:  []string{"https://app.example.com", "*.example.org"},
			AllowMethods:  []string{"GET", "POST"},
			AllowHeaders:  HeaderPolicyConfig{Mode: HeaderModeMirror},
			ExposeHeaders: HeaderPolicyConfig{Headers: []string{"X-Request-ID"}},
		},
		CSRF: &CSRFConfig{
			Enabled: true,
			Key:     KeySourceConfig{File: "/etc/avaguard/csrf.key"},
		},
		RateLimit: &RateLimitConfig{
			Enabled:        true,
			Period:         Duration(time.Second),
			Burst:          10,
			TrustedProxies: []string{"10.0.0.0/8", "192.168.1.1"},
		},
	}
	cfg.SetDefaults()
	return cfg
}

func TestValidateConfig_Valid(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateConfig(validConfig()))
}

func TestValidateConfig_Nil(t *testing.T) {
	t.Parallel()

	err := ValidateConfig(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration is nil")
}

func TestValidateConfig_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Config)
		wantPath string
	}{
		{
			name:     "bad address",
			mutate:   func(c *Config) { c.Server.Address = "localhost" },
			wantPath: "server.address",
		},
		{
			name:     "negative timeout",
			mutate:   func(c *Config) { c.Server.IdleTimeout = Duration(-time.Second) },
			wantPath: "server.idleTimeout",
		},
		{
			name:     "log level",
			mutate:   func(c *Config) { c.Logging.Level = "verbose" },
			wantPath: "logging.level",
		},
		{
			name:     "log format",
			mutate:   func(c *Config) { c.Logging.Format = "xml" },
			wantPath: "logging.format",
		},
		{
			name: "sampling rate",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.SamplingRate = 2
			},
			wantPath: "tracing.samplingRate",
		},
		{
			name:     "invalid origin",
			mutate:   func(c *Config) { c.CORS.AllowOrigins = []string{"app.example.com"} },
			wantPath: "cors.allowOrigins[0]",
		},
		{
			name: "wildcard origin with credentials",
			mutate: func(c *Config) {
				c.CORS.AllowOrigins = []string{"*"}
				c.CORS.AllowCredentials = true
			},
			wantPath: "cors.allowOrigins[0]",
		},
		{
			name:     "lower-case method",
			mutate:   func(c *Config) { c.CORS.AllowMethods = []string{"get"} },
			wantPath: "cors.allowMethods[0]",
		},
		{
			name:     "invalid header name",
			mutate:   func(c *Config) { c.CORS.ExposeHeaders.Headers = []string{"X Bad"} },
			wantPath: "cors.exposeHeaders.headers[0]",
		},
		{
			name:     "mirror on expose",
			mutate:   func(c *Config) { c.CORS.ExposeHeaders = HeaderPolicyConfig{Mode: HeaderModeMirror} },
			wantPath: "cors.exposeHeaders.mode",
		},
		{
			name:     "unknown mode",
			mutate:   func(c *Config) { c.CORS.AllowHeaders = HeaderPolicyConfig{Mode: "reflect"} },
			wantPath: "cors.allowHeaders.mode",
		},
		{
			name:     "list without headers",
			mutate:   func(c *Config) { c.CORS.AllowHeaders = HeaderPolicyConfig{Mode: HeaderModeList} },
			wantPath: "cors.allowHeaders.headers",
		},
		{
			name:     "cel without expression",
			mutate:   func(c *Config) { c.CORS.AllowHeaders = HeaderPolicyConfig{Mode: HeaderModeCEL} },
			wantPath: "cors.allowHeaders.expression",
		},
		{
			name: "cel compile error",
			mutate: func(c *Config) {
				c.CORS.AllowHeaders = HeaderPolicyConfig{Mode: HeaderModeCEL, Expression: "origin +"}
			},
			wantPath: "cors.allowHeaders.expression",
		},
		{
			name:     "csrf cipher",
			mutate:   func(c *Config) { c.CSRF.Cipher = "rot13" },
			wantPath: "csrf.cipher",
		},
		{
			name:     "csrf token size",
			mutate:   func(c *Config) { c.CSRF.TokenSize = 4 },
			wantPath: "csrf.tokenSize",
		},
		{
			name:     "csrf no key source",
			mutate:   func(c *Config) { c.CSRF.Key = KeySourceConfig{} },
			wantPath: "csrf.key",
		},
		{
			name:     "csrf two key sources",
			mutate:   func(c *Config) { c.CSRF.Key.Env = "CSRF_KEY" },
			wantPath: "csrf.key",
		},
		{
			name: "csrf vault without path",
			mutate: func(c *Config) {
				c.CSRF.Key = KeySourceConfig{Vault: &VaultKeyConfig{}}
			},
			wantPath: "csrf.key.vault.path",
		},
		{
			name:     "csrf same site",
			mutate:   func(c *Config) { c.CSRF.Cookie.SameSite = "sometimes" },
			wantPath: "csrf.cookie.sameSite",
		},
		{
			name: "csrf same site none without secure",
			mutate: func(c *Config) {
				c.CSRF.Cookie.SameSite = "None"
				c.CSRF.Cookie.Secure = boolPtr(false)
			},
			wantPath: "csrf.cookie.secure",
		},
		{
			name:     "rate limit burst",
			mutate:   func(c *Config) { c.RateLimit.Burst = -1 },
			wantPath: "rateLimit",
		},
		{
			name:     "rate limit algorithm",
			mutate:   func(c *Config) { c.RateLimit.Algorithm = "leaky_bucket" },
			wantPath: "rateLimit.algorithm",
		},
		{
			name:     "rate limit key by",
			mutate:   func(c *Config) { c.RateLimit.KeyBy = "cookie" },
			wantPath: "rateLimit.keyBy",
		},
		{
			name:     "rate limit header missing",
			mutate:   func(c *Config) { c.RateLimit.KeyBy = "header" },
			wantPath: "rateLimit.header",
		},
		{
			name:     "trusted proxy",
			mutate:   func(c *Config) { c.RateLimit.TrustedProxies = []string{"not-an-ip"} },
			wantPath: "rateLimit.trustedProxies[0]",
		},
		{
			name: "memory ttl shorter than period",
			mutate: func(c *Config) {
				c.RateLimit.Period = Duration(time.Hour)
				c.RateLimit.Memory.TTL = Duration(10 * time.Minute)
			},
			wantPath: "rateLimit.memory.ttl",
		},
		{
			name:     "unknown store",
			mutate:   func(c *Config) { c.RateLimit.Store = "etcd" },
			wantPath: "rateLimit.store",
		},
		{
			name:     "redis without address",
			mutate:   func(c *Config) { c.RateLimit.Store = "redis" },
			wantPath: "rateLimit.redis.address",
		},
		{
			name:     "breaker without redis",
			mutate:   func(c *Config) { c.RateLimit.Breaker = &BreakerConfig{Enabled: true} },
			wantPath: "rateLimit.breaker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))

			paths := make([]string, 0, len(verrs))
			for _, e := range verrs {
				paths = append(paths, e.Path)
			}
			assert.Contains(t, paths, tt.wantPath)
		})
	}
}

func TestValidateConfig_DisabledSectionsSkipped(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.CSRF = &CSRFConfig{Enabled: false, Cipher: "rot13"}
	cfg.RateLimit = &RateLimitConfig{Enabled: false, Burst: -1}

	assert.NoError(t, ValidateConfig(cfg))
}

func TestValidationErrors_Error(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "no validation errors", ValidationErrors{}.Error())
	assert.Equal(t, "a: bad", ValidationErrors{{Path: "a", Message: "bad"}}.Error())
	assert.Equal(t, "bad", (&ValidationError{Message: "bad"}).Error())

	multi := ValidationErrors{{Path: "a", Message: "one"}, {Path: "b", Message: "two"}}.Error()
	assert.Contains(t, multi, "2 validation errors")
	assert.Contains(t, multi, "1. a: one")
	assert.Contains(t, multi, "2. b: two")
}
