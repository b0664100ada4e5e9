package config

import (
	"time"

	"github.com/vyrodovalexey/avaguard/internal/ratelimit"
)

// Default values applied by SetDefaults.
const (
	DefaultAddress         = ":8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultServiceName = "avaguard"

	DefaultCSRFCipher     = "ccp"
	DefaultCSRFHeaderName = "X-CSRF-Token"
	DefaultCSRFFormField  = "csrf_token"
	DefaultCSRFCookieName = "csrf_secret"

	DefaultRateLimitPeriod    = time.Minute
	DefaultRateLimitBurst     = 100
	DefaultRateLimitAlgorithm = string(ratelimit.AlgorithmSlidingWindow)
	DefaultRateLimitStore     = "memory"
	DefaultRateLimitKeyBy     = "ip"
	DefaultRedisPrefix        = "avaguard:ratelimit:"
)

// Header policy modes.
const (
	HeaderModeNone   = "none"
	HeaderModeAny    = "any"
	HeaderModeList   = "list"
	HeaderModeMirror = "mirror"
	HeaderModeCEL    = "cel"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server" json:"server"`
	Logging   LoggingConfig    `yaml:"logging" json:"logging"`
	Tracing   TracingConfig    `yaml:"tracing" json:"tracing"`
	CORS      *CORSConfig      `yaml:"cors,omitempty" json:"cors,omitempty"`
	CSRF      *CSRFConfig      `yaml:"csrf,omitempty" json:"csrf,omitempty"`
	RateLimit *RateLimitConfig `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string   `yaml:"address,omitempty" json:"address,omitempty"`
	ReadTimeout     Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout    Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	IdleTimeout     Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	ServiceName  string  `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
}

// CORSConfig configures cross-origin resource sharing.
type CORSConfig struct {
	AllowOrigins     []string           `yaml:"allowOrigins,omitempty" json:"allowOrigins,omitempty"`
	AllowMethods     []string           `yaml:"allowMethods,omitempty" json:"allowMethods,omitempty"`
	AllowHeaders     HeaderPolicyConfig `yaml:"allowHeaders,omitempty" json:"allowHeaders,omitempty"`
	ExposeHeaders    HeaderPolicyConfig `yaml:"exposeHeaders,omitempty" json:"exposeHeaders,omitempty"`
	AllowCredentials bool               `yaml:"allowCredentials,omitempty" json:"allowCredentials,omitempty"`
	MaxAge           int                `yaml:"maxAge,omitempty" json:"maxAge,omitempty"`
}

// HeaderPolicyConfig selects how a CORS header value is produced.
//
// Mode is one of none, any, list, mirror (allow headers only) or cel.
// An empty mode means list when Headers is set and none otherwise.
type HeaderPolicyConfig struct {
	Mode       string   `yaml:"mode,omitempty" json:"mode,omitempty"`
	Headers    []string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Expression string   `yaml:"expression,omitempty" json:"expression,omitempty"`
	Default    string   `yaml:"default,omitempty" json:"default,omitempty"`
}

// EffectiveMode resolves an empty mode.
func (h HeaderPolicyConfig) EffectiveMode() string {
	if h.Mode != "" {
		return h.Mode
	}
	if len(h.Headers) > 0 {
		return HeaderModeList
	}
	return HeaderModeNone
}

// CSRFConfig configures CSRF protection.
type CSRFConfig struct {
	Enabled    bool            `yaml:"enabled" json:"enabled"`
	Cipher     string          `yaml:"cipher,omitempty" json:"cipher,omitempty"`
	TokenSize  int             `yaml:"tokenSize,omitempty" json:"tokenSize,omitempty"`
	Key        KeySourceConfig `yaml:"key" json:"key"`
	Cookie     CookieConfig    `yaml:"cookie,omitempty" json:"cookie,omitempty"`
	HeaderName string          `yaml:"headerName,omitempty" json:"headerName,omitempty"`
	FormField  string          `yaml:"formField,omitempty" json:"formField,omitempty"`
}

// KeySourceConfig names where the 256-bit CSRF key is read from.
// Exactly one source must be set.
type KeySourceConfig struct {
	Env   string          `yaml:"env,omitempty" json:"env,omitempty"`
	File  string          `yaml:"file,omitempty" json:"file,omitempty"`
	Vault *VaultKeyConfig `yaml:"vault,omitempty" json:"vault,omitempty"`
}

// VaultKeyConfig reads the key from a Vault KV v2 secret.
type VaultKeyConfig struct {
	Address string   `yaml:"address,omitempty" json:"address,omitempty"`
	Token   string   `yaml:"token,omitempty" json:"token,omitempty"`
	Mount   string   `yaml:"mount,omitempty" json:"mount,omitempty"`
	Path    string   `yaml:"path" json:"path"`
	Field   string   `yaml:"field,omitempty" json:"field,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// CookieConfig configures the CSRF secret cookie.
type CookieConfig struct {
	Name     string   `yaml:"name,omitempty" json:"name,omitempty"`
	Path     string   `yaml:"path,omitempty" json:"path,omitempty"`
	Domain   string   `yaml:"domain,omitempty" json:"domain,omitempty"`
	MaxAge   Duration `yaml:"maxAge,omitempty" json:"maxAge,omitempty"`
	Secure   *bool    `yaml:"secure,omitempty" json:"secure,omitempty"`
	HTTPOnly *bool    `yaml:"httpOnly,omitempty" json:"httpOnly,omitempty"`
	SameSite string   `yaml:"sameSite,omitempty" json:"sameSite,omitempty"`
}

// RateLimitConfig configures request rate limiting.
type RateLimitConfig struct {
	Enabled        bool              `yaml:"enabled" json:"enabled"`
	Algorithm      string            `yaml:"algorithm,omitempty" json:"algorithm,omitempty"`
	Period         Duration          `yaml:"period,omitempty" json:"period,omitempty"`
	Burst          int               `yaml:"burst,omitempty" json:"burst,omitempty"`
	KeyBy          string            `yaml:"keyBy,omitempty" json:"keyBy,omitempty"`
	Header         string            `yaml:"header,omitempty" json:"header,omitempty"`
	PerEndpoint    bool              `yaml:"perEndpoint,omitempty" json:"perEndpoint,omitempty"`
	Headers        bool              `yaml:"headers,omitempty" json:"headers,omitempty"`
	TrustedProxies []string          `yaml:"trustedProxies,omitempty" json:"trustedProxies,omitempty"`
	Store          string            `yaml:"store,omitempty" json:"store,omitempty"`
	Memory         MemoryStoreConfig `yaml:"memory,omitempty" json:"memory,omitempty"`
	Redis          *RedisConfig      `yaml:"redis,omitempty" json:"redis,omitempty"`
	Breaker        *BreakerConfig    `yaml:"breaker,omitempty" json:"breaker,omitempty"`
}

// Quota returns the configured quota.
func (r *RateLimitConfig) Quota() ratelimit.Quota {
	return ratelimit.Quota{Period: r.Period.Duration(), Burst: r.Burst}
}

// MemoryStoreConfig tunes the in-memory store.
type MemoryStoreConfig struct {
	TTL             Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`
	CleanupInterval Duration `yaml:"cleanupInterval,omitempty" json:"cleanupInterval,omitempty"`
	Shards          int      `yaml:"shards,omitempty" json:"shards,omitempty"`
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Address           string   `yaml:"address" json:"address"`
	Password          string   `yaml:"password,omitempty" json:"password,omitempty"`
	DB                int      `yaml:"db,omitempty" json:"db,omitempty"`
	Prefix            string   `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	PoolSize          int      `yaml:"poolSize,omitempty" json:"poolSize,omitempty"`
	DialTimeout       Duration `yaml:"dialTimeout,omitempty" json:"dialTimeout,omitempty"`
	ConnectionRetries int      `yaml:"connectionRetries,omitempty" json:"connectionRetries,omitempty"`
}

// BreakerConfig configures the circuit breaker in front of the Redis store.
type BreakerConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Threshold int      `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Timeout   Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills unset fields with default values.
func (c *Config) SetDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(DefaultReadTimeout)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(DefaultWriteTimeout)
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = Duration(DefaultIdleTimeout)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultServiceName
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1.0
	}

	if c.CSRF != nil {
		c.CSRF.setDefaults()
	}
	if c.RateLimit != nil {
		c.RateLimit.setDefaults()
	}
}

func (c *CSRFConfig) setDefaults() {
	if c.Cipher == "" {
		c.Cipher = DefaultCSRFCipher
	}
	if c.HeaderName == "" {
		c.HeaderName = DefaultCSRFHeaderName
	}
	if c.FormField == "" {
		c.FormField = DefaultCSRFFormField
	}
	if c.Cookie.Name == "" {
		c.Cookie.Name = DefaultCSRFCookieName
	}
	if c.Cookie.Path == "" {
		c.Cookie.Path = "/"
	}
	if c.Key.Vault != nil {
		if c.Key.Vault.Mount == "" {
			c.Key.Vault.Mount = "secret"
		}
		if c.Key.Vault.Field == "" {
			c.Key.Vault.Field = "key"
		}
		if c.Key.Vault.Timeout == 0 {
			c.Key.Vault.Timeout = Duration(10 * time.Second)
		}
	}
}

func (r *RateLimitConfig) setDefaults() {
	if r.Algorithm == "" {
		r.Algorithm = DefaultRateLimitAlgorithm
	}
	if r.Period == 0 {
		r.Period = Duration(DefaultRateLimitPeriod)
	}
	if r.Burst == 0 {
		r.Burst = DefaultRateLimitBurst
	}
	if r.KeyBy == "" {
		r.KeyBy = DefaultRateLimitKeyBy
	}
	if r.Store == "" {
		r.Store = DefaultRateLimitStore
	}
	if r.Redis != nil && r.Redis.Prefix == "" {
		r.Redis.Prefix = DefaultRedisPrefix
	}
}
