package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables that override file values.
const EnvPrefix = "AVAGUARD_"

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// LookupFunc looks up an environment variable.
type LookupFunc func(key string) (string, bool)

// Loader handles configuration loading from files and readers.
type Loader struct {
	lookup LookupFunc
}

// LoaderOption is a functional option for the loader.
type LoaderOption func(*Loader)

// WithLookup replaces os.LookupEnv for substitution and overrides.
func WithLookup(lookup LookupFunc) LoaderOption {
	return func(l *Loader) {
		if lookup != nil {
			l.lookup = lookup
		}
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadConfig loads configuration from a file path.
func LoadConfig(path string) (*Config, error) {
	return NewLoader().Load(path)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	return NewLoader().LoadFromReader(r)
}

// Load loads configuration from a file path.
func (l *Loader) Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	data, err := os.ReadFile(absPath) //nolint:gosec // operator supplied config path
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return l.parseConfig(data)
}

// LoadFromReader loads configuration from an io.Reader.
func (l *Loader) LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return l.parseConfig(data)
}

// parseConfig substitutes variables, parses YAML, applies environment
// overrides and finally defaults.
func (l *Loader) parseConfig(data []byte) (*Config, error) {
	content := l.substituteEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := l.applyEnvOverrides(&config); err != nil {
		return nil, err
	}

	config.SetDefaults()

	return &config, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment variable values.
func (l *Loader) substituteEnvVars(content string) string {
	content = strings.ReplaceAll(content, "$$", "\x00ESCAPED_DOLLAR\x00")

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		if value, exists := l.lookup(submatches[1]); exists {
			return value
		}
		if len(submatches) >= 3 {
			return submatches[2]
		}
		return ""
	})

	return strings.ReplaceAll(result, "\x00ESCAPED_DOLLAR\x00", "$")
}

// applyEnvOverrides applies AVAGUARD_* variables on top of the file.
func (l *Loader) applyEnvOverrides(config *Config) error {
	if v, ok := l.env("SERVER_ADDRESS"); ok {
		config.Server.Address = v
	}
	if v, ok := l.env("LOG_LEVEL"); ok {
		config.Logging.Level = v
	}
	if v, ok := l.env("LOG_FORMAT"); ok {
		config.Logging.Format = v
	}
	if v, ok := l.env("TRACING_ENDPOINT"); ok {
		config.Tracing.Enabled = true
		config.Tracing.OTLPEndpoint = v
	}

	if v, ok := l.env("RATELIMIT_BURST"); ok {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sRATELIMIT_BURST %q: %w", EnvPrefix, v, err)
		}
		l.rateLimit(config).Burst = burst
	}
	if v, ok := l.env("RATELIMIT_PERIOD"); ok {
		period, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sRATELIMIT_PERIOD %q: %w", EnvPrefix, v, err)
		}
		l.rateLimit(config).Period = Duration(period)
	}

	if v, ok := l.env("REDIS_ADDRESS"); ok {
		l.redis(config).Address = v
	}
	if v, ok := l.env("REDIS_PASSWORD"); ok {
		l.redis(config).Password = v
	}

	return nil
}

func (l *Loader) env(name string) (string, bool) {
	v, ok := l.lookup(EnvPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (l *Loader) rateLimit(config *Config) *RateLimitConfig {
	if config.RateLimit == nil {
		config.RateLimit = &RateLimitConfig{}
	}
	return config.RateLimit
}

func (l *Loader) redis(config *Config) *RedisConfig {
	rl := l.rateLimit(config)
	if rl.Redis == nil {
		rl.Redis = &RedisConfig{}
	}
	return rl.Redis
}
