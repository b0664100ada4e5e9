package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/vyrodovalexey/avaguard/internal/cors"
	"github.com/vyrodovalexey/avaguard/internal/ratelimit"
)

// minCSRFTokenSize mirrors the lower bound enforced by the csrf package.
const minCSRFTokenSize = 8

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e[i].Error())
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// ValidateConfig validates a configuration.
func ValidateConfig(config *Config) error {
	return NewValidator().Validate(config)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *Config) error {
	v.errors = make(ValidationErrors, 0)

	if config == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateServer(&config.Server)
	v.validateLogging(&config.Logging)
	v.validateTracing(&config.Tracing)
	if config.CORS != nil {
		v.validateCORS(config.CORS, "cors")
	}
	if config.CSRF != nil && config.CSRF.Enabled {
		v.validateCSRF(config.CSRF, "csrf")
	}
	if config.RateLimit != nil && config.RateLimit.Enabled {
		v.validateRateLimit(config.RateLimit, "rateLimit")
	}

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateServer(server *ServerConfig) {
	if server.Address == "" {
		v.addError("server.address", "address is required")
	} else if _, _, err := net.SplitHostPort(server.Address); err != nil {
		v.addError("server.address", fmt.Sprintf("invalid address: %v", err))
	}

	timeouts := map[string]Duration{
		"readTimeout":     server.ReadTimeout,
		"writeTimeout":    server.WriteTimeout,
		"idleTimeout":     server.IdleTimeout,
		"shutdownTimeout": server.ShutdownTimeout,
	}
	for name, d := range timeouts {
		if d < 0 {
			v.addError("server."+name, "must not be negative")
		}
	}
}

func (v *Validator) validateLogging(logging *LoggingConfig) {
	validLevels := map[string]bool{
		"":      true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(logging.Level)] {
		v.addError("logging.level", fmt.Sprintf("invalid log level: %s", logging.Level))
	}

	validFormats := map[string]bool{
		"":        true,
		"json":    true,
		"console": true,
	}
	if !validFormats[strings.ToLower(logging.Format)] {
		v.addError("logging.format", fmt.Sprintf("invalid log format: %s", logging.Format))
	}
}

func (v *Validator) validateTracing(tracing *TracingConfig) {
	if !tracing.Enabled {
		return
	}
	if tracing.SamplingRate < 0 || tracing.SamplingRate > 1 {
		v.addError("tracing.samplingRate", "samplingRate must be between 0 and 1")
	}
}

func (v *Validator) validateCORS(c *CORSConfig, path string) {
	for i, origin := range c.AllowOrigins {
		originPath := fmt.Sprintf("%s.allowOrigins[%d]", path, i)
		switch {
		case origin == "*":
			if c.AllowCredentials {
				v.addError(originPath, "wildcard origin cannot be combined with allowCredentials")
			}
		case strings.HasPrefix(origin, "*."):
			// subdomain pattern
		default:
			u, err := url.Parse(origin)
			if err != nil || u.Scheme == "" || u.Host == "" {
				v.addError(originPath, fmt.Sprintf("invalid origin: %s", origin))
			}
		}
	}

	for i, method := range c.AllowMethods {
		if method == "" || strings.ToUpper(method) != method {
			v.addError(fmt.Sprintf("%s.allowMethods[%d]", path, i),
				fmt.Sprintf("method must be a non-empty upper-case token: %q", method))
		}
	}

	if c.MaxAge < 0 {
		v.addError(path+".maxAge", "maxAge must not be negative")
	}

	v.validateHeaderPolicy(&c.AllowHeaders, path+".allowHeaders", true)
	v.validateHeaderPolicy(&c.ExposeHeaders, path+".exposeHeaders", false)
}

func (v *Validator) validateHeaderPolicy(h *HeaderPolicyConfig, path string, allowMirror bool) {
	mode := h.EffectiveMode()

	switch mode {
	case HeaderModeNone, HeaderModeAny:
	case HeaderModeMirror:
		if !allowMirror {
			v.addError(path+".mode", "mirror is only supported for allowHeaders")
		}
	case HeaderModeList:
		if len(h.Headers) == 0 {
			v.addError(path+".headers", "headers are required for mode list")
		}
	case HeaderModeCEL:
		if h.Expression == "" {
			v.addError(path+".expression", "expression is required for mode cel")
		} else if _, err := cors.NewCELDecider(h.Expression); err != nil {
			v.addError(path+".expression", err.Error())
		}
	default:
		v.addError(path+".mode", fmt.Sprintf("invalid mode: %s", h.Mode))
		return
	}

	for i, name := range h.Headers {
		if !cors.ValidHeaderName(name) {
			v.addError(fmt.Sprintf("%s.headers[%d]", path, i), fmt.Sprintf("invalid header name: %q", name))
		}
	}
}

func (v *Validator) validateCSRF(c *CSRFConfig, path string) {
	switch strings.ToLower(c.Cipher) {
	case "", "ccp", "aesgcm":
	default:
		v.addError(path+".cipher", fmt.Sprintf("invalid cipher: %s (must be ccp or aesgcm)", c.Cipher))
	}

	if c.TokenSize != 0 && c.TokenSize < minCSRFTokenSize {
		v.addError(path+".tokenSize", fmt.Sprintf("tokenSize must be at least %d", minCSRFTokenSize))
	}

	sources := 0
	if c.Key.Env != "" {
		sources++
	}
	if c.Key.File != "" {
		sources++
	}
	if c.Key.Vault != nil {
		sources++
		if c.Key.Vault.Path == "" {
			v.addError(path+".key.vault.path", "path is required")
		}
	}
	if sources != 1 {
		v.addError(path+".key", "exactly one of env, file or vault must be set")
	}

	if c.HeaderName != "" && !cors.ValidHeaderName(c.HeaderName) {
		v.addError(path+".headerName", fmt.Sprintf("invalid header name: %q", c.HeaderName))
	}

	switch strings.ToLower(c.Cookie.SameSite) {
	case "", "lax", "strict", "none":
	default:
		v.addError(path+".cookie.sameSite", fmt.Sprintf("invalid sameSite: %s", c.Cookie.SameSite))
	}
	if strings.EqualFold(c.Cookie.SameSite, "none") && c.Cookie.Secure != nil && !*c.Cookie.Secure {
		v.addError(path+".cookie.secure", "sameSite none requires a secure cookie")
	}
	if c.Cookie.MaxAge < 0 {
		v.addError(path+".cookie.maxAge", "maxAge must not be negative")
	}
}

func (v *Validator) validateRateLimit(rl *RateLimitConfig, path string) {
	if err := rl.Quota().Validate(); err != nil {
		v.addError(path, err.Error())
	}

	switch ratelimit.Algorithm(rl.Algorithm) {
	case "", ratelimit.AlgorithmSlidingWindow, ratelimit.AlgorithmTokenBucket:
	default:
		v.addError(path+".algorithm", fmt.Sprintf("invalid algorithm: %s", rl.Algorithm))
	}

	switch rl.KeyBy {
	case "", "ip":
	case "header":
		if rl.Header == "" {
			v.addError(path+".header", "header is required when keyBy is header")
		} else if !cors.ValidHeaderName(rl.Header) {
			v.addError(path+".header", fmt.Sprintf("invalid header name: %q", rl.Header))
		}
	default:
		v.addError(path+".keyBy", fmt.Sprintf("invalid keyBy: %s (must be ip or header)", rl.KeyBy))
	}

	for i, proxy := range rl.TrustedProxies {
		if _, _, err := net.ParseCIDR(proxy); err != nil && net.ParseIP(proxy) == nil {
			v.addError(fmt.Sprintf("%s.trustedProxies[%d]", path, i), fmt.Sprintf("invalid IP or CIDR: %s", proxy))
		}
	}

	if rl.Memory.Shards < 0 {
		v.addError(path+".memory.shards", "shards must not be negative")
	}
	if rl.Memory.TTL < 0 {
		v.addError(path+".memory.ttl", "ttl must not be negative")
	} else if rl.Memory.TTL > 0 && rl.Memory.TTL < rl.Period {
		v.addError(path+".memory.ttl", fmt.Sprintf("ttl %s must not be shorter than period %s", rl.Memory.TTL.Duration(), rl.Period.Duration()))
	}

	switch rl.Store {
	case "", "memory":
	case "redis":
		if rl.Redis == nil || rl.Redis.Address == "" {
			v.addError(path+".redis.address", "address is required for the redis store")
		} else if rl.Redis.DB < 0 {
			v.addError(path+".redis.db", "db must not be negative")
		}
	default:
		v.addError(path+".store", fmt.Sprintf("invalid store: %s (must be memory or redis)", rl.Store))
	}

	if rl.Breaker != nil && rl.Breaker.Enabled {
		if rl.Store != "redis" {
			v.addError(path+".breaker", "breaker requires the redis store")
		}
		if rl.Breaker.Threshold < 0 {
			v.addError(path+".breaker.threshold", "threshold must not be negative")
		}
	}
}

// addError adds a validation error.
func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}
