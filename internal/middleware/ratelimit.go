package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vyrodovalexey/avaguard/internal/config"
	"github.com/vyrodovalexey/avaguard/internal/observability"
	"github.com/vyrodovalexey/avaguard/internal/ratelimit"
	"github.com/vyrodovalexey/avaguard/internal/ratelimit/store"
)

// RateLimitConfig configures the rate limit middleware.
type RateLimitConfig struct {
	// Store keeps the per-key admission state.
	Store store.Store

	// Quota returns the quota for a key.
	Quota ratelimit.QuotaGetter

	// KeyFunc maps a request to its client key. Defaults to the remote IP.
	KeyFunc ratelimit.KeyFunc

	// Headers adds X-RateLimit-* headers to every limited response.
	Headers bool

	Logger observability.Logger
}

// ceilSeconds rounds d up to whole seconds.
func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}

// RateLimit returns a middleware that applies rate limiting. CORS
// preflights are never counted. When the store or quota lookup fails the
// request is let through and a warning is logged.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Store == nil || cfg.Quota == nil {
		panic("middleware: RateLimit requires a store and a quota getter")
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ratelimit.RemoteIPKeyFunc
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger()
	}
	metrics := GetMiddlewareMetrics()

	check := func(ctx context.Context, key string) (store.Result, error) {
		quota, err := cfg.Quota.Quota(ctx, key)
		if err != nil {
			return store.Result{}, fmt.Errorf("quota lookup: %w", err)
		}
		return store.Allow(ctx, cfg.Store, key, quota)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPreflight(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := cfg.KeyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := check(r.Context(), key)
			if err != nil {
				metrics.rateLimitErrors.Inc()
				cfg.Logger.WithContext(r.Context()).Warn("rate limit check failed, allowing request",
					observability.String("key", key),
					observability.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			if cfg.Headers {
				h := w.Header()
				h.Set(HeaderXRateLimitLimit, strconv.Itoa(res.Limit))
				h.Set(HeaderXRateLimitRemaining, strconv.Itoa(res.Remaining))
				h.Set(HeaderXRateLimitReset, strconv.FormatInt(ceilSeconds(res.ResetAfter), 10))
			}

			if !res.Allowed {
				metrics.rateLimitRejected.Inc()
				observability.AddSpanEvent(r.Context(), "ratelimit.rejected",
					attribute.Int("ratelimit.limit", res.Limit),
				)
				cfg.Logger.WithContext(r.Context()).Warn("rate limit exceeded",
					observability.String("key", key),
					observability.String("path", r.URL.Path),
				)

				retryAfter := ceilSeconds(res.ResetAfter)
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set(HeaderContentType, ContentTypeJSON)
				w.Header().Set(HeaderRetryAfter, strconv.FormatInt(retryAfter, 10))
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = io.WriteString(w, ErrRateLimitExceeded)
				return
			}

			metrics.rateLimitAllowed.Inc()
			next.ServeHTTP(w, r)
		})
	}
}

// KeyFuncFromConfig builds the client key function: the trusted-proxy
// aware client IP, or a header falling back to it, optionally scoped per
// endpoint.
func KeyFuncFromConfig(cfg *config.RateLimitConfig) ratelimit.KeyFunc {
	keyFunc := NewClientIPExtractor(cfg.TrustedProxies).KeyFunc()
	if cfg.KeyBy == "header" && cfg.Header != "" {
		keyFunc = ratelimit.HeaderKeyFunc(cfg.Header, keyFunc)
	}
	if cfg.PerEndpoint {
		keyFunc = ratelimit.PerEndpointKeyFunc(keyFunc)
	}
	return keyFunc
}

// NewStoreFromConfig creates the quota store named by cfg. A Redis store
// behind an enabled breaker falls back to a local memory store.
func NewStoreFromConfig(cfg *config.RateLimitConfig, logger observability.Logger) (store.Store, error) {
	factory, err := ratelimit.NewGuardFactory(ratelimit.Algorithm(cfg.Algorithm), nil)
	if err != nil {
		return nil, err
	}

	newMemory := func() *store.MemoryStore {
		opts := []store.MemoryOption{store.WithGuardFactory(factory)}
		if cfg.Memory.Shards > 0 {
			opts = append(opts, store.WithShardCount(cfg.Memory.Shards))
		}
		if cfg.Memory.TTL > 0 {
			opts = append(opts, store.WithEntryTTL(cfg.Memory.TTL.Duration()))
		}
		if cfg.Memory.CleanupInterval > 0 {
			opts = append(opts, store.WithCleanupInterval(cfg.Memory.CleanupInterval.Duration()))
		}
		return store.NewMemoryStore(opts...)
	}

	switch cfg.Store {
	case "", "memory":
		return newMemory(), nil

	case "redis":
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis store requires redis configuration")
		}
		if ratelimit.Algorithm(cfg.Algorithm) == ratelimit.AlgorithmTokenBucket {
			logger.Warn("redis store always uses the window counter; token_bucket applies to the fallback only")
		}

		redisCfg := store.DefaultRedisConfig()
		redisCfg.Address = cfg.Redis.Address
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		if cfg.Redis.Prefix != "" {
			redisCfg.Prefix = cfg.Redis.Prefix
		}
		if cfg.Redis.PoolSize > 0 {
			redisCfg.PoolSize = cfg.Redis.PoolSize
		}
		if cfg.Redis.DialTimeout > 0 {
			redisCfg.DialTimeout = cfg.Redis.DialTimeout.Duration()
		}
		if cfg.Redis.ConnectionRetries > 0 {
			redisCfg.ConnectionRetries = cfg.Redis.ConnectionRetries
		}
		redisCfg.Logger = observability.Zap(logger)

		redisStore, err := store.NewRedisStoreWithConfig(redisCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis store: %w", err)
		}

		if cfg.Breaker == nil || !cfg.Breaker.Enabled {
			return redisStore, nil
		}

		return store.NewBreakerStore(redisStore, newMemory(), store.BreakerConfig{
			Name:      "ratelimit-redis",
			Threshold: cfg.Breaker.Threshold,
			Timeout:   cfg.Breaker.Timeout.Duration(),
			Logger:    observability.Zap(logger),
		}), nil

	default:
		return nil, fmt.Errorf("unknown rate limit store: %s", cfg.Store)
	}
}

// RateLimitFromConfig creates rate limit middleware from configuration.
// It returns the store so the caller can close it on shutdown; the store
// is nil when rate limiting is disabled.
func RateLimitFromConfig(
	cfg *config.RateLimitConfig,
	quota ratelimit.QuotaGetter,
	logger observability.Logger,
) (func(http.Handler) http.Handler, store.Store, error) {
	if cfg == nil || !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }, nil, nil
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	if quota == nil {
		quota = ratelimit.StaticQuota(cfg.Quota())
	}

	s, err := NewStoreFromConfig(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	return RateLimit(RateLimitConfig{
		Store:   s,
		Quota:   quota,
		KeyFunc: KeyFuncFromConfig(cfg),
		Headers: cfg.Headers,
		Logger:  logger,
	}), s, nil
}
