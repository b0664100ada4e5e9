package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/avaguard/internal/ratelimit"
)

// Prometheus metrics for Redis store operations
var (
	redisStoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "avaguard",
			Subsystem: "ratelimit_redis",
			Name:      "operations_total",
			Help:      "Total number of Redis rate limit store operations",
		},
		[]string{"operation", "status"},
	)

	redisStoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "avaguard",
			Subsystem: "ratelimit_redis",
			Name:      "operation_duration_seconds",
			Help:      "Duration of Redis rate limit store operations in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	redisStoreConnectionRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "avaguard",
			Subsystem: "ratelimit_redis",
			Name:      "connection_retries_total",
			Help:      "Total number of Redis connection retry attempts",
		},
	)

	redisStoreConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "avaguard",
			Subsystem: "ratelimit_redis",
			Name:      "connection_errors_total",
			Help:      "Total number of Redis connection errors",
		},
	)
)

// windowScript runs one admission check of the window counter.
// KEYS[1] = key
// ARGV[1] = burst
// ARGV[2] = period in ms
// ARGV[3] = now in ms
// Returns: allowed (0 or 1), remaining count, reset time in ms
var windowScript = redis.NewScript(`
	local key = KEYS[1]
	local burst = tonumber(ARGV[1])
	local period_ms = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])

	local data = redis.call('HMGET', key, 'window_end', 'count')
	local window_end = tonumber(data[1]) or 0
	local count = tonumber(data[2]) or 0

	if now > window_end then
		window_end = now + period_ms
		count = 0
	end

	local allowed = 0
	if count < burst then
		count = count + 1
		allowed = 1
		redis.call('HSET', key,
			'window_end', string.format('%d', window_end),
			'count', string.format('%d', count))
		redis.call('PEXPIRE', key, window_end - now + 1000)
	end

	local remaining = burst - count
	if remaining < 0 then
		remaining = 0
	end

	return {allowed, remaining, window_end - now}
`)

// RedisStore implements Store using Redis. It runs the window counter
// as a Lua script, so Redis serializes checks for the same key across
// every process sharing the server.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
	now    ratelimit.Clock
	closed bool
	mu     sync.Mutex
}

// RedisConfig holds configuration for Redis store.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string

	// Connection pool settings
	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	// Timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// InitialBackoff is the initial backoff duration for connection retries.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration for connection retries.
	MaxBackoff time.Duration

	// ConnectionRetries is the number of connection retry attempts.
	ConnectionRetries int

	// Logger for the Redis store.
	Logger *zap.Logger

	// Clock supplies the time used for windows. Defaults to time.Now.
	Clock ratelimit.Clock
}

// DefaultRedisConfig returns a RedisConfig with default values.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Address:           "localhost:6379",
		Prefix:            "avaguard:ratelimit:",
		PoolSize:          10,
		MinIdleConns:      2,
		MaxRetries:        3,
		DialTimeout:       5 * time.Second,
		ReadTimeout:       3 * time.Second,
		WriteTimeout:      3 * time.Second,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		ConnectionRetries: 5,
	}
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(addr, password string, db int, prefix string) (*RedisStore, error) {
	config := DefaultRedisConfig()
	config.Address = addr
	config.Password = password
	config.DB = db
	if prefix != "" {
		config.Prefix = prefix
	}

	return NewRedisStoreWithConfig(config)
}

// NewRedisStoreWithConfig creates a new Redis store with custom configuration.
// Uses exponential backoff with decorrelated jitter for connection retries.
func NewRedisStoreWithConfig(config *RedisConfig) (*RedisStore, error) {
	config, logger := normalizeRedisConfig(config)
	client := createRedisClient(config)
	connConfig := buildConnectionConfig(config)

	store, err := connectWithRetry(client, config, connConfig, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return store, nil
}

// redisConnectionConfig holds normalized connection retry settings.
type redisConnectionConfig struct {
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	totalTimeout   time.Duration
}

// normalizeRedisConfig ensures config has all required defaults.
func normalizeRedisConfig(config *RedisConfig) (*RedisConfig, *zap.Logger) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return config, logger
}

// createRedisClient creates a new Redis client with the given configuration.
func createRedisClient(config *RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})
}

// buildConnectionConfig creates normalized connection retry settings.
func buildConnectionConfig(config *RedisConfig) *redisConnectionConfig {
	maxRetries := config.ConnectionRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	initialBackoff := config.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = 100 * time.Millisecond
	}

	maxBackoff := config.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 10 * time.Second
	}

	totalTimeout := time.Duration(maxRetries+1) * config.DialTimeout
	if totalTimeout > 2*time.Minute {
		totalTimeout = 2 * time.Minute
	}

	return &redisConnectionConfig{
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		totalTimeout:   totalTimeout,
	}
}

// connectWithRetry attempts to connect to Redis with exponential backoff.
func connectWithRetry(
	client *redis.Client,
	config *RedisConfig,
	connConfig *redisConnectionConfig,
	logger *zap.Logger,
) (*RedisStore, error) {
	backoff := newDecorrelatedJitterBackoff(connConfig.initialBackoff, connConfig.maxBackoff)

	overallCtx, overallCancel := context.WithTimeout(context.Background(), connConfig.totalTimeout)
	defer overallCancel()

	var lastErr error
	for attempt := 0; attempt <= connConfig.maxRetries; attempt++ {
		if err := overallCtx.Err(); err != nil {
			return nil, fmt.Errorf("connection timeout exceeded: %w", err)
		}

		pingCtx, cancel := context.WithTimeout(overallCtx, config.DialTimeout)
		lastErr = client.Ping(pingCtx).Err()
		cancel()

		if lastErr == nil {
			if attempt > 0 {
				logger.Info("Redis connection established after retry",
					zap.String("address", config.Address),
					zap.Int("attempt", attempt+1),
				)
			}
			return newRedisStore(client, config, logger), nil
		}

		redisStoreConnectionErrors.Inc()

		if attempt >= connConfig.maxRetries {
			break
		}

		retryErr := waitForConnectionRetry(
			overallCtx, backoff, logger, config.Address, attempt, connConfig.maxRetries, lastErr,
		)
		if retryErr != nil {
			return nil, retryErr
		}
	}

	return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", connConfig.maxRetries+1, lastErr)
}

func newRedisStore(client *redis.Client, config *RedisConfig, logger *zap.Logger) *RedisStore {
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	return &RedisStore{
		client: client,
		prefix: config.Prefix,
		logger: logger,
		now:    clock,
	}
}

// waitForConnectionRetry waits before the next connection attempt.
func waitForConnectionRetry(
	ctx context.Context,
	backoff *decorrelatedJitterBackoff,
	logger *zap.Logger,
	address string,
	attempt, maxRetries int,
	err error,
) error {
	wait := backoff.next(attempt)

	logger.Debug("Redis connection failed, retrying",
		zap.String("address", address),
		zap.Int("attempt", attempt+1),
		zap.Int("max_retries", maxRetries),
		zap.Duration("backoff", wait),
		zap.Error(err),
	)

	redisStoreConnectionRetries.Inc()

	select {
	case <-ctx.Done():
		return fmt.Errorf("connection timeout exceeded during backoff: %w", ctx.Err())
	case <-time.After(wait):
		return nil
	}
}

// decorrelatedJitterBackoff implements decorrelated jitter backoff.
type decorrelatedJitterBackoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newDecorrelatedJitterBackoff(initial, maxDuration time.Duration) *decorrelatedJitterBackoff {
	return &decorrelatedJitterBackoff{
		initial: initial,
		max:     maxDuration,
		current: initial,
	}
}

// next returns the next backoff duration.
// Formula: sleep = min(cap, random_between(base, sleep * 3))
func (b *decorrelatedJitterBackoff) next(attempt int) time.Duration {
	if attempt == 0 {
		b.current = b.initial
		return b.current
	}

	minBackoff := float64(b.initial)
	maxBackoff := float64(b.current) * 3

	//nolint:gosec // weak random is acceptable for jitter
	backoff := minBackoff + float64(time.Now().UnixNano()%1000)/1000.0*(maxBackoff-minBackoff)

	if backoff > float64(b.max) {
		backoff = float64(b.max)
	}

	b.current = time.Duration(backoff)
	return b.current
}

// prefixKey adds the prefix to the key.
func (s *RedisStore) prefixKey(key string) string {
	return s.prefix + key
}

func (s *RedisStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// GetOrCreate implements Store. Redis creates the window lazily, so this
// performs no round trip.
func (s *RedisStore) GetOrCreate(ctx context.Context, key string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error before redis lookup: %w", err)
	}
	if key == "" {
		return nil, ErrInvalidKey
	}
	if s.isClosed() {
		return nil, ErrStoreClosed
	}
	return &redisHandle{store: s, key: s.prefixKey(key)}, nil
}

// Close implements Store.
// Close is idempotent - calling it multiple times is safe.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

// Ping checks connectivity to Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Client returns the underlying Redis client.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

type redisHandle struct {
	store *RedisStore
	key   string
}

// Verify implements Handle.
func (h *redisHandle) Verify(ctx context.Context, quota ratelimit.Quota) (Result, error) {
	const op = "verify"

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("context error before redis verify: %w", err)
	}
	if err := quota.Validate(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	now := h.store.now().UnixMilli()
	periodMs := quota.Period.Milliseconds()
	if periodMs < 1 {
		periodMs = 1
	}

	raw, err := windowScript.Run(ctx, h.store.client, []string{h.key}, quota.Burst, periodMs, now).Result()

	redisStoreOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		redisStoreOperationsTotal.WithLabelValues(op, "error").Inc()
		return Result{}, fmt.Errorf("redis script error: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		redisStoreOperationsTotal.WithLabelValues(op, "error").Inc()
		return Result{}, fmt.Errorf("redis script returned unexpected result: %v", raw)
	}

	ints := make([]int64, len(values))
	for i, v := range values {
		n, ok := v.(int64)
		if !ok {
			redisStoreOperationsTotal.WithLabelValues(op, "error").Inc()
			return Result{}, fmt.Errorf("redis script returned unexpected type: %T", v)
		}
		ints[i] = n
	}

	res := Result{
		Allowed:    ints[0] == 1,
		Limit:      quota.Burst,
		Remaining:  int(ints[1]),
		ResetAfter: nonNegative(time.Duration(ints[2]) * time.Millisecond),
	}

	status := "allowed"
	if !res.Allowed {
		status = "rejected"
	}
	redisStoreOperationsTotal.WithLabelValues(op, status).Inc()

	return res, nil
}
