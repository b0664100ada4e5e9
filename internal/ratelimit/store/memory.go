package store

import (
	"context"
	"hash/maphash"
	"sync"
	"time"

	"github.com/vyrodovalexey/avaguard/internal/ratelimit"
)

const (
	defaultShardCount      = 32
	defaultEntryTTL        = 10 * time.Minute
	defaultCleanupInterval = time.Minute
)

// entry holds the guard of one key. mu serializes Verify for the key.
type entry struct {
	mu       sync.Mutex
	guard    ratelimit.Guard
	lastSeen time.Time
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// MemoryStore implements Store using in-memory storage. Keys are spread
// across shards to reduce lock contention on lookup.
type MemoryStore struct {
	shards  []*shard
	seed    maphash.Seed
	factory ratelimit.GuardFactory
	now     ratelimit.Clock
	ttl     time.Duration

	interval time.Duration
	cleanup  *time.Ticker
	done     chan struct{}
	mu       sync.RWMutex
	closed   bool
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithShardCount sets the number of shards.
func WithShardCount(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.shards = make([]*shard, n)
		}
	}
}

// WithGuardFactory sets the factory used for new keys.
func WithGuardFactory(factory ratelimit.GuardFactory) MemoryOption {
	return func(s *MemoryStore) {
		if factory != nil {
			s.factory = factory
		}
	}
}

// WithEntryTTL sets how long an idle key is kept. A key is never evicted
// before its current window has ended.
func WithEntryTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithCleanupInterval sets how often idle keys are evicted.
func WithCleanupInterval(interval time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithClock sets the clock used for idle tracking.
func WithClock(clock ratelimit.Clock) MemoryOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewMemoryStore creates a new in-memory store. Without options it uses
// sliding window guards on the wall clock.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		shards:   make([]*shard, defaultShardCount),
		seed:     maphash.MakeSeed(),
		now:      time.Now,
		ttl:      defaultEntryTTL,
		interval: defaultCleanupInterval,
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.factory == nil {
		clock := s.now
		s.factory = func() ratelimit.Guard { return ratelimit.NewSlidingWindowWithClock(clock) }
	}

	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*entry)}
	}

	s.cleanup = time.NewTicker(s.interval)
	go s.startCleanup()

	return s
}

func (s *MemoryStore) shardFor(key string) *shard {
	h := maphash.String(s.seed, key)
	return s.shards[h%uint64(len(s.shards))]
}

// GetOrCreate implements Store.
func (s *MemoryStore) GetOrCreate(ctx context.Context, key string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrInvalidKey
	}

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrStoreClosed
	}

	sh := s.shardFor(key)

	sh.mu.RLock()
	e, ok := sh.entries[key]
	sh.mu.RUnlock()
	if ok {
		return &memoryHandle{store: s, entry: e}, nil
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e, ok = sh.entries[key]; !ok {
		e = &entry{guard: s.factory(), lastSeen: s.now()}
		sh.entries[key] = e
	}

	return &memoryHandle{store: s, entry: e}, nil
}

// Close implements Store.
// Close is idempotent - calling it multiple times is safe.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.cleanup.Stop()
	close(s.done)

	return nil
}

// Ping reports whether the store is open.
func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// startCleanup periodically removes idle entries.
func (s *MemoryStore) startCleanup() {
	for {
		select {
		case <-s.cleanup.C:
			s.cleanupExpired()
		case <-s.done:
			return
		}
	}
}

// cleanupExpired removes entries idle for longer than the TTL whose guard
// holds no live state. An entry whose lock is held is in use and is skipped.
func (s *MemoryStore) cleanupExpired() {
	now := s.now()
	cutoff := now.Add(-s.ttl)

	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			if !e.mu.TryLock() {
				continue
			}
			if e.lastSeen.Before(cutoff) && !e.live(now) {
				delete(sh.entries, key)
			}
			e.mu.Unlock()
		}
		sh.mu.Unlock()
	}
}

// live reports whether evicting e would lose state, i.e. its window has
// not ended yet. Guards without usage information are never live.
// The caller holds e.mu.
func (e *entry) live(now time.Time) bool {
	usage, ok := e.guard.(ratelimit.Usage)
	if !ok {
		return false
	}
	return !now.After(usage.ResetAt())
}

// Size returns the number of entries in the store.
func (s *MemoryStore) Size() int {
	count := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		count += len(sh.entries)
		sh.mu.RUnlock()
	}
	return count
}

type memoryHandle struct {
	store *MemoryStore
	entry *entry
}

// Verify implements Handle.
func (h *memoryHandle) Verify(ctx context.Context, quota ratelimit.Quota) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := quota.Validate(); err != nil {
		return Result{}, err
	}

	h.entry.mu.Lock()
	defer h.entry.mu.Unlock()

	res := Result{
		Allowed: h.entry.guard.Verify(quota),
		Limit:   quota.Burst,
	}

	now := h.store.now()
	h.entry.lastSeen = now

	if usage, ok := h.entry.guard.(ratelimit.Usage); ok {
		res.Remaining = usage.Remaining(quota)
		res.ResetAfter = nonNegative(usage.ResetAt().Sub(now))
	}

	return res, nil
}
