// internal/marketdata/cache.go
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rovshanmuradov/memeswap/internal/domain"
)

// DefaultCacheTTL bounds request volume to the market provider.
const DefaultCacheTTL = 2 * time.Minute

// Cache stores normalized snapshots for a short TTL.
type Cache interface {
	Get(ctx context.Context, key string) (*domain.MarketSnapshot, bool)
	Set(ctx context.Context, key string, snap domain.MarketSnapshot) error
}

type memoryEntry struct {
	snap    domain.MarketSnapshot
	expires time.Time
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	sweepAt int
	now     func() time.Time
}

// minSweepSize is the map size below which expired entries are left in place.
const minSweepSize = 256

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		sweepAt: minSweepSize,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*domain.MarketSnapshot, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expires) {
		return nil, false
	}
	snap := e.snap
	return &snap, true
}

func (c *MemoryCache) Set(_ context.Context, key string, snap domain.MarketSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if len(c.entries) >= c.sweepAt {
		c.sweepLocked(now)
	}
	c.entries[key] = memoryEntry{snap: snap, expires: now.Add(c.ttl)}
	return nil
}

// sweepLocked drops expired entries. The next sweep waits until the map has
// doubled from what survived.
func (c *MemoryCache) sweepLocked(now time.Time) {
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	c.sweepAt = max(minSweepSize, 2*len(c.entries))
}

// RedisCache shares snapshots between API replicas.
//
// Key schema:
//
//	market:snapshot:{chain}:{ref} - JSON encoded MarketSnapshot, expires after ttl
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache connects to addr and pings it.
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisCache{rdb: rdb, ttl: ttl}, nil
}

func redisKey(key string) string { return "market:snapshot:" + key }

func (c *RedisCache) Get(ctx context.Context, key string) (*domain.MarketSnapshot, bool) {
	data, err := c.rdb.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var snap domain.MarketSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false
	}
	return &snap, true
}

func (c *RedisCache) Set(ctx context.Context, key string, snap domain.MarketSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, redisKey(key), data, c.ttl).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis: set snapshot %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
