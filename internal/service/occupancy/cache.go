package occupancy

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"busoptimizer/backend/internal/pkg/logger"
)

// Cache stores read-only report results for a short time. Keys are derived
// from the query filters only.
type Cache interface {
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Invalidate(ctx context.Context) error
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryCache is a process local Cache.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, entries: map[string]memoryEntry{}, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string, dst interface{}) (bool, error) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && !c.now().Before(entry.expires) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.data, dst); err != nil {
		return false, errors.Wrap(err, "decode cached value")
	}
	return true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encode cached value")
	}

	c.mu.Lock()
	c.entries[key] = memoryEntry{data: data, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	c.entries = map[string]memoryEntry{}
	c.mu.Unlock()
	return nil
}

// RedisCache shares cached reports between api instances.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "redis get")
	}
	if err = json.Unmarshal(data, dst); err != nil {
		return false, errors.Wrap(err, "decode cached value")
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encode cached value")
	}
	return errors.Wrap(c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(), "redis set")
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "redis scan")
	}
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrap(c.client.Del(ctx, keys...).Err(), "redis del")
}

// CachedAggregator serves read endpoints through an owned Cache.
type CachedAggregator struct {
	*Aggregator
	cache Cache
	log   logger.Logger
}

func NewCachedAggregator(agg *Aggregator, cache Cache, log logger.Logger) *CachedAggregator {
	return &CachedAggregator{Aggregator: agg, cache: cache, log: log.WithComponent("occupancy-cache")}
}

func (c *CachedAggregator) Occupancy(ctx context.Context, q Query) (Report, error) {
	var report Report
	key := "occupancy:" + q.Key()
	if c.lookup(ctx, key, &report) {
		return report, nil
	}

	report, err := c.Aggregator.Occupancy(ctx, q)
	if err != nil {
		return Report{}, err
	}
	c.store(ctx, key, report)
	return report, nil
}

func (c *CachedAggregator) Filters(ctx context.Context) (FilterOptions, error) {
	var opts FilterOptions
	if c.lookup(ctx, "filters", &opts) {
		return opts, nil
	}

	opts, err := c.Aggregator.Filters(ctx)
	if err != nil {
		return FilterOptions{}, err
	}
	c.store(ctx, "filters", opts)
	return opts, nil
}

// Invalidate drops every cached result. Call it after any write commits.
func (c *CachedAggregator) Invalidate(ctx context.Context) {
	if err := c.cache.Invalidate(ctx); err != nil {
		c.log.WithError(err).Warn("cache invalidation failed")
	}
}

func (c *CachedAggregator) lookup(ctx context.Context, key string, dst interface{}) bool {
	ok, err := c.cache.Get(ctx, key, dst)
	if err != nil {
		c.log.WithError(err).Warn("cache read failed")
		return false
	}
	return ok
}

func (c *CachedAggregator) store(ctx context.Context, key string, value interface{}) {
	if err := c.cache.Set(ctx, key, value); err != nil {
		c.log.WithError(err).Warn("cache write failed")
	}
}
