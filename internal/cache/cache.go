package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"discord-invite-tracker/internal/redis"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache provides a multi-layer caching system with L1 (in-memory) and L2 (Redis)
type Cache struct {
	l1           *ristretto.Cache
	l2           *redis.Client
	singleflight singleflight.Group
	defaultTTL   time.Duration
	logger       *zap.Logger

	l1Hits   atomic.Uint64
	l1Misses atomic.Uint64
	l2Hits   atomic.Uint64
	l2Misses atomic.Uint64
}

// Config for cache initialization
type Config struct {
	L1MaxCost     int64         // Max cost in bytes for L1 cache (default: 10MB)
	L1NumCounters int64         // Number of keys to track frequency (default: 100k)
	DefaultTTL    time.Duration // Default TTL for cache entries
}

// New creates a cache. l2 may be nil, in which case only the in-memory layer
// is used.
func New(l2 *redis.Client, cfg Config, logger *zap.Logger) (*Cache, error) {
	if cfg.L1MaxCost == 0 {
		cfg.L1MaxCost = 10 << 20
	}
	if cfg.L1NumCounters == 0 {
		cfg.L1NumCounters = 100000
	}
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l1, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.L1NumCounters,
		MaxCost:     cfg.L1MaxCost,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create L1 cache: %w", err)
	}

	return &Cache{
		l1:         l1,
		l2:         l2,
		defaultTTL: cfg.DefaultTTL,
		logger:     logger,
	}, nil
}

// Get returns the bytes stored under key, falling back to L2 and then to
// fetch. Concurrent misses for the same key share one fetch.
func (c *Cache) Get(ctx context.Context, key string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if val, found := c.l1.Get(key); found {
		c.l1Hits.Add(1)
		return val.([]byte), nil
	}
	c.l1Misses.Add(1)

	if c.l2 != nil {
		val, found, err := c.l2.Get(ctx, key)
		if err != nil {
			c.logger.Warn("redis cache read failed", zap.String("key", key), zap.Error(err))
		}
		if found {
			c.l2Hits.Add(1)
			c.l1.SetWithTTL(key, val, int64(len(val)), c.defaultTTL)
			return val, nil
		}
		c.l2Misses.Add(1)
	}

	val, err, _ := c.singleflight.Do(key, func() (interface{}, error) {
		b, err := fetch(ctx)
		return b, err
	})
	if err != nil {
		return nil, err
	}

	b := val.([]byte)
	c.Set(ctx, key, b, c.defaultTTL)
	return b, nil
}

// Set stores a value in both L1 and L2 caches
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.l1.SetWithTTL(key, value, int64(len(value)), ttl)

	if c.l2 != nil {
		if err := c.l2.Set(ctx, key, value, ttl); err != nil {
			c.logger.Warn("redis cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// Delete removes a key from all cache layers
func (c *Cache) Delete(ctx context.Context, key string) {
	c.l1.Del(key)
	if c.l2 != nil {
		if err := c.l2.Del(ctx, key); err != nil {
			c.logger.Warn("redis cache delete failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// Stats returns cache performance metrics
func (c *Cache) Stats() Stats {
	l1Total := c.l1Hits.Load() + c.l1Misses.Load()
	l2Total := c.l2Hits.Load() + c.l2Misses.Load()

	var l1HitRate, l2HitRate float64
	if l1Total > 0 {
		l1HitRate = float64(c.l1Hits.Load()) / float64(l1Total)
	}
	if l2Total > 0 {
		l2HitRate = float64(c.l2Hits.Load()) / float64(l2Total)
	}

	return Stats{
		L1Hits:        c.l1Hits.Load(),
		L1Misses:      c.l1Misses.Load(),
		L1HitRate:     l1HitRate,
		L2Hits:        c.l2Hits.Load(),
		L2Misses:      c.l2Misses.Load(),
		L2HitRate:     l2HitRate,
		L1KeysAdded:   c.l1.Metrics.KeysAdded(),
		L1KeysEvicted: c.l1.Metrics.KeysEvicted(),
	}
}

// Stats holds cache performance data
type Stats struct {
	L1Hits        uint64
	L1Misses      uint64
	L1HitRate     float64
	L2Hits        uint64
	L2Misses      uint64
	L2HitRate     float64
	L1KeysAdded   uint64
	L1KeysEvicted uint64
}

// wait blocks until buffered L1 writes are applied.
func (c *Cache) wait() {
	c.l1.Wait()
}

// Close gracefully shuts down the cache
func (c *Cache) Close() {
	c.l1.Close()
}
