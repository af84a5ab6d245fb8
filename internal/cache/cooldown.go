package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"discord-invite-tracker/internal/redis"

	"github.com/dgraph-io/ristretto"
)

// Cooldowns rate-limits actions per key. With a Redis client the window is
// shared across processes; otherwise it is kept in memory.
type Cooldowns struct {
	prefix string
	remote *redis.Client

	mu    sync.Mutex
	local *ristretto.Cache
	now   func() time.Time
}

func NewCooldowns(prefix string, remote *redis.Client) (*Cooldowns, error) {
	local, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cooldown cache: %w", err)
	}
	return &Cooldowns{prefix: prefix, remote: remote, local: local, now: time.Now}, nil
}

// Acquire starts a cooldown of length d for key. If one is already running it
// returns false and the time left.
func (c *Cooldowns) Acquire(ctx context.Context, key string, d time.Duration) (time.Duration, bool, error) {
	full := c.prefix + ":" + key
	if c.remote != nil {
		return c.remote.AcquireCooldown(ctx, full, d)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if val, ok := c.local.Get(full); ok {
		if until := val.(time.Time); c.now().Before(until) {
			return until.Sub(c.now()), false, nil
		}
	}
	c.local.SetWithTTL(full, c.now().Add(d), 1, d)
	c.local.Wait()
	return 0, true, nil
}

func (c *Cooldowns) Close() {
	c.local.Close()
}
