package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Config struct {
	Addr     string `json:"addr" yaml:"addr" env:"ADDR"`
	Password string `json:"password" yaml:"password" env:"PASSWORD"`
	DB       int    `json:"db" yaml:"db" env:"DB"`
	Network  string `json:"network" yaml:"network" env:"NETWORK"` // "tcp" or "unix" for socket path
}

// Enabled reports whether a server address was configured.
func (c Config) Enabled() bool {
	return c.Addr != ""
}

type Client struct {
	client *redis.Client
}

func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	network := "tcp"
	if cfg.Network != "" {
		network = cfg.Network
	}

	// If addr looks like a socket path, automatically use unix
	if len(cfg.Addr) > 0 && cfg.Addr[0] == '/' {
		network = "unix"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Network:      network,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		PoolTimeout:  4 * time.Second,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis connected", zap.String("network", network), zap.String("addr", cfg.Addr))
	return &Client{client: rdb}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns the value and false, without error, when the key is missing.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *Client) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

// Cooldowns

// AcquireCooldown starts a cooldown on key unless one is running, in which
// case it returns the time left.
func (c *Client) AcquireCooldown(ctx context.Context, key string, d time.Duration) (time.Duration, bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := c.client.SetNX(ctx, key, 1, d).Result()
		if err != nil {
			return 0, false, err
		}
		if ok {
			return 0, true, nil
		}
		ttl, err := c.client.TTL(ctx, key).Result()
		if err != nil {
			return 0, false, err
		}
		if ttl > 0 {
			return ttl, false, nil
		}
		// The key expired between SETNX and TTL.
	}
	return d, false, nil
}
