package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/pastebin/pkg/storage"
)

const pasteKeyPrefix = "paste:"

// RedisClient caches pastes by id in front of Postgres. The same client is
// shared with the distributed rate limiter and the health checker.
type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a new Redis client
func NewRedisClient(config storage.Config) (*RedisClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB > 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := config.PasteCacheTTL
	if ttl <= 0 {
		ttl = storage.DefaultConfig().PasteCacheTTL
	}

	return &RedisClient{client: client, ttl: ttl}, nil
}

// GetPaste returns a cached paste; ok is false on a miss
func (c *RedisClient) GetPaste(ctx context.Context, id string) (p storage.Paste, ok bool, err error) {
	key := pasteKeyPrefix + id

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return storage.Paste{}, false, nil
	} else if err != nil {
		return storage.Paste{}, false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(data, &p); err != nil {
		c.client.Del(ctx, key)
		return storage.Paste{}, false, fmt.Errorf("failed to unmarshal paste: %w", err)
	}

	return p, true, nil
}

// SetPaste stores a paste in cache
func (c *RedisClient) SetPaste(ctx context.Context, p storage.Paste) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal paste: %w", err)
	}
	return c.client.Set(ctx, pasteKeyPrefix+p.ID, data, c.ttl).Err()
}

// InvalidatePaste removes a paste from cache
func (c *RedisClient) InvalidatePaste(ctx context.Context, id string) error {
	return c.client.Del(ctx, pasteKeyPrefix+id).Err()
}

// Ping checks Redis connectivity
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetClient returns the underlying Redis client for the rate limiter and
// health checks
func (c *RedisClient) GetClient() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	return c.client.Close()
}
