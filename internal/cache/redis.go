package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"dev.consensus.engine/internal/config"
)

// RedisClient is a thin JSON-aware wrapper around the shared go-redis
// client, giving TieredCache's L2 tier a small, test-friendly surface.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient builds a RedisClient from the engine's RedisConfig.
func NewRedisClient(cfg config.RedisConfig) *RedisClient {
	return &RedisClient{client: redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})}
}

// NewRedisClientFromClient wraps an already-constructed go-redis client,
// used in tests to point at a miniredis instance.
func NewRedisClientFromClient(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

// Raw returns the underlying go-redis client, for callers (TieredCache's
// constructor) that need the unwrapped type rather than this JSON-aware
// convenience layer.
func (r *RedisClient) Raw() *redis.Client {
	return r.client
}

// Set stores a JSON-serialized value with the given expiration.
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

// Get retrieves and deserializes a value. Returns redis.Nil on miss.
func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

// Delete removes a key.
func (r *RedisClient) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Keys returns all keys matching a glob pattern; used by invalidate(pattern).
func (r *RedisClient) Keys(ctx context.Context, pattern string) ([]string, error) {
	return r.client.Keys(ctx, pattern).Result()
}

// Client returns the raw go-redis client for advanced operations.
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// Ping checks Redis connectivity.
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisClient) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
