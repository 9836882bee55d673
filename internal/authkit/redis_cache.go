package authkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var errEmptyRedisURL = errors.New("redis_cache.empty_url")

// RedisCache is a KeyValueCache backed by Redis.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache parses redisURL, connects, and verifies the connection with PING.
func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("redis_cache.open: %w", errEmptyRedisURL)
	}
	options, parseErr := redis.ParseURL(redisURL)
	if parseErr != nil {
		return nil, fmt.Errorf("redis_cache.parse_url: %w", parseErr)
	}
	client := redis.NewClient(options)
	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis_cache.ping: %w", pingErr)
	}
	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// Set stores value under key with the given ttl; zero keeps the key without expiry.
func (cache *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := cache.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis_cache.set: %w", err)
	}
	return nil
}

// Get returns the value stored under key, reporting found=false for a missing key.
func (cache *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := cache.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis_cache.get: %w", err)
	}
	return value, true, nil
}

// Delete removes key.
func (cache *RedisCache) Delete(ctx context.Context, key string) error {
	if err := cache.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis_cache.delete: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (cache *RedisCache) Close() error {
	return cache.client.Close()
}
