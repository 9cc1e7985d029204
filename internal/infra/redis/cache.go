// Package redis provides the optional Redis-backed response cache tier.
// Cache contents are advisory: on restart or Redis loss the system
// reconstructs with an empty cache.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DealAppSeo/hyperdag-router/internal/cache"
)

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Cache implements cache.Store on Redis, using native key expiry for TTL.
// Redis errors degrade to cache misses; they never fail a task.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func cacheKey(fingerprint string) string {
	return fmt.Sprintf("response_cache:%s", fingerprint)
}

// NewCache connects to Redis and returns a response cache store.
func NewCache(cfg Config, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{rdb: rdb, ttl: ttl}, nil
}

// Get fetches the entry for key; any Redis or decode error is a miss.
func (c *Cache) Get(ctx context.Context, key string) (cache.Entry, bool) {
	data, err := c.rdb.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("redis cache read failed", "error", err)
		}
		return cache.Entry{}, false
	}

	var e cache.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		slog.Warn("redis cache entry corrupt, dropping", "key", key, "error", err)
		c.rdb.Del(ctx, cacheKey(key))
		return cache.Entry{}, false
	}
	return e, true
}

// Set stores the entry with the configured TTL as the Redis expiry.
func (c *Cache) Set(ctx context.Context, key string, e cache.Entry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	data, err := json.Marshal(e)
	if err != nil {
		slog.Warn("redis cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(key), data, c.ttl).Err(); err != nil {
		slog.Warn("redis cache write failed", "key", key, "error", err)
	}
}

// Len reports the number of cached responses (advisory; scans the keyspace).
func (c *Cache) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var count int
	iter := c.rdb.Scan(ctx, 0, cacheKey("*"), 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
