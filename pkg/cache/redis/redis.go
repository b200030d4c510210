// Package redis provides a cache.Cache backed by Redis, for deployments
// where multiple replicas should share the search-result cache.
//
// Invalidation is namespace-based: every key embeds a generation counter,
// and Invalidate bumps the counter so old entries become unreachable and
// age out via their TTLs. This avoids scanning the keyspace.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/animadocs/ragd/pkg/cache"
)

const (
	keyPrefix     = "ragd:search:"
	generationKey = "ragd:search:generation"
)

// Cache is a Redis-backed cache.Cache.
type Cache struct {
	client *goredis.Client
}

// Compile-time check that Cache implements cache.Cache.
var _ cache.Cache = (*Cache)(nil)

// New creates a Redis cache and verifies connectivity.
func New(ctx context.Context, addr, password string, db int) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &Cache{client: client}, nil
}

// Get returns the cached value for key, or cache.ErrMiss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	full, err := c.namespacedKey(ctx, key)
	if err != nil {
		return nil, err
	}
	val, err := c.client.Get(ctx, full).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// Set stores value under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	full, err := c.namespacedKey(ctx, key)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, full, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate bumps the generation counter, making all existing entries
// unreachable.
func (c *Cache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}

// Close releases the client connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping verifies the Redis connection; used by health checks.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) namespacedKey(ctx context.Context, key string) (string, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return "", fmt.Errorf("redis generation lookup: %w", err)
	}
	return fmt.Sprintf("%s%d:%s", keyPrefix, gen, key), nil
}
