// Package cache defines the search-result cache used in front of the
// retrieval path. Entries are keyed by query plus result count and the
// whole cache is invalidated when the index is rebuilt.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache stores serialized search results.
type Cache interface {
	// Get returns the cached value for key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate discards all entries.
	Invalidate(ctx context.Context) error

	// Close releases resources.
	Close() error
}
