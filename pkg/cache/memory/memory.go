// Package memory provides an in-process cache.Cache with LRU eviction.
// Entries are lost when the process restarts.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/animadocs/ragd/pkg/cache"
)

// entry holds a cached value and its expiry.
type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
	lruElem   *list.Element
}

// Cache is an in-memory cache with LRU eviction and per-entry TTL.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	lruList    *list.List // front = most recently used
	maxEntries int        // 0 = unlimited
	now        func() time.Time
}

// Compile-time check that Cache implements cache.Cache.
var _ cache.Cache = (*Cache)(nil)

// New creates an in-memory cache. If maxEntries is 0, the cache grows
// without limit; otherwise the least recently used entry is evicted when
// the limit is reached.
func New(maxEntries int) *Cache {
	return &Cache{
		entries:    make(map[string]*entry),
		lruList:    list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the cached value for key, or cache.ErrMiss if the key is
// absent or expired. A hit moves the entry to the front of the LRU list.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.removeLocked(e)
		return nil, cache.ErrMiss
	}

	c.lruList.MoveToFront(e.lruElem)
	return e.value, nil
}

// Set stores value under key. A zero TTL means the entry never expires.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.lruList.MoveToFront(e.lruElem)
		return nil
	}

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
	e.lruElem = c.lruList.PushFront(e)
	c.entries[key] = e
	return nil
}

// Invalidate discards all entries.
func (c *Cache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.lruList.Init()
	return nil
}

// Close is a no-op.
func (c *Cache) Close() error { return nil }

func (c *Cache) removeLocked(e *entry) {
	c.lruList.Remove(e.lruElem)
	delete(c.entries, e.key)
}

func (c *Cache) evictOldestLocked() {
	oldest := c.lruList.Back()
	if oldest == nil {
		return
	}
	c.removeLocked(oldest.Value.(*entry))
}
