// Package memorycache is an in-process, size-bounded LRU implementation of cache.Cache.
package memorycache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/ahmedbally/astudio-task/pkg/cache"
)

// defaultEntrySize is charged per value when Config.SizeOf is nil
const defaultEntrySize = 100

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	size      int64
}

// Cache is an LRU cache bounded by the estimated byte size of its entries
type Cache[V any] struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front is most recently used

	maxSize int64
	used    int64
	ttl     time.Duration
	sizeOf  func(V) int64

	countStats bool
	stats      cache.Metrics

	now func() time.Time
}

// Config configures a Cache
type Config[V any] struct {
	// MaxSizeBytes bounds the summed entry sizes; the least recently used
	// entries are evicted past it.
	MaxSizeBytes int64

	// DefaultTTL applies when Set is called with a zero ttl
	DefaultTTL time.Duration

	EnableMetrics bool

	// SizeOf estimates a value's size in bytes
	SizeOf func(V) int64
}

var _ cache.Cache[string] = (*Cache[string])(nil)

// New creates an empty cache
func New[V any](config *Config[V]) (*Cache[V], error) {
	c := &Cache[V]{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		maxSize:    config.MaxSizeBytes,
		ttl:        config.DefaultTTL,
		sizeOf:     config.SizeOf,
		countStats: config.EnableMetrics,
		now:        time.Now,
	}
	if c.sizeOf == nil {
		c.sizeOf = func(V) int64 { return defaultEntrySize }
	}
	return c, nil
}

// Get returns the value for key and marks it most recently used
func (c *Cache[V]) Get(_ context.Context, key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry[V])
		if !c.now().After(ent.expiresAt) {
			c.order.MoveToFront(elem)
			c.count(&c.stats.Hits)
			return ent.value, true
		}
		c.remove(elem)
	}

	c.count(&c.stats.Misses)
	var zero V
	return zero, false
}

// Set stores value under key, evicting older entries when over capacity.
// The entry just written is never evicted.
func (c *Cache[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	} else {
		c.count(&c.stats.KeysAdded)
	}

	ent := &entry[V]{
		key:       key,
		value:     value,
		expiresAt: c.now().Add(ttl),
		size:      int64(len(key)) + c.sizeOf(value),
	}
	c.items[key] = c.order.PushFront(ent)
	c.used += ent.size

	for c.used > c.maxSize && c.order.Len() > 1 {
		c.remove(c.order.Back())
		c.count(&c.stats.KeysEvicted)
	}
	return nil
}

// Delete drops key if present
func (c *Cache[V]) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
	return nil
}

// Close is a no-op
func (c *Cache[V]) Close() error {
	return nil
}

// Metrics returns a copy of the counters, all zero when metrics are disabled
func (c *Cache[V]) Metrics() *cache.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.stats
	return &m
}

// Len returns the number of entries, expired ones included until touched
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Size returns the summed entry sizes in bytes
func (c *Cache[V]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// count increments a counter; callers hold mu
func (c *Cache[V]) count(n *uint64) {
	if c.countStats {
		*n++
	}
}

// remove unlinks elem; callers hold mu
func (c *Cache[V]) remove(elem *list.Element) {
	ent := c.order.Remove(elem).(*entry[V])
	delete(c.items, ent.key)
	c.used -= ent.size
}
