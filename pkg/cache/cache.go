// Package cache defines the snapshot cache used by the attribute registry.
package cache

import (
	"context"
	"time"
)

// Cache stores values of type V under string keys until their TTL passes.
// Implementations are safe for concurrent use.
type Cache[V any] interface {
	// Get returns the live value for key. Expired entries are misses.
	Get(ctx context.Context, key string) (V, bool)

	// Set stores value for ttl, or for the cache default when ttl is zero
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	Delete(ctx context.Context, key string) error
	Close() error

	// Metrics returns a copy of the hit and eviction counters
	Metrics() *Metrics
}

// Metrics counts cache activity since creation
type Metrics struct {
	Hits        uint64
	Misses      uint64
	KeysAdded   uint64
	KeysEvicted uint64
}

// Lookups returns the number of Get calls counted
func (m *Metrics) Lookups() uint64 {
	return m.Hits + m.Misses
}

// HitRate returns Hits/Lookups, 0 before the first lookup
func (m *Metrics) HitRate() float64 {
	if m.Lookups() == 0 {
		return 0
	}
	return float64(m.Hits) / float64(m.Lookups())
}
