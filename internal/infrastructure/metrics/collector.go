package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/ahmedbally/astudio-task/pkg/cache"
)

// Collector aggregates in-process counters for the attribute service:
// per-method RPC outcomes, attribute registry loads and the registry cache.
type Collector struct {
	methods sync.Map // full method -> *methodStats

	registryLoads       atomic.Uint64
	registryDefinitions atomic.Int64
	registryLoadNanos   atomic.Int64

	cache CacheSource
}

// CacheSource is the part of a cache the collector reads statistics from
type CacheSource interface {
	Metrics() *cache.Metrics
}

// sizedCache is implemented by caches that can report their occupancy
type sizedCache interface {
	Len() int
	Size() int64
}

type methodStats struct {
	requests atomic.Uint64
	errors   atomic.Uint64

	mu      sync.Mutex
	seconds float64
}

// CacheMetrics is a snapshot of the registry cache
type CacheMetrics struct {
	Hits        uint64
	Misses      uint64
	HitRate     float64
	KeysCurrent int64
	MemoryBytes int64
	Evictions   uint64
}

// APIMetrics is a snapshot of RPC counters keyed by full method name
type APIMetrics struct {
	RequestCounts        map[string]uint64
	ErrorCounts          map[string]uint64
	TotalDurationSeconds map[string]float64
}

// RegistryMetrics is a snapshot of attribute registry loads
type RegistryMetrics struct {
	Loads           uint64
	Definitions     int64
	LastLoadSeconds float64
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{}
}

// SetCache attaches the registry cache whose statistics are reported
func (c *Collector) SetCache(cache CacheSource) {
	c.cache = cache
}

// ObserveCall records one finished RPC. Any code other than OK counts as an error.
func (c *Collector) ObserveCall(method string, code codes.Code, elapsed time.Duration) {
	s := c.stats(method)
	s.requests.Add(1)
	if code != codes.OK {
		s.errors.Add(1)
	}
	s.mu.Lock()
	s.seconds += elapsed.Seconds()
	s.mu.Unlock()
}

// RecordRegistryLoad records a registry snapshot read from storage
func (c *Collector) RecordRegistryLoad(definitions int, elapsed time.Duration) {
	c.registryLoads.Add(1)
	c.registryDefinitions.Store(int64(definitions))
	c.registryLoadNanos.Store(int64(elapsed))
}

func (c *Collector) stats(method string) *methodStats {
	if s, ok := c.methods.Load(method); ok {
		return s.(*methodStats)
	}
	s, _ := c.methods.LoadOrStore(method, &methodStats{})
	return s.(*methodStats)
}

// GetCacheMetrics returns the registry cache statistics, zero without a cache
func (c *Collector) GetCacheMetrics() *CacheMetrics {
	out := &CacheMetrics{}
	if c.cache == nil {
		return out
	}
	m := c.cache.Metrics()
	if m == nil {
		return out
	}

	out.Hits = m.Hits
	out.Misses = m.Misses
	out.HitRate = m.HitRate()
	out.Evictions = m.KeysEvicted
	if sized, ok := c.cache.(sizedCache); ok {
		out.KeysCurrent = int64(sized.Len())
		out.MemoryBytes = sized.Size()
	}
	return out
}

// GetAPIMetrics returns the per-method RPC counters
func (c *Collector) GetAPIMetrics() *APIMetrics {
	out := &APIMetrics{
		RequestCounts:        map[string]uint64{},
		ErrorCounts:          map[string]uint64{},
		TotalDurationSeconds: map[string]float64{},
	}
	c.methods.Range(func(key, value interface{}) bool {
		method, s := key.(string), value.(*methodStats)
		out.RequestCounts[method] = s.requests.Load()
		if n := s.errors.Load(); n > 0 {
			out.ErrorCounts[method] = n
		}
		s.mu.Lock()
		out.TotalDurationSeconds[method] = s.seconds
		s.mu.Unlock()
		return true
	})
	return out
}

// GetRegistryMetrics returns the registry load counters
func (c *Collector) GetRegistryMetrics() *RegistryMetrics {
	return &RegistryMetrics{
		Loads:           c.registryLoads.Load(),
		Definitions:     c.registryDefinitions.Load(),
		LastLoadSeconds: time.Duration(c.registryLoadNanos.Load()).Seconds(),
	}
}
