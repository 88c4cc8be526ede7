// Package eav stores runtime-defined typed attributes of fixed-schema owners
// as entity-attribute-value rows.
package eav

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ahmedbally/astudio-task/internal/entities"
	"github.com/ahmedbally/astudio-task/internal/infrastructure/logger"
	"github.com/ahmedbally/astudio-task/internal/repositories"
	"github.com/ahmedbally/astudio-task/pkg/cache"
)

const (
	definitionsKey = "attribute_definitions"

	// DefaultRegistryTTL bounds how long a snapshot is served without a reload
	DefaultRegistryTTL = 5 * time.Minute
)

// DefinitionSet is an immutable snapshot of all attribute definitions.
// The definitions it returns are shared and must not be modified.
type DefinitionSet struct {
	byID   map[int64]*entities.AttributeDefinition
	byName map[string]*entities.AttributeDefinition
	all    []*entities.AttributeDefinition
}

// NewDefinitionSet indexes defs by id and name
func NewDefinitionSet(defs []*entities.AttributeDefinition) *DefinitionSet {
	s := &DefinitionSet{
		byID:   make(map[int64]*entities.AttributeDefinition, len(defs)),
		byName: make(map[string]*entities.AttributeDefinition, len(defs)),
		all:    make([]*entities.AttributeDefinition, 0, len(defs)),
	}
	for _, d := range defs {
		c := d.Clone()
		s.byID[c.ID] = c
		s.byName[c.Name] = c
		s.all = append(s.all, c)
	}
	return s
}

// ByID returns the definition with the given id
func (s *DefinitionSet) ByID(id int64) (*entities.AttributeDefinition, bool) {
	d, ok := s.byID[id]
	return d, ok
}

// ByName returns the definition with the given name
func (s *DefinitionSet) ByName(name string) (*entities.AttributeDefinition, bool) {
	d, ok := s.byName[name]
	return d, ok
}

// All returns the definitions in id order
func (s *DefinitionSet) All() []*entities.AttributeDefinition {
	return s.all
}

// Len returns the number of definitions
func (s *DefinitionSet) Len() int {
	return len(s.all)
}

// definitionOverhead approximates the fixed cost of one indexed definition
const definitionOverhead = 96

// SizeBytes estimates the memory held by the snapshot
func (s *DefinitionSet) SizeBytes() int64 {
	var n int64
	for _, d := range s.all {
		n += definitionOverhead + int64(len(d.Name)+len(d.Type))
		for _, o := range d.Options {
			n += int64(len(o))
		}
	}
	return n
}

// Registry serves attribute definitions from a cached snapshot.
// It is safe for concurrent use and is shared by every request.
type Registry struct {
	repo  repositories.DefinitionRepository
	cache cache.Cache[*DefinitionSet]
	ttl   time.Duration

	loadMu     sync.Mutex
	generation atomic.Uint64

	observe LoadObserver
	log     *zap.SugaredLogger
}

// LoadObserver is told about every snapshot read from storage
type LoadObserver func(definitions int, elapsed time.Duration)

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithTTL sets how long a loaded snapshot is served before it is reloaded
func WithTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		r.ttl = ttl
	}
}

// WithLoadObserver reports storage reads to fn
func WithLoadObserver(fn LoadObserver) RegistryOption {
	return func(r *Registry) {
		r.observe = fn
	}
}

// WithLogger sets the registry logger
func WithLogger(l *zap.SugaredLogger) RegistryOption {
	return func(r *Registry) {
		r.log = l
	}
}

// NewRegistry creates a registry over repo. A nil cache disables caching:
// every lookup reads the repository.
func NewRegistry(repo repositories.DefinitionRepository, c cache.Cache[*DefinitionSet], opts ...RegistryOption) *Registry {
	r := &Registry{
		repo:  repo,
		cache: c,
		ttl:   DefaultRegistryTTL,
		log:   logger.ComponentLogger("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load returns the current definition snapshot, reading the repository at
// most once per invalidation. Concurrent callers share a single load.
func (r *Registry) Load(ctx context.Context) (*DefinitionSet, error) {
	if set, ok := r.cached(ctx); ok {
		return set, nil
	}

	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	if set, ok := r.cached(ctx); ok {
		return set, nil
	}

	gen := r.generation.Load()
	start := time.Now()
	defs, err := r.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load attribute definitions")
	}
	set := NewDefinitionSet(defs)
	if r.observe != nil {
		r.observe(set.Len(), time.Since(start))
	}

	r.store(ctx, gen, set)

	logger.FromContext(ctx, r.log).Debugw("loaded attribute definitions", logger.FieldCount, set.Len())
	return set, nil
}

// store caches a snapshot read at generation gen. An Invalidate that lands
// before or during the Set makes it stale, so it is dropped again.
func (r *Registry) store(ctx context.Context, gen uint64, set *DefinitionSet) {
	if r.cache == nil || r.generation.Load() != gen {
		return
	}
	if err := r.cache.Set(ctx, definitionsKey, set, r.ttl); err != nil {
		r.log.Warnw("failed to cache attribute definitions", logger.FieldError, err)
		return
	}
	if r.generation.Load() != gen {
		if err := r.cache.Delete(ctx, definitionsKey); err != nil {
			r.log.Warnw("failed to drop stale attribute definitions", logger.FieldError, err)
		}
	}
}

func (r *Registry) cached(ctx context.Context) (*DefinitionSet, bool) {
	if r.cache == nil {
		return nil, false
	}
	return r.cache.Get(ctx, definitionsKey)
}

// ByID returns the definition with the given id. A storage failure is
// logged and reported as a miss.
func (r *Registry) ByID(ctx context.Context, id int64) (*entities.AttributeDefinition, bool) {
	set, err := r.Load(ctx)
	if err != nil {
		logger.FromContext(ctx, r.log).Errorw("attribute lookup failed", "id", id, logger.FieldError, err)
		return nil, false
	}
	return set.ByID(id)
}

// ByName returns the definition with the given name. A storage failure is
// logged and reported as a miss.
func (r *Registry) ByName(ctx context.Context, name string) (*entities.AttributeDefinition, bool) {
	set, err := r.Load(ctx)
	if err != nil {
		logger.FromContext(ctx, r.log).Errorw("attribute lookup failed", logger.FieldAttribute, name, logger.FieldError, err)
		return nil, false
	}
	return set.ByName(name)
}

// Invalidate drops the cached snapshot so the next lookup reloads it
func (r *Registry) Invalidate(ctx context.Context) {
	r.generation.Add(1)
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, definitionsKey); err != nil {
		r.log.Warnw("failed to invalidate attribute definitions", logger.FieldError, err)
	}
	logger.FromContext(ctx, r.log).Debugw("invalidated attribute definitions")
}

// Cache returns the snapshot cache, nil when caching is disabled
func (r *Registry) Cache() cache.Cache[*DefinitionSet] {
	return r.cache
}
