package eav

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ahmedbally/astudio-task/internal/entities"
	"github.com/ahmedbally/astudio-task/pkg/cache"
)

func TestRegistry_LoadsOnceUntilInvalidated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	priority := env.define(t, "priority", entities.TypeSelect, "low", "high")

	before := env.definitions.lists.Load()
	for i := 0; i < 5; i++ {
		def, ok := env.registry.ByName(ctx, "priority")
		require.True(t, ok)
		assert.Equal(t, priority.ID, def.ID)

		def, ok = env.registry.ByID(ctx, priority.ID)
		require.True(t, ok)
		assert.Equal(t, "priority", def.Name)
	}
	assert.Equal(t, before+1, env.definitions.lists.Load(), "definitions must be read once")

	env.registry.Invalidate(ctx)
	_, err := env.registry.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+2, env.definitions.lists.Load())
}

func TestRegistry_SeesDefinitionsAfterInvalidate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, ok := env.registry.ByName(ctx, "budget")
	assert.False(t, ok)

	// Without invalidation the cached snapshot is still served
	require.NoError(t, env.definitions.Create(ctx, &entities.AttributeDefinition{Name: "budget", Type: entities.TypeNumber}))
	_, ok = env.registry.ByName(ctx, "budget")
	assert.False(t, ok)

	env.registry.Invalidate(ctx)
	def, ok := env.registry.ByName(ctx, "budget")
	require.True(t, ok)
	assert.Equal(t, entities.TypeNumber, def.Type)
}

func TestRegistry_UnknownIsMiss(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	def, ok := env.registry.ByName(ctx, "missing")
	assert.Nil(t, def)
	assert.False(t, ok)

	def, ok = env.registry.ByID(ctx, 999)
	assert.Nil(t, def)
	assert.False(t, ok)
}

func TestRegistry_StorageErrorIsMiss(t *testing.T) {
	env := newTestEnv(t)
	env.definitions.err = errors.New("connection refused")

	_, err := env.registry.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	def, ok := env.registry.ByName(context.Background(), "priority")
	assert.Nil(t, def)
	assert.False(t, ok)
}

func TestRegistry_ConcurrentLoadsShareOneRead(t *testing.T) {
	env := newTestEnv(t)
	env.define(t, "client", entities.TypeText)
	before := env.definitions.lists.Load()

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			set, err := env.registry.Load(ctx)
			if err != nil {
				return err
			}
			if _, ok := set.ByName("client"); !ok {
				return errors.New("client not in snapshot")
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, before+1, env.definitions.lists.Load())
}

// racingCache runs beforeSet once, ahead of the first Set
type racingCache struct {
	cache.Cache[*DefinitionSet]
	beforeSet func()
}

func (c *racingCache) Set(ctx context.Context, key string, value *DefinitionSet, ttl time.Duration) error {
	if fn := c.beforeSet; fn != nil {
		c.beforeSet = nil
		fn()
	}
	return c.Cache.Set(ctx, key, value, ttl)
}

func TestRegistry_InvalidateDuringCacheWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	racing := &racingCache{Cache: env.registry.Cache()}
	registry := NewRegistry(env.definitions, racing)
	racing.beforeSet = func() {
		require.NoError(t, env.definitions.Create(ctx, &entities.AttributeDefinition{Name: "budget", Type: entities.TypeNumber}))
		registry.Invalidate(ctx)
	}

	set, err := registry.Load(ctx)
	require.NoError(t, err)
	_, ok := set.ByName("budget")
	assert.False(t, ok, "the snapshot was read before budget existed")

	_, cached := racing.Get(ctx, definitionsKey)
	assert.False(t, cached, "a snapshot invalidated while being cached must not be kept")

	def, ok := registry.ByName(ctx, "budget")
	require.True(t, ok)
	assert.Equal(t, entities.TypeNumber, def.Type)
}

func TestRegistry_WithoutCacheReadsEveryTime(t *testing.T) {
	env := newTestEnv(t)
	registry := NewRegistry(env.definitions, nil)
	before := env.definitions.lists.Load()

	_, _ = registry.ByName(context.Background(), "a")
	_, _ = registry.ByName(context.Background(), "b")
	registry.Invalidate(context.Background())

	assert.Equal(t, before+2, env.definitions.lists.Load())
	assert.Nil(t, registry.Cache())
}

func TestRegistry_ReportsLoads(t *testing.T) {
	env := newTestEnv(t)
	env.define(t, "budget", entities.TypeNumber)

	var loads, last int
	registry := NewRegistry(env.definitions, nil, WithLoadObserver(func(definitions int, elapsed time.Duration) {
		loads++
		last = definitions
	}))

	_, err := registry.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, loads)
	assert.Equal(t, 1, last)
}

func TestDefinitionSet(t *testing.T) {
	defs := []*entities.AttributeDefinition{
		{ID: 1, Name: "priority", Type: entities.TypeSelect, Options: []string{"low"}},
		{ID: 2, Name: "budget", Type: entities.TypeNumber},
	}
	set := NewDefinitionSet(defs)

	assert.Equal(t, 2, set.Len())
	assert.Equal(t, "priority", set.All()[0].Name)

	// The snapshot is isolated from later changes to the input
	defs[0].Options[0] = "changed"
	def, ok := set.ByID(1)
	require.True(t, ok)
	assert.Equal(t, []string{"low"}, def.Options)

	_, ok = set.ByName("budget")
	assert.True(t, ok)
}

func TestDefinitionSet_SizeBytes(t *testing.T) {
	empty := NewDefinitionSet(nil)
	assert.Zero(t, empty.SizeBytes())

	set := NewDefinitionSet([]*entities.AttributeDefinition{
		{ID: 1, Name: "priority", Type: entities.TypeSelect, Options: []string{"low", "high"}},
	})
	assert.Equal(t, int64(definitionOverhead+len("priority")+len("select")+len("low")+len("high")), set.SizeBytes())
}
