package eav

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahmedbally/astudio-task/internal/entities"
	"github.com/ahmedbally/astudio-task/internal/infrastructure/database"
	"github.com/ahmedbally/astudio-task/internal/repositories"
	"github.com/ahmedbally/astudio-task/internal/repositories/sqlstore"
	"github.com/ahmedbally/astudio-task/pkg/cache/memorycache"
)

// countingDefinitions counts List calls of the wrapped repository
type countingDefinitions struct {
	repositories.DefinitionRepository
	lists atomic.Int32
	err   error
}

func (c *countingDefinitions) List(ctx context.Context) ([]*entities.AttributeDefinition, error) {
	c.lists.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.DefinitionRepository.List(ctx)
}

type testEnv struct {
	definitions *countingDefinitions
	values      repositories.AttributeValueRepository
	projects    repositories.ProjectRepository
	registry    *Registry
	deps        Deps
}

// newTestEnv wires a registry and holders over a migrated SQLite database
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn, err := database.OpenSQLite(filepath.Join(t.TempDir(), "eav.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.RunMigrations())

	c, err := memorycache.New(&memorycache.Config[*DefinitionSet]{
		MaxSizeBytes:  1 << 20,
		DefaultTTL:    DefaultRegistryTTL,
		EnableMetrics: true,
	})
	require.NoError(t, err)

	defs := &countingDefinitions{DefinitionRepository: sqlstore.NewDefinitionRepository(conn.DB, sqlstore.SQLite)}
	values := sqlstore.NewAttributeValueRepository(conn.DB, sqlstore.SQLite)
	registry := NewRegistry(defs, c)

	return &testEnv{
		definitions: defs,
		values:      values,
		projects:    sqlstore.NewProjectRepository(conn.DB, sqlstore.SQLite),
		registry:    registry,
		deps:        Deps{Registry: registry, Values: values},
	}
}

// define creates a definition and invalidates the registry like the admin path does
func (e *testEnv) define(t *testing.T, name string, typ entities.AttributeType, options ...string) *entities.AttributeDefinition {
	t.Helper()

	def := &entities.AttributeDefinition{Name: name, Type: typ, Options: options}
	require.NoError(t, e.definitions.Create(context.Background(), def))
	e.registry.Invalidate(context.Background())
	return def
}

func (e *testEnv) createProject(t *testing.T, name string) *entities.Project {
	t.Helper()

	p := &entities.Project{Name: name, Status: entities.ProjectActive}
	require.NoError(t, e.projects.Create(context.Background(), p))
	return p
}

func (e *testEnv) storedRows(t *testing.T, owner entities.OwnerRef) []*entities.AttributeValue {
	t.Helper()

	rows, err := e.values.FindAllForOwner(context.Background(), owner)
	require.NoError(t, err)
	return rows
}
