package sqlstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahmedbally/astudio-task/internal/entities"
	"github.com/ahmedbally/astudio-task/internal/infrastructure/database"
)

// setupTestDB opens a migrated SQLite database in a temporary directory
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.RunMigrations())
	return conn.DB
}

// testStores bundles the three repositories over one database
type testStores struct {
	db          *sql.DB
	definitions *DefinitionRepository
	values      *AttributeValueRepository
	projects    *ProjectRepository
}

func newTestStores(t *testing.T) *testStores {
	t.Helper()

	db := setupTestDB(t)
	return &testStores{
		db:          db,
		definitions: NewDefinitionRepository(db, SQLite).(*DefinitionRepository),
		values:      NewAttributeValueRepository(db, SQLite).(*AttributeValueRepository),
		projects:    NewProjectRepository(db, SQLite).(*ProjectRepository),
	}
}

func (s *testStores) createDefinition(t *testing.T, name string, typ entities.AttributeType, options ...string) *entities.AttributeDefinition {
	t.Helper()

	def := &entities.AttributeDefinition{Name: name, Type: typ, Options: options}
	require.NoError(t, s.definitions.Create(context.Background(), def))
	return def
}

func (s *testStores) createProject(t *testing.T, name string) *entities.Project {
	t.Helper()

	p := &entities.Project{Name: name, Status: entities.ProjectActive}
	require.NoError(t, s.projects.Create(context.Background(), p))
	return p
}

func (s *testStores) setValue(t *testing.T, def *entities.AttributeDefinition, p *entities.Project, value string) {
	t.Helper()

	_, err := s.values.Upsert(context.Background(), def.ID, p.Owner(), value)
	require.NoError(t, err)
}

func (s *testStores) countValues(t *testing.T) int {
	t.Helper()

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM attribute_values`).Scan(&n))
	return n
}
