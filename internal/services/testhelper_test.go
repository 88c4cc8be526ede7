package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/ahmedbally/astudio-task/internal/entities"
	"github.com/ahmedbally/astudio-task/internal/infrastructure/database"
	"github.com/ahmedbally/astudio-task/internal/repositories"
	"github.com/ahmedbally/astudio-task/internal/repositories/sqlstore"
	"github.com/ahmedbally/astudio-task/internal/services/eav"
	"github.com/ahmedbally/astudio-task/pkg/cache/memorycache"
)

// recordingNotifier remembers the attribute names it was told about
type recordingNotifier struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (n *recordingNotifier) notify(_ context.Context, attribute string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.names = append(n.names, attribute)
	return n.err
}

// failingValues fails every Upsert after the first okWrites
type failingValues struct {
	repositories.AttributeValueRepository
	okWrites int
	owner    entities.OwnerRef
}

func (v *failingValues) Upsert(ctx context.Context, attributeID int64, owner entities.OwnerRef, value string) (*entities.AttributeValue, error) {
	v.owner = owner
	if v.okWrites == 0 {
		return nil, errors.New("disk full")
	}
	v.okWrites--
	return v.AttributeValueRepository.Upsert(ctx, attributeID, owner, value)
}

type testServices struct {
	definitions *DefinitionService
	projects    *ProjectService
	projectRepo repositories.ProjectRepository
	registry    *eav.Registry
	values      repositories.AttributeValueRepository
	notifier    *recordingNotifier
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()

	conn, err := database.OpenSQLite(filepath.Join(t.TempDir(), "services.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.RunMigrations())

	c, err := memorycache.New(&memorycache.Config[*eav.DefinitionSet]{
		MaxSizeBytes: 1 << 20,
		DefaultTTL:   eav.DefaultRegistryTTL,
	})
	require.NoError(t, err)

	defRepo := sqlstore.NewDefinitionRepository(conn.DB, sqlstore.SQLite)
	values := sqlstore.NewAttributeValueRepository(conn.DB, sqlstore.SQLite)
	registry := eav.NewRegistry(defRepo, c)
	notifier := &recordingNotifier{}
	projectRepo := sqlstore.NewProjectRepository(conn.DB, sqlstore.SQLite)

	return &testServices{
		definitions: NewDefinitionService(defRepo, registry, notifier.notify),
		projects:    NewProjectService(projectRepo, eav.Deps{Registry: registry, Values: values}),
		projectRepo: projectRepo,
		registry:    registry,
		values:      values,
		notifier:    notifier,
	}
}

func (s *testServices) define(t *testing.T, name string, typ entities.AttributeType, options ...string) *entities.AttributeDefinition {
	t.Helper()

	def := &entities.AttributeDefinition{Name: name, Type: typ, Options: options}
	require.NoError(t, s.definitions.Create(context.Background(), def))
	return def
}
