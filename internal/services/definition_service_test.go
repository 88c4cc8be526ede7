package services

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmedbally/astudio-task/internal/entities"
	"github.com/ahmedbally/astudio-task/internal/repositories"
)

func TestDefinitionService_CreateInvalidatesAndNotifies(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	// Prime the registry so a stale snapshot would hide the new attribute
	_, ok := s.registry.ByName(ctx, "priority")
	require.False(t, ok)

	def := s.define(t, " priority ", entities.TypeSelect, "low", "high")
	assert.Equal(t, "priority", def.Name)
	assert.NotZero(t, def.ID)

	got, ok := s.registry.ByName(ctx, "priority")
	require.True(t, ok)
	assert.Equal(t, def.ID, got.ID)
	assert.Equal(t, []string{"priority"}, s.notifier.names)
}

func TestDefinitionService_CreateValidation(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	s.define(t, "client", entities.TypeText)

	tests := []struct {
		name    string
		def     *entities.AttributeDefinition
		wantErr error
	}{
		{name: "empty name", def: &entities.AttributeDefinition{Name: " ", Type: entities.TypeText}, wantErr: ErrInvalidArgument},
		{name: "long name", def: &entities.AttributeDefinition{Name: strings.Repeat("x", 256), Type: entities.TypeText}, wantErr: ErrInvalidArgument},
		{name: "select without options", def: &entities.AttributeDefinition{Name: "priority", Type: entities.TypeSelect}, wantErr: ErrInvalidArgument},
		{name: "duplicate options", def: &entities.AttributeDefinition{Name: "priority", Type: entities.TypeSelect, Options: []string{"a", "a"}}, wantErr: ErrInvalidArgument},
		{name: "options on text", def: &entities.AttributeDefinition{Name: "notes", Type: entities.TypeText, Options: []string{"a"}}, wantErr: ErrInvalidArgument},
		{name: "reserved name", def: &entities.AttributeDefinition{Name: "status", Type: entities.TypeText}, wantErr: ErrReservedName},
		{name: "duplicate name", def: &entities.AttributeDefinition{Name: "client", Type: entities.TypeText}, wantErr: repositories.ErrDuplicateName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.definitions.Create(ctx, tt.def)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestDefinitionService_UpdateTypeChange(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	budget := s.define(t, "budget", entities.TypeNumber)

	// No values yet: the type may change
	budget.Type = entities.TypeText
	require.NoError(t, s.definitions.Update(ctx, budget))

	project, err := s.projects.Create(ctx, ProjectInput{Name: "Apollo"}, map[string]interface{}{"budget": "lots"})
	require.NoError(t, err)
	require.Equal(t, "lots", project["budget"])

	budget.Type = entities.TypeNumber
	err = s.definitions.Update(ctx, budget)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTypeChangeWithValues))
	assert.NotEmpty(t, errors.GetAllHints(err))

	stored, err := s.definitions.Get(ctx, budget.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TypeText, stored.Type)
}

func TestDefinitionService_UpdateOptionsAndName(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	priority := s.define(t, "priority", entities.TypeSelect, "low", "high", "critical")

	_, err := s.projects.Create(ctx, ProjectInput{Name: "Apollo"}, map[string]interface{}{"priority": "critical"})
	require.NoError(t, err)

	priority.Name = "urgency"
	priority.Options = []string{"low", "high"}
	require.NoError(t, s.definitions.Update(ctx, priority))

	_, ok := s.registry.ByName(ctx, "priority")
	assert.False(t, ok)
	got, ok := s.registry.ByName(ctx, "urgency")
	require.True(t, ok)
	assert.Equal(t, []string{"low", "high"}, got.Options)
	assert.Equal(t, []string{"priority", "urgency"}, s.notifier.names)
}

func TestDefinitionService_DeleteCascades(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	client := s.define(t, "client", entities.TypeText)

	project, err := s.projects.Create(ctx, ProjectInput{Name: "Apollo"}, map[string]interface{}{"client": "Acme"})
	require.NoError(t, err)

	require.NoError(t, s.definitions.Delete(ctx, client.ID))

	_, ok := s.registry.ByName(ctx, "client")
	assert.False(t, ok)

	got, err := s.projects.Get(ctx, project["id"].(int64))
	require.NoError(t, err)
	assert.NotContains(t, got, "client")

	err = s.definitions.Delete(ctx, client.ID)
	assert.True(t, errors.Is(err, repositories.ErrNotFound))
}

func TestDefinitionService_NotifyFailureIsNotFatal(t *testing.T) {
	s := newTestServices(t)
	s.notifier.err = errors.New("connection reset")

	s.define(t, "client", entities.TypeText)
	_, ok := s.registry.ByName(context.Background(), "client")
	assert.True(t, ok)
}

func TestDefinitionService_WithoutNotifier(t *testing.T) {
	s := newTestServices(t)
	svc := NewDefinitionService(s.definitions.repo, s.registry, nil)

	require.NoError(t, svc.Create(context.Background(), &entities.AttributeDefinition{Name: "client", Type: entities.TypeText}))
	defs, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, defs, 1)
}
