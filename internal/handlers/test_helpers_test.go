package handlers

import (
	"context"

	"github.com/ahmedbally/astudio-task/internal/entities"
	"github.com/ahmedbally/astudio-task/internal/services"
)

// Mock DefinitionService
type mockDefinitionService struct {
	createFunc func(ctx context.Context, def *entities.AttributeDefinition) error
	updateFunc func(ctx context.Context, def *entities.AttributeDefinition) error
	deleteFunc func(ctx context.Context, id int64) error
	listFunc   func(ctx context.Context) ([]*entities.AttributeDefinition, error)
}

func (m *mockDefinitionService) Create(ctx context.Context, def *entities.AttributeDefinition) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, def)
	}
	def.ID = 1
	return nil
}

func (m *mockDefinitionService) Update(ctx context.Context, def *entities.AttributeDefinition) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, def)
	}
	return nil
}

func (m *mockDefinitionService) Delete(ctx context.Context, id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockDefinitionService) Get(ctx context.Context, id int64) (*entities.AttributeDefinition, error) {
	return nil, nil
}

func (m *mockDefinitionService) GetByName(ctx context.Context, name string) (*entities.AttributeDefinition, error) {
	return nil, nil
}

func (m *mockDefinitionService) List(ctx context.Context) ([]*entities.AttributeDefinition, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

// Mock ProjectService
type mockProjectService struct {
	createFunc func(ctx context.Context, in services.ProjectInput, attrs map[string]interface{}) (map[string]interface{}, error)
	updateFunc func(ctx context.Context, id int64, in *services.ProjectInput, attrs map[string]interface{}) (map[string]interface{}, error)
	getFunc    func(ctx context.Context, id int64) (map[string]interface{}, error)
	attributes []string
	deleteFunc func(ctx context.Context, id int64) error
	listFunc   func(ctx context.Context, req *services.ListProjectsRequest) (*services.ProjectPage, error)
}

func (m *mockProjectService) Create(ctx context.Context, in services.ProjectInput, attrs map[string]interface{}) (map[string]interface{}, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, in, attrs)
	}
	return map[string]interface{}{"id": int64(1), "name": in.Name}, nil
}

func (m *mockProjectService) Update(ctx context.Context, id int64, in *services.ProjectInput, attrs map[string]interface{}) (map[string]interface{}, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, in, attrs)
	}
	return map[string]interface{}{"id": id}, nil
}

func (m *mockProjectService) Get(ctx context.Context, id int64, attributes ...string) (map[string]interface{}, error) {
	m.attributes = attributes
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return map[string]interface{}{"id": id}, nil
}

func (m *mockProjectService) Delete(ctx context.Context, id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockProjectService) List(ctx context.Context, req *services.ListProjectsRequest) (*services.ProjectPage, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, req)
	}
	return &services.ProjectPage{Page: 1, PerPage: services.DefaultPerPage}, nil
}
