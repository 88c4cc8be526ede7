package services

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmedbally/astudio-task/internal/entities"
	"github.com/ahmedbally/astudio-task/internal/repositories"
	"github.com/ahmedbally/astudio-task/internal/services/eav"
)

func seedProjectAttributes(t *testing.T, s *testServices) {
	t.Helper()

	s.define(t, "priority", entities.TypeSelect, "low", "medium", "high")
	s.define(t, "launch_date", entities.TypeDate)
	s.define(t, "budget", entities.TypeNumber)
	s.define(t, "client", entities.TypeText)
}

func TestProjectService_CreateAndGet(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	seedProjectAttributes(t, s)

	created, err := s.projects.Create(ctx, ProjectInput{Name: "Apollo", Status: entities.ProjectActive}, map[string]interface{}{
		"priority":    "high",
		"launch_date": "2024-3-5",
		"budget":      "1500.50",
	})
	require.NoError(t, err)

	assert.Equal(t, "Apollo", created["name"])
	assert.Equal(t, int(entities.ProjectActive), created["status"])
	assert.Equal(t, "high", created["priority"])
	assert.Equal(t, "2024-03-05", created["launch_date"])
	assert.Equal(t, 1500.5, created["budget"])
	assert.NotContains(t, created, "client")

	got, err := s.projects.Get(ctx, created["id"].(int64))
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestProjectService_GetSelectedAttributes(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	seedProjectAttributes(t, s)

	created, err := s.projects.Create(ctx, ProjectInput{Name: "Apollo"}, map[string]interface{}{
		"priority": "high",
		"client":   "Acme",
	})
	require.NoError(t, err)

	got, err := s.projects.Get(ctx, created["id"].(int64), "client", "budget", "nonexistent")
	require.NoError(t, err)
	assert.Equal(t, "Apollo", got["name"])
	assert.Equal(t, "Acme", got["client"])
	assert.NotContains(t, got, "priority")
	assert.NotContains(t, got, "budget")
	assert.NotContains(t, got, "nonexistent")
}

func TestProjectService_CreateRemovesProjectWhenAttributesFail(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	seedProjectAttributes(t, s)

	values := &failingValues{AttributeValueRepository: s.values, okWrites: 1}
	projects := NewProjectService(s.projectRepo, eav.Deps{Registry: s.registry, Values: values})

	_, err := projects.Create(ctx, ProjectInput{Name: "Apollo"}, map[string]interface{}{
		"budget":   100,
		"client":   "Acme",
		"priority": "low",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	page, err := s.projects.List(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, page.Total, "a project without its attributes must not be kept")

	_, err = s.projectRepo.GetByID(ctx, values.owner.ID)
	assert.True(t, errors.Is(err, repositories.ErrNotFound))

	rows, err := s.values.FindAllForOwner(ctx, values.owner)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestProjectService_CreateRejectsBeforeWriting(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	seedProjectAttributes(t, s)

	tests := []struct {
		name    string
		attrs   map[string]interface{}
		wantErr error
	}{
		{name: "invalid select", attrs: map[string]interface{}{"priority": "urgent"}, wantErr: eav.ErrInvalidAttributeValue},
		{name: "invalid number", attrs: map[string]interface{}{"budget": "a lot"}, wantErr: eav.ErrInvalidAttributeValue},
		{name: "unknown attribute", attrs: map[string]interface{}{"nonexistent": "x"}, wantErr: eav.ErrUnknownAttribute},
		{name: "static field", attrs: map[string]interface{}{"name": "x"}, wantErr: ErrReservedName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.projects.Create(ctx, ProjectInput{Name: "Apollo"}, tt.attrs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.True(t, errors.Is(err, ErrInvalidArgument))
		})
	}

	_, err := s.projects.Create(ctx, ProjectInput{Name: ""}, nil)
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	page, err := s.projects.List(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, page.Total, "rejected requests create no project")
}

func TestProjectService_Update(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	seedProjectAttributes(t, s)

	created, err := s.projects.Create(ctx, ProjectInput{Name: "Apollo"}, map[string]interface{}{
		"priority": "low",
		"client":   "Acme",
	})
	require.NoError(t, err)
	id := created["id"].(int64)

	updated, err := s.projects.Update(ctx, id, &ProjectInput{Name: "Apollo 11", Status: entities.ProjectInactive}, map[string]interface{}{
		"priority": "high",
		"client":   nil,
		"budget":   7,
	})
	require.NoError(t, err)

	assert.Equal(t, "Apollo 11", updated["name"])
	assert.Equal(t, int(entities.ProjectInactive), updated["status"])
	assert.Equal(t, "high", updated["priority"])
	assert.Equal(t, float64(7), updated["budget"])
	assert.NotContains(t, updated, "client")

	// Attributes only
	updated, err = s.projects.Update(ctx, id, nil, map[string]interface{}{"launch_date": "2025/01/10"})
	require.NoError(t, err)
	assert.Equal(t, "Apollo 11", updated["name"])
	assert.Equal(t, "2025-01-10", updated["launch_date"])

	_, err = s.projects.Update(ctx, id, nil, map[string]interface{}{"priority": "urgent"})
	assert.True(t, errors.Is(err, eav.ErrInvalidAttributeValue))

	_, err = s.projects.Update(ctx, id+100, nil, nil)
	assert.True(t, errors.Is(err, repositories.ErrNotFound))
}

func TestProjectService_Delete(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	seedProjectAttributes(t, s)

	created, err := s.projects.Create(ctx, ProjectInput{Name: "Apollo"}, map[string]interface{}{"client": "Acme"})
	require.NoError(t, err)
	id := created["id"].(int64)

	require.NoError(t, s.projects.Delete(ctx, id))

	_, err = s.projects.Get(ctx, id)
	assert.True(t, errors.Is(err, repositories.ErrNotFound))

	rows, err := s.values.FindAllForOwner(ctx, entities.OwnerRef{Kind: entities.OwnerProject, ID: id})
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.True(t, errors.Is(s.projects.Delete(ctx, id), repositories.ErrNotFound))
}

func seedProjects(t *testing.T, s *testServices) {
	t.Helper()
	ctx := context.Background()
	seedProjectAttributes(t, s)

	fixtures := []struct {
		name  string
		attrs map[string]interface{}
	}{
		{name: "Apollo", attrs: map[string]interface{}{"priority": "low", "launch_date": "2024-03-05", "budget": 100}},
		{name: "Gemini", attrs: map[string]interface{}{"priority": "high", "launch_date": "2025-01-10"}},
		{name: "Mercury", attrs: map[string]interface{}{"priority": "medium", "client": "Acme"}},
		{name: "Skylab"},
	}
	for _, f := range fixtures {
		_, err := s.projects.Create(ctx, ProjectInput{Name: f.name, Status: entities.ProjectActive}, f.attrs)
		require.NoError(t, err)
	}
}

func pageNames(page *ProjectPage) []string {
	names := make([]string, 0, len(page.Projects))
	for _, p := range page.Projects {
		names = append(names, p["name"].(string))
	}
	return names
}

func TestProjectService_List(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	seedProjects(t, s)

	tests := []struct {
		name string
		req  *ListProjectsRequest
		want []string
	}{
		{name: "all", req: &ListProjectsRequest{}, want: []string{"Apollo", "Gemini", "Mercury", "Skylab"}},
		{name: "in", req: &ListProjectsRequest{Filters: map[string]string{"priority": "in:low,high"}}, want: []string{"Apollo", "Gemini"}},
		{name: "between", req: &ListProjectsRequest{Filters: map[string]string{"launch_date": "between:2024-01-01,2024-12-31"}}, want: []string{"Apollo"}},
		{name: "null", req: &ListProjectsRequest{Filters: map[string]string{"priority": "null:"}}, want: []string{"Skylab"}},
		{name: "unknown filter ignored", req: &ListProjectsRequest{Filters: map[string]string{"nonexistent": "x"}}, want: []string{"Apollo", "Gemini", "Mercury", "Skylab"}},
		{name: "has attribute", req: (&ListProjectsRequest{}).HasAttribute("launch_date"), want: []string{"Apollo", "Gemini"}},
		{name: "has all", req: (&ListProjectsRequest{}).HasAllAttributes("launch_date", "budget"), want: []string{"Apollo"}},
		{name: "has all unknown", req: (&ListProjectsRequest{}).HasAllAttributes("launch_date", "nonexistent"), want: []string{"Apollo", "Gemini"}},
		{name: "has any", req: (&ListProjectsRequest{}).HasAnyAttribute("budget", "client", "nonexistent"), want: []string{"Apollo", "Mercury"}},
		{name: "has any unknown", req: (&ListProjectsRequest{}).HasAnyAttribute("nonexistent"), want: []string{"Apollo", "Gemini", "Mercury", "Skylab"}},
		{name: "order desc", req: &ListProjectsRequest{OrderBy: "launch_date", Desc: true}, want: []string{"Gemini", "Apollo"}},
		{name: "order unknown", req: &ListProjectsRequest{OrderBy: "nonexistent"}, want: []string{"Apollo", "Gemini", "Mercury", "Skylab"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := s.projects.List(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pageNames(page))
			assert.Equal(t, int64(len(tt.want)), page.Total)
		})
	}
}

func TestProjectService_ListPaging(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	seedProjects(t, s)

	page, err := s.projects.List(ctx, &ListProjectsRequest{Page: 2, PerPage: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"Skylab"}, pageNames(page))
	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.PerPage)

	page, err = s.projects.List(ctx, &ListProjectsRequest{Page: -1, PerPage: 1000})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, MaxPerPage, page.PerPage)

	page, err = s.projects.List(ctx, &ListProjectsRequest{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPerPage, page.PerPage)

	// Dynamic attributes are part of every listed project
	assert.Equal(t, "low", page.Projects[0]["priority"])
	assert.Equal(t, float64(100), page.Projects[0]["budget"])
}
