package repositories

import (
	"context"

	"github.com/ahmedbally/astudio-task/internal/entities"
)

// ProjectQuery defines filter, ordering and paging criteria for listing projects
type ProjectQuery struct {
	Predicates []AttributePredicate
	HasAny     []int64         // Owner has a value for at least one of these attributes
	OrderBy    *AttributeOrder // nil = order by id
	Limit      int             // 0 = no limit
	Offset     int
}

// ProjectRepository defines the interface for project (attribute owner) data access
type ProjectRepository interface {
	// Create inserts a project and sets its ID and timestamps
	Create(ctx context.Context, project *entities.Project) error

	// Update saves name and status of an existing project
	Update(ctx context.Context, project *entities.Project) error

	// GetByID retrieves a project that is not deleted, ErrNotFound if absent
	GetByID(ctx context.Context, id int64) (*entities.Project, error)

	// Delete soft-deletes a project and removes its attribute values
	Delete(ctx context.Context, id int64) error

	// List retrieves projects matching the query and the total match count
	List(ctx context.Context, query *ProjectQuery) ([]*entities.Project, int64, error)
}
