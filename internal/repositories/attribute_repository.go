package repositories

import (
	"context"

	"github.com/ahmedbally/astudio-task/internal/entities"
)

// AttributeValueRepository defines the interface for attribute value data access.
// At most one row exists per (attribute, owner kind, owner id).
type AttributeValueRepository interface {
	// Upsert creates or updates the value of an attribute for an owner in a
	// single atomic statement and returns the resulting row
	Upsert(ctx context.Context, attributeID int64, owner entities.OwnerRef, value string) (*entities.AttributeValue, error)

	// DeleteWhere removes the value of an attribute for an owner.
	// Returns the number of rows removed (0 or 1)
	DeleteWhere(ctx context.Context, attributeID int64, owner entities.OwnerRef) (int64, error)

	// FindAllForOwner retrieves every attribute value of an owner
	FindAllForOwner(ctx context.Context, owner entities.OwnerRef) ([]*entities.AttributeValue, error)

	// DeleteAllForOwner removes every attribute value of an owner
	DeleteAllForOwner(ctx context.Context, owner entities.OwnerRef) (int64, error)
}

// DefinitionRepository defines the interface for attribute definition data access
type DefinitionRepository interface {
	// List retrieves all definitions ordered by id
	List(ctx context.Context) ([]*entities.AttributeDefinition, error)

	// GetByID retrieves a definition, ErrNotFound if absent
	GetByID(ctx context.Context, id int64) (*entities.AttributeDefinition, error)

	// GetByName retrieves a definition by its unique name, ErrNotFound if absent
	GetByName(ctx context.Context, name string) (*entities.AttributeDefinition, error)

	// Create inserts a definition and sets its ID. ErrDuplicateName on name clash
	Create(ctx context.Context, def *entities.AttributeDefinition) error

	// Update replaces name, type and options of an existing definition
	Update(ctx context.Context, def *entities.AttributeDefinition) error

	// Delete removes a definition and, by cascade, its values
	Delete(ctx context.Context, id int64) error

	// CountValues returns the number of stored values for a definition
	CountValues(ctx context.Context, id int64) (int64, error)
}
