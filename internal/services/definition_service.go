package services

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ahmedbally/astudio-task/internal/entities"
	"github.com/ahmedbally/astudio-task/internal/infrastructure/logger"
	"github.com/ahmedbally/astudio-task/internal/repositories"
	"github.com/ahmedbally/astudio-task/internal/services/eav"
)

// DefinitionServiceInterface defines the interface for attribute administration
type DefinitionServiceInterface interface {
	Create(ctx context.Context, def *entities.AttributeDefinition) error
	Update(ctx context.Context, def *entities.AttributeDefinition) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*entities.AttributeDefinition, error)
	GetByName(ctx context.Context, name string) (*entities.AttributeDefinition, error)
	List(ctx context.Context) ([]*entities.AttributeDefinition, error)
}

// ChangeNotifier announces a definition change to other processes
type ChangeNotifier func(ctx context.Context, attribute string) error

// DefinitionService manages attribute definitions and keeps the registry current
type DefinitionService struct {
	repo     repositories.DefinitionRepository
	registry *eav.Registry
	notify   ChangeNotifier
	log      *zap.SugaredLogger
}

// NewDefinitionService creates a new DefinitionService. notify may be nil
// when only one process serves the database.
func NewDefinitionService(repo repositories.DefinitionRepository, registry *eav.Registry, notify ChangeNotifier) *DefinitionService {
	return &DefinitionService{
		repo:     repo,
		registry: registry,
		notify:   notify,
		log:      logger.ComponentLogger("definition_service"),
	}
}

// Create validates and stores a new definition
func (s *DefinitionService) Create(ctx context.Context, def *entities.AttributeDefinition) error {
	if err := s.validate(def); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, def); err != nil {
		return errors.Wrap(err, "failed to create attribute")
	}

	s.changed(ctx, "created", def.Name)
	return nil
}

// Update replaces name, type and options of a definition. The type cannot
// change while values exist; removing select options is allowed and does
// not touch stored values.
func (s *DefinitionService) Update(ctx context.Context, def *entities.AttributeDefinition) error {
	if err := s.validate(def); err != nil {
		return err
	}

	current, err := s.repo.GetByID(ctx, def.ID)
	if err != nil {
		return errors.Wrap(err, "failed to get attribute")
	}

	if current.Type != def.Type {
		n, err := s.repo.CountValues(ctx, def.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return errors.WithHintf(
				errors.Wrapf(ErrTypeChangeWithValues, "attribute %q has %d values", current.Name, n),
				"delete the values of %q before changing its type from %s to %s", current.Name, current.Type, def.Type)
		}
	}

	if err := s.repo.Update(ctx, def); err != nil {
		return errors.Wrap(err, "failed to update attribute")
	}

	s.changed(ctx, "updated", def.Name)
	return nil
}

// Delete removes a definition together with its values
func (s *DefinitionService) Delete(ctx context.Context, id int64) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return errors.Wrap(err, "failed to get attribute")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "failed to delete attribute")
	}

	s.changed(ctx, "deleted", current.Name)
	return nil
}

// Get retrieves a definition by id
func (s *DefinitionService) Get(ctx context.Context, id int64) (*entities.AttributeDefinition, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByName retrieves a definition by name
func (s *DefinitionService) GetByName(ctx context.Context, name string) (*entities.AttributeDefinition, error) {
	return s.repo.GetByName(ctx, name)
}

// List retrieves all definitions ordered by id
func (s *DefinitionService) List(ctx context.Context) ([]*entities.AttributeDefinition, error) {
	return s.repo.List(ctx)
}

func (s *DefinitionService) validate(def *entities.AttributeDefinition) error {
	def.Name = strings.TrimSpace(def.Name)
	if err := def.Validate(); err != nil {
		return invalidArgument(err)
	}
	if entities.IsStaticField(def.Name) {
		return invalidArgument(errors.Wrapf(ErrReservedName, "%q is a project field", def.Name))
	}
	return nil
}

// changed drops the local snapshot and tells other processes to do the same
func (s *DefinitionService) changed(ctx context.Context, action, name string) {
	s.registry.Invalidate(ctx)

	log := logger.FromContext(ctx, s.log)
	log.Infow("attribute "+action, logger.FieldAttribute, name)

	if s.notify == nil {
		return
	}
	if err := s.notify(ctx, name); err != nil {
		// Peers fall back to their cache TTL
		log.Warnw("failed to notify definition change", logger.FieldAttribute, name, logger.FieldError, err)
	}
}
