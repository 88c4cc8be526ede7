package services

import (
	"context"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ahmedbally/astudio-task/internal/entities"
	"github.com/ahmedbally/astudio-task/internal/infrastructure/logger"
	"github.com/ahmedbally/astudio-task/internal/repositories"
	"github.com/ahmedbally/astudio-task/internal/services/eav"
)

const (
	// DefaultPerPage is the page size used when a listing does not set one
	DefaultPerPage = 15
	// MaxPerPage caps the page size of a listing
	MaxPerPage = 100
)

// ProjectServiceInterface defines the interface for project operations
type ProjectServiceInterface interface {
	Create(ctx context.Context, in ProjectInput, attrs map[string]interface{}) (map[string]interface{}, error)
	Update(ctx context.Context, id int64, in *ProjectInput, attrs map[string]interface{}) (map[string]interface{}, error)
	Get(ctx context.Context, id int64, attributes ...string) (map[string]interface{}, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, req *ListProjectsRequest) (*ProjectPage, error)
}

// ProjectInput holds the static fields of a project
type ProjectInput struct {
	Name   string
	Status entities.ProjectStatus
}

// ListProjectsRequest selects a page of projects.
// Filters maps attribute names to "operator:operand" expressions.
type ListProjectsRequest struct {
	Filters map[string]string
	HasAll  []string // Projects must have a value for every attribute
	HasAny  []string // Projects must have a value for at least one attribute
	OrderBy string   // Attribute name; empty orders by id
	Desc    bool
	Page    int // 1-based
	PerPage int
}

// HasAttribute restricts the listing to projects with a value for name
func (r *ListProjectsRequest) HasAttribute(name string) *ListProjectsRequest {
	r.HasAll = append(r.HasAll, name)
	return r
}

// HasAllAttributes restricts the listing to projects with a value for every name
func (r *ListProjectsRequest) HasAllAttributes(names ...string) *ListProjectsRequest {
	r.HasAll = append(r.HasAll, names...)
	return r
}

// HasAnyAttribute restricts the listing to projects with a value for at least one name
func (r *ListProjectsRequest) HasAnyAttribute(names ...string) *ListProjectsRequest {
	r.HasAny = append(r.HasAny, names...)
	return r
}

// ProjectPage is one page of serialized projects
type ProjectPage struct {
	Projects []map[string]interface{}
	Total    int64
	Page     int
	PerPage  int
}

// ProjectService manages projects and their dynamic attributes
type ProjectService struct {
	projects   repositories.ProjectRepository
	deps       eav.Deps
	translator *eav.Translator
	log        *zap.SugaredLogger
}

// NewProjectService creates a new ProjectService
func NewProjectService(projects repositories.ProjectRepository, deps eav.Deps) *ProjectService {
	return &ProjectService{
		projects:   projects,
		deps:       deps,
		translator: eav.NewTranslator(deps.Registry),
		log:        logger.ComponentLogger("project_service"),
	}
}

// Create inserts a project and stores its attributes once it has an ID.
// Attributes are validated up front so an invalid request creates nothing,
// and a project whose attributes cannot be stored is removed again.
func (s *ProjectService) Create(ctx context.Context, in ProjectInput, attrs map[string]interface{}) (map[string]interface{}, error) {
	if err := s.validateAttributes(ctx, attrs); err != nil {
		return nil, err
	}

	holder := eav.NewHolder(s.deps, entities.OwnerProject)
	if err := holder.SetMany(ctx, attrs); err != nil {
		return nil, err
	}

	project := &entities.Project{Name: strings.TrimSpace(in.Name), Status: in.Status}
	if err := project.Validate(); err != nil {
		return nil, invalidArgument(err)
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, errors.Wrap(err, "failed to create project")
	}

	if err := holder.Commit(ctx, project.ID); err != nil {
		s.discard(ctx, project, holder)
		return nil, errors.Wrapf(err, "failed to store attributes of project %d", project.ID)
	}

	logger.FromContext(ctx, s.log).Infow("project created",
		logger.FieldOwner, project.Owner().String(),
		logger.FieldCount, len(attrs))

	return holder.ToMapWithDynamic(ctx, project.Fields())
}

// discard undoes a Create whose attributes could not be committed
func (s *ProjectService) discard(ctx context.Context, project *entities.Project, holder *eav.Holder) {
	log := logger.FromContext(ctx, s.log).With(logger.FieldOwner, project.Owner().String())
	if _, err := holder.DeleteAll(ctx); err != nil {
		log.Errorw("failed to remove attributes of incomplete project", logger.FieldError, err)
	}
	if err := s.projects.Delete(ctx, project.ID); err != nil {
		log.Errorw("failed to remove incomplete project", logger.FieldError, err)
		return
	}
	log.Warnw("removed project whose attributes could not be stored")
}

// Update changes the static fields when in is non-nil and writes attrs.
// A nil attribute value removes the attribute.
func (s *ProjectService) Update(ctx context.Context, id int64, in *ProjectInput, attrs map[string]interface{}) (map[string]interface{}, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validateAttributes(ctx, attrs); err != nil {
		return nil, err
	}

	if in != nil {
		project.Name = strings.TrimSpace(in.Name)
		project.Status = in.Status
		if err := project.Validate(); err != nil {
			return nil, invalidArgument(err)
		}
		if err := s.projects.Update(ctx, project); err != nil {
			return nil, errors.Wrap(err, "failed to update project")
		}
	}

	values := make(map[string]interface{}, len(attrs))
	var removed []string
	for name, v := range attrs {
		if v == nil {
			removed = append(removed, name)
			continue
		}
		values[name] = v
	}
	sort.Strings(removed)

	holder := eav.AttachHolder(s.deps, project.Owner())
	if _, err := holder.DeleteMany(ctx, removed); err != nil {
		return nil, errors.Wrapf(err, "failed to remove attributes of project %d", id)
	}
	if err := holder.SetMany(ctx, values); err != nil {
		return nil, err
	}

	return holder.ToMapWithDynamic(ctx, project.Fields())
}

// Get returns a project with its dynamic attributes. When attributes are
// named, only those of them that have a value are included.
func (s *ProjectService) Get(ctx context.Context, id int64, attributes ...string) (map[string]interface{}, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	holder := eav.AttachHolder(s.deps, project.Owner())
	if len(attributes) == 0 {
		return holder.ToMapWithDynamic(ctx, project.Fields())
	}

	selected, err := holder.ByNames(ctx, attributes)
	if err != nil {
		return nil, err
	}
	out := project.Fields()
	for name, v := range selected {
		out[name] = v
	}
	return out, nil
}

// Delete removes a project and its attribute values
func (s *ProjectService) Delete(ctx context.Context, id int64) error {
	if err := s.projects.Delete(ctx, id); err != nil {
		return err
	}

	// The project row delete already removed the primary values; this
	// reaches value stores outside the project transaction, such as a mirror
	owner := entities.OwnerRef{Kind: entities.OwnerProject, ID: id}
	if _, err := eav.AttachHolder(s.deps, owner).DeleteAll(ctx); err != nil {
		return errors.Wrapf(err, "failed to delete attributes of project %d", id)
	}
	logger.FromContext(ctx, s.log).Infow("project deleted", logger.FieldOwner, owner.String())
	return nil
}

// List returns a page of projects matching the request
func (s *ProjectService) List(ctx context.Context, req *ListProjectsRequest) (*ProjectPage, error) {
	if req == nil {
		req = &ListProjectsRequest{}
	}
	page, perPage := normalizePaging(req.Page, req.PerPage)
	result := &ProjectPage{Projects: []map[string]interface{}{}, Page: page, PerPage: perPage}

	query := s.buildQuery(ctx, req)
	query.Limit = perPage
	query.Offset = (page - 1) * perPage

	projects, total, err := s.projects.List(ctx, query)
	if err != nil {
		return nil, err
	}
	result.Total = total

	for _, p := range projects {
		m, err := eav.AttachHolder(s.deps, p.Owner()).ToMapWithDynamic(ctx, p.Fields())
		if err != nil {
			return nil, err
		}
		result.Projects = append(result.Projects, m)
	}
	return result, nil
}

// buildQuery resolves names to attribute ids. Unknown names are skipped,
// so a scope naming only unknown attributes does not restrict the listing.
func (s *ProjectService) buildQuery(ctx context.Context, req *ListProjectsRequest) *repositories.ProjectQuery {
	log := logger.FromContext(ctx, s.log)
	query := &repositories.ProjectQuery{Predicates: s.translator.TranslateQuery(ctx, req.Filters)}

	for _, name := range req.HasAll {
		def, ok := s.deps.Registry.ByName(ctx, name)
		if !ok {
			log.Debugw("skipping scope on unknown attribute", logger.FieldAttribute, name)
			continue
		}
		query.Predicates = append(query.Predicates, repositories.AttributePredicate{AttributeID: def.ID, Op: repositories.OpNotNull})
	}

	for _, name := range req.HasAny {
		def, ok := s.deps.Registry.ByName(ctx, name)
		if !ok {
			log.Debugw("skipping scope on unknown attribute", logger.FieldAttribute, name)
			continue
		}
		query.HasAny = append(query.HasAny, def.ID)
	}

	if req.OrderBy != "" {
		if def, ok := s.deps.Registry.ByName(ctx, req.OrderBy); ok {
			query.OrderBy = &repositories.AttributeOrder{AttributeID: def.ID, Desc: req.Desc}
		} else {
			log.Debugw("ignoring order by unknown attribute", logger.FieldAttribute, req.OrderBy)
		}
	}

	return query
}

func (s *ProjectService) validateAttributes(ctx context.Context, attrs map[string]interface{}) error {
	for name := range attrs {
		if entities.IsStaticField(name) {
			return invalidArgument(errors.Wrapf(ErrReservedName, "%q is a project field", name))
		}
	}
	if err := eav.ValidateValues(ctx, s.deps.Registry, attrs); err != nil {
		return invalidArgument(err)
	}
	return nil
}

func normalizePaging(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}
