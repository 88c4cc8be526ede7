package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ahmedbally/astudio-task/internal/entities"
	"github.com/ahmedbally/astudio-task/internal/repositories"
)

// ProjectRepository implements repositories.ProjectRepository on PostgreSQL or SQLite
type ProjectRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewProjectRepository creates a new SQL project repository
func NewProjectRepository(db *sql.DB, dialect Dialect) repositories.ProjectRepository {
	return &ProjectRepository{db: db, dialect: dialect, now: now}
}

// now returns the current time at the precision PostgreSQL stores
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Create inserts a project and sets its ID and timestamps
func (r *ProjectRepository) Create(ctx context.Context, project *entities.Project) error {
	if err := project.Validate(); err != nil {
		return errors.Wrap(err, "invalid project")
	}

	now := r.now()
	query := r.dialect.Rebind(`
		INSERT INTO projects (name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`)
	if err := r.db.QueryRowContext(ctx, query, project.Name, int(project.Status), now, now).Scan(&project.ID); err != nil {
		return errors.Wrap(err, "failed to create project")
	}

	project.CreatedAt = now
	project.UpdatedAt = now
	return nil
}

// Update saves name and status of an existing project
func (r *ProjectRepository) Update(ctx context.Context, project *entities.Project) error {
	if err := project.Validate(); err != nil {
		return errors.Wrap(err, "invalid project")
	}

	now := r.now()
	query := r.dialect.Rebind(`
		UPDATE projects
		SET name = ?, status = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`)
	result, err := r.db.ExecContext(ctx, query, project.Name, int(project.Status), now, project.ID)
	if err != nil {
		return errors.Wrap(err, "failed to update project")
	}
	if err := requireAffected(result, "project", project.ID); err != nil {
		return err
	}

	project.UpdatedAt = now
	return nil
}

// GetByID retrieves a project that is not deleted
func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*entities.Project, error) {
	query := r.dialect.Rebind(`SELECT ` + projectColumns + ` FROM projects p WHERE p.id = ? AND p.deleted_at IS NULL`)
	project, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(repositories.ErrNotFound, "project %d", id)
	}
	if err != nil {
		return nil, err
	}
	return project, nil
}

// Delete soft-deletes a project and removes its attribute values in one transaction
func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	query := r.dialect.Rebind(`UPDATE projects SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`)
	result, err := tx.ExecContext(ctx, query, r.now(), id)
	if err != nil {
		return errors.Wrap(err, "failed to delete project")
	}
	if err := requireAffected(result, "project", id); err != nil {
		return err
	}

	owner := entities.OwnerRef{Kind: entities.OwnerProject, ID: id}
	if _, err := deleteOwnerValues(ctx, tx, r.dialect, owner); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// List retrieves projects matching the query and the total match count
func (r *ProjectRepository) List(ctx context.Context, q *repositories.ProjectQuery) ([]*entities.Project, int64, error) {
	compiled, err := buildProjectQuery(r.dialect, q)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, compiled.CountSQL, compiled.CountArgs...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count projects")
	}

	rows, err := r.db.QueryContext(ctx, compiled.SQL, compiled.Args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list projects")
	}
	defer rows.Close()

	projects := make([]*entities.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "error iterating projects")
	}

	return projects, total, nil
}

func scanProject(s scanner) (*entities.Project, error) {
	var p entities.Project
	var status int

	if err := s.Scan(&p.ID, &p.Name, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan project")
	}

	p.Status = entities.ProjectStatus(status)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
