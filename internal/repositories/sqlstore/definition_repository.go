package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/ahmedbally/astudio-task/internal/entities"
	"github.com/ahmedbally/astudio-task/internal/repositories"
)

// DefinitionRepository implements repositories.DefinitionRepository
// on PostgreSQL or SQLite
type DefinitionRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewDefinitionRepository creates a new SQL attribute definition repository
func NewDefinitionRepository(db *sql.DB, dialect Dialect) repositories.DefinitionRepository {
	return &DefinitionRepository{db: db, dialect: dialect}
}

const definitionColumns = `id, name, type, options`

// List retrieves all definitions ordered by id
func (r *DefinitionRepository) List(ctx context.Context) ([]*entities.AttributeDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM attribute_definitions ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list attribute definitions")
	}
	defer rows.Close()

	var defs []*entities.AttributeDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating attribute definitions")
	}

	return defs, nil
}

// GetByID retrieves a definition by id
func (r *DefinitionRepository) GetByID(ctx context.Context, id int64) (*entities.AttributeDefinition, error) {
	query := r.dialect.Rebind(`SELECT ` + definitionColumns + ` FROM attribute_definitions WHERE id = ?`)
	def, err := scanDefinition(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(repositories.ErrNotFound, "attribute definition %d", id)
	}
	return def, err
}

// GetByName retrieves a definition by its unique name
func (r *DefinitionRepository) GetByName(ctx context.Context, name string) (*entities.AttributeDefinition, error) {
	query := r.dialect.Rebind(`SELECT ` + definitionColumns + ` FROM attribute_definitions WHERE name = ?`)
	def, err := scanDefinition(r.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(repositories.ErrNotFound, "attribute definition %q", name)
	}
	return def, err
}

// Create inserts a definition and sets its ID
func (r *DefinitionRepository) Create(ctx context.Context, def *entities.AttributeDefinition) error {
	if err := def.Validate(); err != nil {
		return errors.Wrap(err, "invalid attribute definition")
	}

	options, err := encodeOptions(def.Options)
	if err != nil {
		return err
	}

	query := r.dialect.Rebind(`
		INSERT INTO attribute_definitions (name, type, options)
		VALUES (?, ?, ?)
		RETURNING id
	`)
	err = r.db.QueryRowContext(ctx, query, def.Name, string(def.Type), options).Scan(&def.ID)
	if r.dialect.IsUniqueViolation(err) {
		return errors.Wrapf(repositories.ErrDuplicateName, "attribute %q", def.Name)
	}
	if err != nil {
		return errors.Wrap(err, "failed to create attribute definition")
	}

	return nil
}

// Update replaces name, type and options of an existing definition
func (r *DefinitionRepository) Update(ctx context.Context, def *entities.AttributeDefinition) error {
	if err := def.Validate(); err != nil {
		return errors.Wrap(err, "invalid attribute definition")
	}

	options, err := encodeOptions(def.Options)
	if err != nil {
		return err
	}

	query := r.dialect.Rebind(`
		UPDATE attribute_definitions
		SET name = ?, type = ?, options = ?
		WHERE id = ?
	`)
	result, err := r.db.ExecContext(ctx, query, def.Name, string(def.Type), options, def.ID)
	if r.dialect.IsUniqueViolation(err) {
		return errors.Wrapf(repositories.ErrDuplicateName, "attribute %q", def.Name)
	}
	if err != nil {
		return errors.Wrap(err, "failed to update attribute definition")
	}

	return requireAffected(result, "attribute definition", def.ID)
}

// Delete removes a definition; its values are removed by the foreign key cascade
func (r *DefinitionRepository) Delete(ctx context.Context, id int64) error {
	query := r.dialect.Rebind(`DELETE FROM attribute_definitions WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete attribute definition")
	}

	return requireAffected(result, "attribute definition", id)
}

// CountValues returns the number of stored values for a definition
func (r *DefinitionRepository) CountValues(ctx context.Context, id int64) (int64, error) {
	query := r.dialect.Rebind(`SELECT COUNT(*) FROM attribute_values WHERE attribute_id = ?`)
	var n int64
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count attribute values")
	}
	return n, nil
}

func scanDefinition(s scanner) (*entities.AttributeDefinition, error) {
	var def entities.AttributeDefinition
	var typ string
	var options sql.NullString

	if err := s.Scan(&def.ID, &def.Name, &typ, &options); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan attribute definition")
	}

	def.Type = entities.AttributeType(typ)
	if options.Valid && options.String != "" && options.String != "null" {
		if err := json.Unmarshal([]byte(options.String), &def.Options); err != nil {
			return nil, errors.Wrapf(err, "failed to decode options of attribute %q", def.Name)
		}
	}

	return &def, nil
}

// encodeOptions stores options as a JSON array, NULL when empty
func encodeOptions(options []string) (interface{}, error) {
	if len(options) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(options)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode options")
	}
	return string(data), nil
}

func requireAffected(result sql.Result, what string, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return errors.Wrapf(repositories.ErrNotFound, "%s %d", what, id)
	}
	return nil
}
