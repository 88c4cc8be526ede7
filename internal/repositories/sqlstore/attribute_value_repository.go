package sqlstore

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/ahmedbally/astudio-task/internal/entities"
	"github.com/ahmedbally/astudio-task/internal/repositories"
)

// AttributeValueRepository implements repositories.AttributeValueRepository
// on PostgreSQL or SQLite
type AttributeValueRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewAttributeValueRepository creates a new SQL attribute value repository
func NewAttributeValueRepository(db *sql.DB, dialect Dialect) repositories.AttributeValueRepository {
	return &AttributeValueRepository{db: db, dialect: dialect}
}

const upsertValueQuery = `
	INSERT INTO attribute_values (attribute_id, owner_kind, owner_id, value)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (attribute_id, owner_kind, owner_id)
	DO UPDATE SET value = excluded.value
	RETURNING id, attribute_id, owner_kind, owner_id, value
`

// Upsert creates or updates the value of an attribute for an owner.
// The unique constraint makes the statement atomic; a violation raised by a
// concurrent writer is retried once as an upsert.
func (r *AttributeValueRepository) Upsert(ctx context.Context, attributeID int64, owner entities.OwnerRef, value string) (*entities.AttributeValue, error) {
	row := &entities.AttributeValue{AttributeID: attributeID, Owner: owner, Value: value}
	if err := row.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid attribute value")
	}

	result, err := r.upsert(ctx, row)
	if err != nil && r.dialect.IsUniqueViolation(err) {
		result, err = r.upsert(ctx, row)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert attribute value")
	}

	return result, nil
}

func (r *AttributeValueRepository) upsert(ctx context.Context, v *entities.AttributeValue) (*entities.AttributeValue, error) {
	query := r.dialect.Rebind(upsertValueQuery)
	row := r.db.QueryRowContext(ctx, query, v.AttributeID, string(v.Owner.Kind), v.Owner.ID, v.Value)
	return scanValue(row)
}

// DeleteWhere removes the value of an attribute for an owner
func (r *AttributeValueRepository) DeleteWhere(ctx context.Context, attributeID int64, owner entities.OwnerRef) (int64, error) {
	query := r.dialect.Rebind(`
		DELETE FROM attribute_values
		WHERE attribute_id = ? AND owner_kind = ? AND owner_id = ?
	`)
	res, err := r.db.ExecContext(ctx, query, attributeID, string(owner.Kind), owner.ID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete attribute value")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count deleted attribute values")
	}
	return n, nil
}

// FindAllForOwner retrieves every attribute value of an owner ordered by attribute
func (r *AttributeValueRepository) FindAllForOwner(ctx context.Context, owner entities.OwnerRef) ([]*entities.AttributeValue, error) {
	query := r.dialect.Rebind(`
		SELECT id, attribute_id, owner_kind, owner_id, value
		FROM attribute_values
		WHERE owner_kind = ? AND owner_id = ?
		ORDER BY attribute_id
	`)
	rows, err := r.db.QueryContext(ctx, query, string(owner.Kind), owner.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read attribute values")
	}
	defer rows.Close()

	var values []*entities.AttributeValue
	for rows.Next() {
		v, err := scanValue(rows)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating attribute values")
	}

	return values, nil
}

// DeleteAllForOwner removes every attribute value of an owner
func (r *AttributeValueRepository) DeleteAllForOwner(ctx context.Context, owner entities.OwnerRef) (int64, error) {
	return deleteOwnerValues(ctx, r.db, r.dialect, owner)
}

// execer is satisfied by *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func deleteOwnerValues(ctx context.Context, db execer, dialect Dialect, owner entities.OwnerRef) (int64, error) {
	query := dialect.Rebind(`DELETE FROM attribute_values WHERE owner_kind = ? AND owner_id = ?`)
	res, err := db.ExecContext(ctx, query, string(owner.Kind), owner.ID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete owner attribute values")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count deleted attribute values")
	}
	return n, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanValue(s scanner) (*entities.AttributeValue, error) {
	var v entities.AttributeValue
	var kind string
	var value sql.NullString

	if err := s.Scan(&v.ID, &v.AttributeID, &kind, &v.Owner.ID, &value); err != nil {
		return nil, errors.Wrap(err, "failed to scan attribute value")
	}

	v.Owner.Kind = entities.OwnerKind(kind)
	v.Value = value.String
	return &v, nil
}
