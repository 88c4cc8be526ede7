package repositories

import (
	"context"

	"go.uber.org/zap"

	"github.com/ahmedbally/astudio-task/internal/entities"
	"github.com/ahmedbally/astudio-task/internal/infrastructure/logger"
)

// MirroredValueRepository serves every call from a primary store and
// replays successful writes on a secondary store. Secondary failures are
// logged and never fail the call, so the primary stays the source of truth.
type MirroredValueRepository struct {
	primary   AttributeValueRepository
	secondary AttributeValueRepository
	log       *zap.SugaredLogger
}

// NewMirroredValueRepository creates a repository writing to both stores
func NewMirroredValueRepository(primary, secondary AttributeValueRepository) *MirroredValueRepository {
	return &MirroredValueRepository{
		primary:   primary,
		secondary: secondary,
		log:       logger.ComponentLogger("value_mirror"),
	}
}

// Upsert writes to the primary, then the secondary
func (m *MirroredValueRepository) Upsert(ctx context.Context, attributeID int64, owner entities.OwnerRef, value string) (*entities.AttributeValue, error) {
	row, err := m.primary.Upsert(ctx, attributeID, owner, value)
	if err != nil {
		return nil, err
	}
	if _, err := m.secondary.Upsert(ctx, attributeID, owner, value); err != nil {
		m.mirrorFailed(ctx, "upsert", owner, err)
	}
	return row, nil
}

// DeleteWhere deletes from the primary, then the secondary
func (m *MirroredValueRepository) DeleteWhere(ctx context.Context, attributeID int64, owner entities.OwnerRef) (int64, error) {
	n, err := m.primary.DeleteWhere(ctx, attributeID, owner)
	if err != nil {
		return 0, err
	}
	if _, err := m.secondary.DeleteWhere(ctx, attributeID, owner); err != nil {
		m.mirrorFailed(ctx, "delete", owner, err)
	}
	return n, nil
}

// FindAllForOwner reads from the primary only
func (m *MirroredValueRepository) FindAllForOwner(ctx context.Context, owner entities.OwnerRef) ([]*entities.AttributeValue, error) {
	return m.primary.FindAllForOwner(ctx, owner)
}

// DeleteAllForOwner deletes from the primary, then the secondary
func (m *MirroredValueRepository) DeleteAllForOwner(ctx context.Context, owner entities.OwnerRef) (int64, error) {
	n, err := m.primary.DeleteAllForOwner(ctx, owner)
	if err != nil {
		return 0, err
	}
	if _, err := m.secondary.DeleteAllForOwner(ctx, owner); err != nil {
		m.mirrorFailed(ctx, "delete_all", owner, err)
	}
	return n, nil
}

func (m *MirroredValueRepository) mirrorFailed(ctx context.Context, op string, owner entities.OwnerRef, err error) {
	logger.FromContext(ctx, m.log).Warnw("mirror write failed",
		"op", op,
		logger.FieldOwner, owner.String(),
		logger.FieldError, err)
}
