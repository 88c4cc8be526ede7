package repositories

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmedbally/astudio-task/internal/entities"
)

type valueKey struct {
	attributeID int64
	owner       entities.OwnerRef
}

// memoryValues is a map-backed AttributeValueRepository
type memoryValues struct {
	rows map[valueKey]string
	err  error
}

func newMemoryValues() *memoryValues {
	return &memoryValues{rows: map[valueKey]string{}}
}

func (m *memoryValues) Upsert(_ context.Context, attributeID int64, owner entities.OwnerRef, value string) (*entities.AttributeValue, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.rows[valueKey{attributeID, owner}] = value
	return &entities.AttributeValue{AttributeID: attributeID, Owner: owner, Value: value}, nil
}

func (m *memoryValues) DeleteWhere(_ context.Context, attributeID int64, owner entities.OwnerRef) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	k := valueKey{attributeID, owner}
	if _, ok := m.rows[k]; !ok {
		return 0, nil
	}
	delete(m.rows, k)
	return 1, nil
}

func (m *memoryValues) FindAllForOwner(_ context.Context, owner entities.OwnerRef) ([]*entities.AttributeValue, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*entities.AttributeValue
	for k, v := range m.rows {
		if k.owner == owner {
			out = append(out, &entities.AttributeValue{AttributeID: k.attributeID, Owner: owner, Value: v})
		}
	}
	return out, nil
}

func (m *memoryValues) DeleteAllForOwner(_ context.Context, owner entities.OwnerRef) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for k := range m.rows {
		if k.owner == owner {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

var apollo = entities.OwnerRef{Kind: entities.OwnerProject, ID: 1}

func TestMirroredValueRepository_ReplaysWrites(t *testing.T) {
	primary, secondary := newMemoryValues(), newMemoryValues()
	repo := NewMirroredValueRepository(primary, secondary)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, 1, apollo, "low")
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, 2, apollo, "Acme")
	require.NoError(t, err)
	assert.Equal(t, primary.rows, secondary.rows)

	n, err := repo.DeleteWhere(ctx, 1, apollo)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, secondary.rows, 1)

	n, err = repo.DeleteAllForOwner(ctx, apollo)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, secondary.rows)
}

func TestMirroredValueRepository_SecondaryFailureIsIgnored(t *testing.T) {
	primary, secondary := newMemoryValues(), newMemoryValues()
	secondary.err = errors.New("unavailable")
	repo := NewMirroredValueRepository(primary, secondary)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, 1, apollo, "low")
	require.NoError(t, err)
	_, err = repo.DeleteWhere(ctx, 1, apollo)
	require.NoError(t, err)
	_, err = repo.DeleteAllForOwner(ctx, apollo)
	require.NoError(t, err)
}

func TestMirroredValueRepository_PrimaryFailureStopsMirror(t *testing.T) {
	primary, secondary := newMemoryValues(), newMemoryValues()
	primary.err = errors.New("disk full")
	repo := NewMirroredValueRepository(primary, secondary)

	_, err := repo.Upsert(context.Background(), 1, apollo, "low")
	require.Error(t, err)
	assert.Empty(t, secondary.rows)

	_, err = repo.FindAllForOwner(context.Background(), apollo)
	assert.Error(t, err, "reads come from the primary")
}
