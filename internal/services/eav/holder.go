package eav

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ahmedbally/astudio-task/internal/entities"
	"github.com/ahmedbally/astudio-task/internal/infrastructure/logger"
	"github.com/ahmedbally/astudio-task/internal/repositories"
)

// LifecycleState tracks whether the owner of a holder has been persisted
type LifecycleState int

const (
	// StateUnsaved owners have no ID; writes are buffered
	StateUnsaved LifecycleState = iota
	// StateSaved owners have an ID and their buffer is being flushed
	StateSaved
	// StateSteady owners write through to storage
	StateSteady
)

func (s LifecycleState) String() string {
	switch s {
	case StateUnsaved:
		return "unsaved"
	case StateSaved:
		return "saved"
	case StateSteady:
		return "steady"
	}
	return "unknown"
}

// Deps are the shared collaborators of every holder
type Deps struct {
	Registry *Registry
	Values   repositories.AttributeValueRepository
}

type pendingEntry struct {
	name  string
	value interface{}
}

// Holder gives one owner instance named access to its dynamic attributes.
// A Holder is request scoped and not safe for concurrent use.
type Holder struct {
	deps  Deps
	owner entities.OwnerRef
	state LifecycleState

	// snapshot maps attribute id to the stored row, loaded on first read
	snapshot map[int64]*entities.AttributeValue
	loaded   bool

	// pending holds writes made before the owner had an ID, in insertion order
	pending []pendingEntry

	log *zap.SugaredLogger
}

// NewHolder creates a holder for an owner that does not exist yet
func NewHolder(deps Deps, kind entities.OwnerKind) *Holder {
	return &Holder{
		deps:  deps,
		owner: entities.OwnerRef{Kind: kind},
		state: StateUnsaved,
		log:   logger.ComponentLogger("holder"),
	}
}

// AttachHolder creates a holder for an existing owner
func AttachHolder(deps Deps, owner entities.OwnerRef) *Holder {
	return &Holder{
		deps:  deps,
		owner: owner,
		state: StateSteady,
		log:   logger.ComponentLogger("holder"),
	}
}

// Owner returns the owner reference, with a zero ID while unsaved
func (h *Holder) Owner() entities.OwnerRef {
	return h.owner
}

// State returns the lifecycle state
func (h *Holder) State() LifecycleState {
	return h.state
}

// Pending returns a copy of the buffered writes
func (h *Holder) Pending() map[string]interface{} {
	out := make(map[string]interface{}, len(h.pending))
	for _, e := range h.pending {
		out[e.name] = e.value
	}
	return out
}

// Get returns the value of an attribute decoded with its current type.
// Buffered writes shadow stored values. Unknown or unset attributes are nil.
func (h *Holder) Get(ctx context.Context, name string) (interface{}, error) {
	if i := h.pendingIndex(name); i >= 0 {
		return h.resolvePending(ctx, h.pending[i]), nil
	}

	def, ok := h.deps.Registry.ByName(ctx, name)
	if !ok {
		return nil, nil
	}

	if err := h.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	row, ok := h.snapshot[def.ID]
	if !ok {
		return nil, nil
	}
	return Decode(def, row.Value), nil
}

// Has reports whether the attribute has a value
func (h *Holder) Has(ctx context.Context, name string) (bool, error) {
	if i := h.pendingIndex(name); i >= 0 {
		return h.pending[i].value != nil, nil
	}

	def, ok := h.deps.Registry.ByName(ctx, name)
	if !ok {
		return false, nil
	}

	if err := h.ensureLoaded(ctx); err != nil {
		return false, err
	}
	_, ok = h.snapshot[def.ID]
	return ok, nil
}

// Set assigns an attribute. Before the owner is saved the write is buffered
// without validation. Afterwards it is validated and stored, and a nil value
// removes the attribute.
func (h *Holder) Set(ctx context.Context, name string, value interface{}) error {
	if h.state == StateUnsaved {
		h.stage(name, value)
		return nil
	}

	h.unstage(name)
	return h.write(ctx, name, value)
}

// SetMany assigns several attributes in name order and stops at the first error
func (h *Holder) SetMany(ctx context.Context, values map[string]interface{}) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.Set(ctx, name, values[name]); err != nil {
			return err
		}
	}
	return nil
}

// Commit records the ID the owner received when it was created and writes
// the buffered values
func (h *Holder) Commit(ctx context.Context, ownerID int64) error {
	if ownerID <= 0 {
		return errors.Newf("invalid owner ID %d", ownerID)
	}
	if h.state != StateUnsaved && h.owner.ID != ownerID {
		return errors.Newf("holder already belongs to %s", h.owner)
	}

	if h.state == StateUnsaved {
		h.owner.ID = ownerID
		h.state = StateSaved
		h.snapshot = make(map[int64]*entities.AttributeValue)
		h.loaded = true
	}

	err := h.FlushPending(ctx)
	h.state = StateSteady
	return err
}

// FlushPending writes the buffered values in insertion order. Each entry
// leaves the buffer before it is written; on error the remaining entries
// stay buffered.
func (h *Holder) FlushPending(ctx context.Context) error {
	if h.state == StateUnsaved {
		return errors.Wrap(ErrOwnerNotSaved, "cannot flush attributes")
	}

	log := logger.FromContext(ctx, h.log)
	flushed := 0
	for len(h.pending) > 0 {
		entry := h.pending[0]
		h.pending = h.pending[1:]

		if err := h.write(ctx, entry.name, entry.value); err != nil {
			log.Warnw("attribute flush failed",
				logger.FieldOwner, h.owner.String(),
				logger.FieldAttribute, entry.name,
				"remaining", len(h.pending),
				logger.FieldError, err)
			return errors.Wrapf(err, "failed to flush attribute %q", entry.name)
		}
		flushed++
	}

	if flushed > 0 {
		log.Debugw("flushed pending attributes", logger.FieldOwner, h.owner.String(), logger.FieldCount, flushed)
	}
	h.pending = nil
	return nil
}

// Delete removes an attribute and reports whether a value was removed.
// Unknown attributes are ignored.
func (h *Holder) Delete(ctx context.Context, name string) (bool, error) {
	staged := h.unstage(name)
	if h.state == StateUnsaved {
		return staged, nil
	}

	def, ok := h.deps.Registry.ByName(ctx, name)
	if !ok {
		return staged, nil
	}

	n, err := h.remove(ctx, def)
	if err != nil {
		return false, err
	}
	return staged || n > 0, nil
}

// DeleteMany removes several attributes and returns how many values were removed
func (h *Holder) DeleteMany(ctx context.Context, names []string) (int64, error) {
	var total int64
	for _, name := range names {
		removed, err := h.Delete(ctx, name)
		if err != nil {
			return total, err
		}
		if removed {
			total++
		}
	}
	return total, nil
}

// DeleteAll removes every attribute of the owner, buffered ones included
func (h *Holder) DeleteAll(ctx context.Context) (int64, error) {
	h.pending = nil
	if h.state == StateUnsaved {
		return 0, nil
	}

	n, err := h.deps.Values.DeleteAllForOwner(ctx, h.owner)
	if err != nil {
		return 0, err
	}
	h.snapshot = make(map[int64]*entities.AttributeValue)
	h.loaded = true
	return n, nil
}

// All returns every dynamic attribute keyed by name. Values of definitions
// that no longer exist are skipped.
func (h *Holder) All(ctx context.Context) (map[string]interface{}, error) {
	out := make(map[string]interface{})

	if h.state != StateUnsaved {
		if err := h.ensureLoaded(ctx); err != nil {
			return nil, err
		}
		for id, row := range h.snapshot {
			def, ok := h.deps.Registry.ByID(ctx, id)
			if !ok {
				continue
			}
			out[def.Name] = Decode(def, row.Value)
		}
	}

	for _, e := range h.pending {
		if e.value == nil {
			delete(out, e.name)
			continue
		}
		out[e.name] = h.resolvePending(ctx, e)
	}
	return out, nil
}

// ByNames returns the named attributes that have a value
func (h *Holder) ByNames(ctx context.Context, names []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(names))
	for _, name := range names {
		v, err := h.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		if v != nil {
			out[name] = v
		}
	}
	return out, nil
}

// ToMapWithDynamic merges the owner's static fields with its dynamic attributes
func (h *Holder) ToMapWithDynamic(ctx context.Context, static map[string]interface{}) (map[string]interface{}, error) {
	dynamic, err := h.All(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]interface{}, len(static)+len(dynamic))
	for k, v := range static {
		out[k] = v
	}
	for k, v := range dynamic {
		out[k] = v
	}
	return out, nil
}

func (h *Holder) write(ctx context.Context, name string, value interface{}) error {
	def, ok := h.deps.Registry.ByName(ctx, name)
	if !ok {
		return unknownAttribute(name)
	}

	if value == nil {
		_, err := h.remove(ctx, def)
		return err
	}

	stored, err := Validate(def, value)
	if err != nil {
		return err
	}

	row, err := h.deps.Values.Upsert(ctx, def.ID, h.owner, stored)
	if err != nil {
		return err
	}
	if h.loaded {
		h.snapshot[def.ID] = row
	}
	return nil
}

func (h *Holder) remove(ctx context.Context, def *entities.AttributeDefinition) (int64, error) {
	n, err := h.deps.Values.DeleteWhere(ctx, def.ID, h.owner)
	if err != nil {
		return 0, err
	}
	if h.loaded {
		delete(h.snapshot, def.ID)
	}
	return n, nil
}

func (h *Holder) ensureLoaded(ctx context.Context) error {
	if h.loaded {
		return nil
	}
	if h.state == StateUnsaved {
		h.snapshot = make(map[int64]*entities.AttributeValue)
		h.loaded = true
		return nil
	}

	rows, err := h.deps.Values.FindAllForOwner(ctx, h.owner)
	if err != nil {
		return err
	}
	h.snapshot = make(map[int64]*entities.AttributeValue, len(rows))
	for _, row := range rows {
		h.snapshot[row.AttributeID] = row
	}
	h.loaded = true
	return nil
}

// stage buffers a write; a repeated name keeps its position
func (h *Holder) stage(name string, value interface{}) {
	if i := h.pendingIndex(name); i >= 0 {
		h.pending[i].value = value
		return
	}
	h.pending = append(h.pending, pendingEntry{name: name, value: value})
}

func (h *Holder) unstage(name string) bool {
	i := h.pendingIndex(name)
	if i < 0 {
		return false
	}
	h.pending = append(h.pending[:i], h.pending[i+1:]...)
	return true
}

func (h *Holder) pendingIndex(name string) int {
	for i, e := range h.pending {
		if e.name == name {
			return i
		}
	}
	return -1
}

// resolvePending returns a buffered value in the form it will be read back
// once stored, or the raw value if it cannot be stored as is
func (h *Holder) resolvePending(ctx context.Context, e pendingEntry) interface{} {
	if e.value == nil {
		return nil
	}
	def, ok := h.deps.Registry.ByName(ctx, e.name)
	if !ok {
		return e.value
	}
	stored, err := Validate(def, e.value)
	if err != nil {
		return e.value
	}
	return Decode(def, stored)
}
