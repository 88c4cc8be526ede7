package entities

import (
	"fmt"
	"strings"
)

// OwnerKind identifies the entity type that owns attribute values.
// The set is closed: add a constant here before another entity can own values.
type OwnerKind string

const (
	OwnerProject OwnerKind = "project"
)

// Valid reports whether k is a supported owner kind
func (k OwnerKind) Valid() bool {
	switch k {
	case OwnerProject:
		return true
	}
	return false
}

// ParseOwnerKind parses an owner kind name
func ParseOwnerKind(s string) (OwnerKind, error) {
	k := OwnerKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unsupported owner kind: %q", s)
	}
	return k, nil
}

// OwnerRef addresses one owner instance, e.g. project:7
type OwnerRef struct {
	Kind OwnerKind
	ID   int64
}

// String returns kind:id
func (o OwnerRef) String() string {
	return fmt.Sprintf("%s:%d", o.Kind, o.ID)
}

// Validate checks that the owner has a supported kind and a stable identity
func (o OwnerRef) Validate() error {
	if !o.Kind.Valid() {
		return fmt.Errorf("unsupported owner kind: %q", o.Kind)
	}
	if o.ID <= 0 {
		return fmt.Errorf("owner ID is required")
	}
	return nil
}

// AttributeValue is one stored value of a definition for one owner.
// Example: project:7.priority = "high"
type AttributeValue struct {
	ID          int64
	AttributeID int64
	Owner       OwnerRef
	Value       string // Raw storable form produced by the codec
}

// String returns a string representation of the value
// Format: owner_kind:owner_id.#attribute_id = value
func (v *AttributeValue) String() string {
	return fmt.Sprintf("%s.#%d = %s", v.Owner, v.AttributeID, v.Value)
}

// Validate checks if the attribute value is valid
func (v *AttributeValue) Validate() error {
	if v.AttributeID <= 0 {
		return fmt.Errorf("attribute ID is required")
	}
	return v.Owner.Validate()
}
