package entities

import (
	"fmt"
	"strings"
)

// AttributeType is the value type of a dynamic attribute
type AttributeType string

const (
	TypeText   AttributeType = "text"
	TypeNumber AttributeType = "number"
	TypeDate   AttributeType = "date"
	TypeSelect AttributeType = "select"
)

// maxAttributeNameLength matches the width of attribute_definitions.name
const maxAttributeNameLength = 255

// AttributeTypes returns every supported attribute type
func AttributeTypes() []AttributeType {
	return []AttributeType{TypeText, TypeNumber, TypeDate, TypeSelect}
}

// Valid reports whether t is one of the supported attribute types
func (t AttributeType) Valid() bool {
	switch t {
	case TypeText, TypeNumber, TypeDate, TypeSelect:
		return true
	}
	return false
}

// ParseAttributeType parses a type name (case-insensitive)
func ParseAttributeType(s string) (AttributeType, error) {
	t := AttributeType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unsupported attribute type: %q", s)
	}
	return t, nil
}

// AttributeDefinition is the typed schema descriptor of one dynamic field.
// Example: priority (select: low, high)
type AttributeDefinition struct {
	ID      int64
	Name    string        // Unique, immutable in practice (e.g., "priority")
	Type    AttributeType // Value type
	Options []string      // Allowed values, only for select
}

// String returns a string representation of the definition
// Format: name (type: opt1, opt2)
func (d *AttributeDefinition) String() string {
	if len(d.Options) == 0 {
		return fmt.Sprintf("%s (%s)", d.Name, d.Type)
	}
	return fmt.Sprintf("%s (%s: %s)", d.Name, d.Type, strings.Join(d.Options, ", "))
}

// Validate checks if the definition is valid
func (d *AttributeDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("attribute name is required")
	}
	if len(d.Name) > maxAttributeNameLength {
		return fmt.Errorf("attribute name must be at most %d characters", maxAttributeNameLength)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("unsupported attribute type: %q", d.Type)
	}

	if d.Type != TypeSelect {
		if len(d.Options) > 0 {
			return fmt.Errorf("options are only allowed for select attributes")
		}
		return nil
	}

	if len(d.Options) == 0 {
		return fmt.Errorf("options are required for select attributes")
	}
	seen := make(map[string]bool, len(d.Options))
	for i, opt := range d.Options {
		if opt == "" {
			return fmt.Errorf("option at index %d is empty", i)
		}
		if seen[opt] {
			return fmt.Errorf("duplicate option: %q", opt)
		}
		seen[opt] = true
	}
	return nil
}

// HasOption reports whether v is one of the select options (exact match)
func (d *AttributeDefinition) HasOption(v string) bool {
	for _, opt := range d.Options {
		if opt == v {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the definition
func (d *AttributeDefinition) Clone() *AttributeDefinition {
	c := *d
	if d.Options != nil {
		c.Options = append([]string(nil), d.Options...)
	}
	return &c
}
