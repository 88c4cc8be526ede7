package eav

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrUnknownAttribute is returned when a write names an attribute that has no definition
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrInvalidAttributeValue is returned when a value does not fit the attribute type
	ErrInvalidAttributeValue = errors.New("invalid attribute value")

	// ErrMalformedFilterOperand is returned when a filter operand has the wrong shape
	ErrMalformedFilterOperand = errors.New("malformed filter operand")

	// ErrOwnerNotSaved is returned when pending values are flushed before the owner has an ID
	ErrOwnerNotSaved = errors.New("owner has not been saved")
)

// InvalidValueError describes why a value was rejected for an attribute
type InvalidValueError struct {
	Attribute string
	Reason    string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value for attribute %q: %s", e.Attribute, e.Reason)
}

func (e *InvalidValueError) Is(target error) bool {
	return target == ErrInvalidAttributeValue
}

func unknownAttribute(name string) error {
	return errors.Mark(errors.Newf("unknown attribute %q", name), ErrUnknownAttribute)
}

func invalidValue(name, format string, args ...interface{}) error {
	return &InvalidValueError{Attribute: name, Reason: fmt.Sprintf(format, args...)}
}
