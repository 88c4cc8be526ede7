package services

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidArgument marks input rejected before reaching storage
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTypeChangeWithValues is returned when the type of an attribute that
	// already has values is changed
	ErrTypeChangeWithValues = errors.New("attribute type cannot change while values exist")

	// ErrReservedName is returned when an attribute would shadow a static project field
	ErrReservedName = errors.New("attribute name is reserved")
)

func invalidArgument(err error) error {
	return errors.Mark(err, ErrInvalidArgument)
}
