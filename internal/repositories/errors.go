package repositories

import "github.com/cockroachdb/errors"

var (
	// ErrNotFound is returned when a definition or project does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName is returned when an attribute definition name is already taken
	ErrDuplicateName = errors.New("attribute name already exists")
)
