package catalog

import "errors"

// Domain errors for catalog operations.
var (
	// Resource errors
	ErrResourceNotFound  = errors.New("resource not found")
	ErrDuplicateResource = errors.New("resource already exists")

	// Copy errors
	ErrCopyNotFound        = errors.New("copy not found")
	ErrDuplicateCopy       = errors.New("copy already exists for this adapter")
	ErrDuplicateCanonical  = errors.New("canonical copy already exists")
	ErrCopyWithoutResource = errors.New("copy references an unknown resource")

	// Level errors
	ErrLevelNotFound  = errors.New("level not found")
	ErrDuplicateLevel = errors.New("level already exists")

	// Object metadata errors
	ErrSchemaNotFound = errors.New("object metadata schema not found")
)
