package virtual

import "errors"

var (
	// ErrDuplicate is returned when a definition name is already registered.
	ErrDuplicate = errors.New("virtual peripheral already registered")

	// ErrInvalidDefinition is returned for definitions missing a name,
	// sources, or factory.
	ErrInvalidDefinition = errors.New("invalid virtual peripheral definition")

	// ErrNilHandler is returned when a factory yields no handler and no error.
	ErrNilHandler = errors.New("factory returned nil handler")

	// ErrNotNumeric is returned by numeric primitives for non-numeric payloads.
	ErrNotNumeric = errors.New("payload is not numeric")

	// ErrPathNotFound is returned by JSONField when the path is absent.
	ErrPathNotFound = errors.New("json path not found")
)
