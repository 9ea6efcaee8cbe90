package errors

import "errors"

var (
	// requested entity is not found.
	ErrMissing = errors.New("missing")

	// the change conflicts with existing entities.
	ErrConflict = errors.New("conflict")

	// the entity is not in a state allowing the operation.
	ErrInvalidState = errors.New("invalid state")

	// more entities are found than expected.
	ErrTooMuch = errors.New("too much")
)
