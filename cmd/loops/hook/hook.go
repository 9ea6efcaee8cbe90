package hook

import (
	"context"
	"errors"
)

// Hook is called before and after a value is processed by a loop.
type Hook[T any] interface {
	// Before is called before the value T is processed.
	//
	// When it returns an error, the value should not be processed.
	Before(context.Context, T) error

	// After is called after the value T is processed.
	After(context.Context, T) error
}

var ErrHookFailed = errors.New("hook failed")
