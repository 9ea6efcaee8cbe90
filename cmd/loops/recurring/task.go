package recurring

import (
	"context"

	"github.com/opst/mlengine/pkg/loop"
)

// Task is a step of a recurring loop.
//
// It returns
//
// - T : the value passed to the next run.
//
// - bool : true when the task has processed something, so more backlog can remain.
//
// - error : an error to be handled by Policy.
type Task[T any] func(context.Context, T) (T, bool, error)

// Applied converts the task into loop.Task which decides the next step with p.
func (rt Task[T]) Applied(p Policy) loop.Task[T] {
	return func(ctx context.Context, t T) (T, loop.Next) {
		next, updated, err := rt(ctx, t)
		return next, p.Next(updated, err)
	}
}
