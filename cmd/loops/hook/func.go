package hook

import (
	"context"
	"errors"
)

// Func is a hook calling functions.
type Func[T any] struct {
	// BeforeFn is called by Before. nil means nothing to do.
	BeforeFn func(context.Context, T) error

	// AfterFn is called by After. nil means nothing to do.
	AfterFn func(context.Context, T) error
}

func (f Func[T]) Before(ctx context.Context, value T) error {
	if f.BeforeFn == nil {
		return nil
	}
	if err := f.BeforeFn(ctx, value); err != nil {
		return errors.Join(err, ErrHookFailed)
	}
	return nil
}

func (f Func[T]) After(ctx context.Context, value T) error {
	if f.AfterFn == nil {
		return nil
	}
	if err := f.AfterFn(ctx, value); err != nil {
		return errors.Join(err, ErrHookFailed)
	}
	return nil
}
