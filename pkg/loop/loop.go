// Package loop runs a task repeatedly, carrying a value from a run to the next.
package loop

import (
	"context"
	"fmt"
	"time"
)

// Next tells Start what to do after a run of the task.
//
// The zero value means "continue immediately".
type Next struct {
	err      error
	quit     bool
	interval time.Duration
}

func (n Next) String() string {
	switch {
	case n.err != nil:
		return fmt.Sprintf("[break] with error: %v", n.err)
	case n.quit:
		return "[break] without error"
	}
	return fmt.Sprintf("[continue] interval: %s", n.interval)
}

// Continue runs the task again after interval.
func Continue(interval time.Duration) Next {
	return Next{interval: interval}
}

// ContinueAt runs the task again at t, or immediately if t has passed.
func ContinueAt(t time.Time) Next {
	d := time.Until(t)
	if d < 0 {
		d = 0
	}
	return Continue(d)
}

// Break stops the loop. Pass nil to stop without error.
func Break(err error) Next {
	return Next{quit: true, err: err}
}

// Task is a step of a loop.
//
// It receives the value returned by its previous run (or the initial value),
// and returns the value for the next run together with Next.
type Task[T any] func(context.Context, T) (T, Next)

// Start runs task in loop until it breaks or ctx is done.
//
// For example, poll an AutoML job on the engine until it finishes:
//
//	progress, err := Start(ctx, engine.Progress{}, func(ctx context.Context, last engine.Progress) (engine.Progress, Next) {
//		p, err := client.AutoMLProgress(ctx, jobId)
//		if err != nil {
//			return last, Break(err)
//		}
//		if p.Status == engine.StatusCompleted || p.Status == engine.StatusFailed {
//			return p, Break(nil)
//		}
//		return p, Continue(5 * time.Second)
//	})
//
// Returns the value returned by the last run of task (or init, if task has never run),
// and the error passed to Break or ctx.Err().
func Start[T any](ctx context.Context, init T, task Task[T], options ...LoopOption) (T, error) {
	if err := ctx.Err(); err != nil {
		return init, err
	}

	value := init
	for {
		lc := &loopConfig{ctx: ctx}
		for _, opt := range options {
			lc = opt(lc)
		}

		v, next := runOnce(lc, task, value)
		if next.err != nil {
			return v, next.err
		}
		if next.quit {
			return v, nil
		}
		value = v

		timer := time.NewTimer(next.interval)
		select {
		case <-ctx.Done():
			// shutting down goes first, even if the timer has also fired.
			timer.Stop()
			return value, ctx.Err()
		case <-timer.C:
		}
	}
}

type loopConfig struct {
	ctx      context.Context
	deferred func()
}

func runOnce[T any](lc *loopConfig, task Task[T], value T) (T, Next) {
	if lc.deferred != nil {
		defer lc.deferred()
	}
	return task(lc.ctx, value)
}

type LoopOption func(*loopConfig) *loopConfig

// WithTimeout sets a deadline on the context passed to each run of task.
func WithTimeout(d time.Duration) LoopOption {
	return func(lc *loopConfig) *loopConfig {
		ctx, cancel := context.WithTimeout(lc.ctx, d)
		return &loopConfig{
			ctx: ctx,
			deferred: func() {
				cancel()
				if lc.deferred != nil {
					lc.deferred()
				}
			},
		}
	}
}
