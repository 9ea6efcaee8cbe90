// Package filewatch stops servers and loops when files they were started with change.
//
// mlengined and loops watch their YAML config file, and a change of it means a restart.
package filewatch

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// changes are the operations making a watched file stale. Chmod alone is not.
const changes = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// UntilModifyContext returns a context canceled when one of paths is changed.
//
// A path may be a file (e.g. mlengine.yaml) or a directory (e.g. schema/postgres).
// For a directory, changes of files directly in it count.
//
// The cause of the cancellation (context.Cause) names the changed file.
//
// On error, the returned context and cancel func are nil.
func UntilModifyContext(ctx context.Context, paths ...string) (context.Context, func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	for _, p := range paths {
		if err := w.Add(p); err != nil {
			w.Close()
			return nil, nil, fmt.Errorf("can not watch %s: %w", p, err)
		}
	}

	wctx, cancel := context.WithCancelCause(ctx)
	go func() {
		defer w.Close()
		for {
			select {
			case <-wctx.Done():
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				cancel(fmt.Errorf("watching files failed: %w", err))
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(changes) {
					continue
				}
				cancel(fmt.Errorf("%s is changed (%s)", ev.Name, ev.Op))
				return
			}
		}
	}()

	return wctx, func() { cancel(nil) }, nil
}
