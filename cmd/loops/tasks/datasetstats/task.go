package datasetstats

import (
	"context"
	"log"

	"github.com/opst/mlengine/cmd/loops/recurring"
	"github.com/opst/mlengine/pkg/datasetstats"
)

// initial value for task
func Seed() any {
	return nil
}

// return:
//
// - task: fill row and column counts of datasets missing them.
// It tells "updated" when at least one dataset is updated.
// Datasets which can not be counted are left pending, so they do not keep the loop busy.
func Task(logger *log.Logger, updater *datasetstats.Updater) recurring.Task[any] {
	return func(ctx context.Context, value any) (any, bool, error) {
		summary, err := updater.Run(ctx)
		if err != nil {
			return value, 0 < summary.Updated(), err
		}
		if 0 < summary.Total() {
			logger.Printf("dataset stats: %s", summary)
		}
		return value, 0 < summary.Updated(), nil
	}
}
