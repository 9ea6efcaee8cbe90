package datasourceprobe

import (
	"context"
	"log"
	"time"

	"github.com/opst/mlengine/cmd/loops/recurring"
	"github.com/opst/mlengine/pkg/connectors"
	"github.com/opst/mlengine/pkg/domain"
	kdatasource "github.com/opst/mlengine/pkg/domain/datasource/db"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	// Concurrency is the number of sources tested at once. 0 or less means 1.
	Concurrency int

	// Timeout bounds each connection test. 0 means no timeout.
	Timeout time.Duration

	// Connect builds connectors. nil means connectors.New.
	Connect func(connectors.Config) (connectors.Connector, error)

	// Now is the clock stamped as the tested time. nil means time.Now.
	Now func() time.Time
}

// initial value for task
func Seed() any {
	return nil
}

// return:
//
// - task: test connections of all data sources and record the outcomes.
// It tells "updated" when the status of any source has changed.
func Task(logger *log.Logger, sources kdatasource.DataSourceInterface, conf Config) recurring.Task[any] {
	connect := conf.Connect
	if connect == nil {
		connect = connectors.New
	}
	now := conf.Now
	if now == nil {
		now = time.Now
	}
	concurrency := conf.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	probe := func(ctx context.Context, ds domain.DataSource) connectors.TestResult {
		if 0 < conf.Timeout {
			c, cancel := context.WithTimeout(ctx, conf.Timeout)
			defer cancel()
			ctx = c
		}
		conn, err := connect(ds.Config())
		if err != nil {
			return connectors.TestResult{Status: connectors.StatusError, Message: err.Error()}
		}
		defer conn.Disconnect(context.WithoutCancel(ctx))
		return conn.TestConnection(ctx)
	}

	return func(ctx context.Context, value any) (any, bool, error) {
		all, err := sources.Find(ctx, nil)
		if err != nil {
			return value, false, err
		}
		if len(all) == 0 {
			return value, false, nil
		}

		results := make([]domain.ConnectionTest, len(all))
		eg, gctx := errgroup.WithContext(ctx)
		eg.SetLimit(concurrency)
		for i, ds := range all {
			eg.Go(func() error {
				results[i] = domain.AsConnectionTest(probe(gctx, ds), now())
				return nil
			})
		}
		eg.Wait()
		if err := ctx.Err(); err != nil {
			return value, false, err
		}

		changed := false
		for i, ds := range all {
			r := results[i]
			if err := sources.SetTestResult(ctx, ds.Id, r); err != nil {
				return value, changed, err
			}
			if ds.Status != r.Status || ds.ErrorMessage != r.ErrorMessage {
				changed = true
				logger.Printf("data source %s (%s): %s -> %s %s", ds.Id, ds.Name, ds.Status, r.Status, r.ErrorMessage)
			}
		}
		return value, changed, nil
	}
}
