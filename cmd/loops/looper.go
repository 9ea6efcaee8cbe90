package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/opst/mlengine/cmd/loops/hook"
	"github.com/opst/mlengine/cmd/loops/recurring"
	"github.com/opst/mlengine/cmd/loops/tasks/automl"
	"github.com/opst/mlengine/cmd/loops/tasks/datasetstats"
	"github.com/opst/mlengine/cmd/loops/tasks/datasourceprobe"
	apiautoml "github.com/opst/mlengine/pkg/api/types/automl"
	"github.com/opst/mlengine/pkg/configs/server"
	kstats "github.com/opst/mlengine/pkg/datasetstats"
	"github.com/opst/mlengine/pkg/domain"
	"github.com/opst/mlengine/pkg/domain/mlengine"
	"github.com/opst/mlengine/pkg/loop"
)

type LoggerOptions func(*log.Logger) *log.Logger

func byLogger(l *log.Logger, opt ...LoggerOptions) *log.Logger {
	for _, o := range opt {
		l = o(l)
	}
	return l
}

func Copied() LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		return log.New(l.Writer(), l.Prefix(), l.Flags())
	}
}

func WithPrefix(pre string) LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		l.SetPrefix(pre)
		return l
	}
}

// Wrapper for monitoring loop tasks
//
//	Log the start and end of each time a task is executed. Essentially, it executes a task.
func monitor[T any](logger *log.Logger, task loop.Task[T]) loop.Task[T] {
	var counter uint64
	return func(ctx context.Context, t T) (ret T, next loop.Next) {
		counter += 1
		timestamp := time.Now()

		logger.Printf("task start: #0x%X: ", counter)
		defer func() {
			logger.Printf(
				"task end: #0x%X (takes %s): %s",
				counter, time.Since(timestamp), next,
			)
		}()

		ret, next = task(ctx, t)
		return
	}
}

// Manifest for starting a loop, which determines how the loop should behave.
type LoopManifest struct {
	Type domain.LoopType

	// Policy for the looping
	Policy recurring.Policy

	// Hooks around each automl job. Other loops ignore this.
	Hooks hook.Hook[apiautoml.Job]
}

// StartLoop runs the loop named by manifest.Type until it breaks or ctx is done.
func StartLoop(
	ctx context.Context,
	logger *log.Logger,
	ml mlengine.MLEngine,
	eng automl.Engine,
	conf *server.Config,
	manifest LoopManifest,
) error {
	switch manifest.Type {
	case domain.AutoML:
		return StartAutoMLLoop(ctx, logger, ml, eng, conf, manifest)
	case domain.DatasetStatsLoop:
		return StartDatasetStatsLoop(ctx, logger, ml, manifest)
	case domain.DataSourceProbe:
		return StartDataSourceProbeLoop(ctx, logger, ml, manifest)
	}
	return fmt.Errorf("%w: %s", domain.ErrUnknownLoopType, manifest.Type)
}

func StartAutoMLLoop(
	ctx context.Context,
	logger *log.Logger,
	ml mlengine.MLEngine,
	eng automl.Engine,
	conf *server.Config,
	manifest LoopManifest,
) error {
	l := byLogger(logger, Copied(), WithPrefix("[automl loop] "))
	hooks := manifest.Hooks
	if hooks == nil {
		hooks = hook.None[apiautoml.Job]{}
	}
	_, err := loop.Start(
		ctx, automl.Seed(),
		monitor(
			l,
			automl.Task(
				l,
				ml.AutoML().Database(),
				ml.Dataset().Database(),
				eng,
				hooks,
				automl.Config{
					Mode:         conf.AutoML().Mode(),
					ReportRoot:   conf.Storage().ReportRoot(),
					PollInterval: conf.AutoML().PollInterval(),
					MaxPolls:     conf.AutoML().MaxPolls(),
				},
			).Applied(manifest.Policy),
		),
	)
	return err
}

func StartDatasetStatsLoop(
	ctx context.Context,
	logger *log.Logger,
	ml mlengine.MLEngine,
	manifest LoopManifest,
) error {
	l := byLogger(logger, Copied(), WithPrefix("[dataset stats loop] "))
	_, err := loop.Start(
		ctx, datasetstats.Seed(),
		monitor(
			l,
			datasetstats.Task(
				l,
				kstats.New(ml.Dataset().Database(), ml.Lock().Database(), kstats.WithLogger(l)),
			).Applied(manifest.Policy),
		),
	)
	return err
}

func StartDataSourceProbeLoop(
	ctx context.Context,
	logger *log.Logger,
	ml mlengine.MLEngine,
	manifest LoopManifest,
) error {
	l := byLogger(logger, Copied(), WithPrefix("[datasource probe loop] "))
	_, err := loop.Start(
		ctx, datasourceprobe.Seed(),
		monitor(
			l,
			datasourceprobe.Task(
				l,
				ml.DataSource().Database(),
				datasourceprobe.Config{Concurrency: 4, Timeout: 30 * time.Second},
			).Applied(manifest.Policy),
		),
		loop.WithTimeout(10*time.Minute),
	)
	return err
}
