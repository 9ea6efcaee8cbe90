package automl

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/opst/mlengine/cmd/loops/hook"
	"github.com/opst/mlengine/cmd/loops/recurring"
	apiautoml "github.com/opst/mlengine/pkg/api/types/automl"
	kautoml "github.com/opst/mlengine/pkg/automl"
	"github.com/opst/mlengine/pkg/configs/server"
	"github.com/opst/mlengine/pkg/domain"
	kautomldb "github.com/opst/mlengine/pkg/domain/automl/db"
	kdataset "github.com/opst/mlengine/pkg/domain/dataset/db"
	kerr "github.com/opst/mlengine/pkg/domain/errors"
	"github.com/opst/mlengine/pkg/engine"
)

// Engine is the ML engine running AutoML jobs.
//
// *engine.Client implements this.
type Engine interface {
	kautoml.Evaluator
	kautoml.Trainer

	StartAutoML(ctx context.Context, req engine.AutoMLRequest) (string, error)
	AutoMLProgress(ctx context.Context, jobId string) (engine.Progress, error)
	AutoMLResults(ctx context.Context, jobId string) (engine.Results, error)
	StopAutoML(ctx context.Context, jobId string) error
}

var _ Engine = &engine.Client{}

type Config struct {
	Mode server.AutoMLMode

	// ReportRoot is where comparison reports are written, one directory per job.
	ReportRoot string

	// PollInterval and MaxPolls are for remote mode.
	PollInterval time.Duration
	MaxPolls     int
}

// errStopped tells that the job has been stopped by someone else while running.
var errStopped = errors.New("job has been stopped")

// Seed is the initial value of the task.
func Seed() any {
	return nil
}

// Task picks a queued AutoML job and runs it to the end.
//
// Failures of the job are recorded on the job, not returned.
// It returns errors only when the database fails.
func Task(
	logger *log.Logger,
	jobs kautomldb.AutoMLInterface,
	datasets kdataset.DatasetInterface,
	eng Engine,
	hooks hook.Hook[apiautoml.Job],
	conf Config,
) recurring.Task[any] {
	r := &runner{logger: logger, jobs: jobs, datasets: datasets, engine: eng, conf: conf}
	return func(ctx context.Context, value any) (any, bool, error) {
		job, err := jobs.PickQueued(ctx)
		if err != nil {
			return value, false, err
		}
		if job == nil {
			return value, false, nil
		}
		logger.Printf("picked job %s (%s)", job.Id, job.Name)

		if err := hooks.Before(ctx, apiautoml.Compose(*job)); err != nil {
			logger.Printf("job %s: before hook failed: %v", job.Id, err)
			result := failed(fmt.Errorf("before hook failed: %w", err), domain.AutoMLProgress{})
			return value, true, r.finish(ctx, job.Id, result)
		}

		result, err := r.run(ctx, *job)
		if errors.Is(err, errStopped) {
			logger.Printf("job %s has been stopped", job.Id)
		} else if err != nil {
			return value, true, err
		} else if err := r.finish(ctx, job.Id, result); err != nil {
			return value, true, err
		}

		if latest, err := jobs.Get(ctx, job.Id); err != nil {
			logger.Printf("job %s: after hook skipped: %v", job.Id, err)
		} else if err := hooks.After(ctx, apiautoml.Compose(*latest)); err != nil {
			logger.Printf("job %s: after hook failed: %v", job.Id, err)
		}
		return value, true, nil
	}
}

type runner struct {
	logger   *log.Logger
	jobs     kautomldb.AutoMLInterface
	datasets kdataset.DatasetInterface
	engine   Engine
	conf     Config
}

func failed(err error, progress domain.AutoMLProgress) domain.AutoMLResult {
	return domain.AutoMLResult{
		Status:       domain.AutoMLFailed,
		ErrorMessage: err.Error(),
		Progress:     progress,
	}
}

// finish records the result even if ctx has been cancelled.
func (r *runner) finish(ctx context.Context, id string, result domain.AutoMLResult) error {
	err := r.jobs.Finish(context.WithoutCancel(ctx), id, result)
	if errors.Is(err, kerr.ErrInvalidState) {
		r.logger.Printf("job %s has been finished by others: %v", id, err)
		return nil
	}
	if err == nil {
		r.logger.Printf("job %s: %s %s", id, result.Status, result.ErrorMessage)
	}
	return err
}

// run runs the job and returns its outcome.
//
// Errors are returned when the outcome can not be recorded: the database fails,
// or the job has been stopped (errStopped).
func (r *runner) run(ctx context.Context, job domain.AutoMLJob) (domain.AutoMLResult, error) {
	ds, err := r.datasets.Get(ctx, job.DatasetId)
	if errors.Is(err, kerr.ErrMissing) {
		return failed(fmt.Errorf("dataset %s is not found", job.DatasetId), domain.AutoMLProgress{}), nil
	} else if err != nil {
		return domain.AutoMLResult{}, err
	}
	if ds.FilePath == "" {
		return failed(fmt.Errorf("dataset %s has no file", ds.Id), domain.AutoMLProgress{}), nil
	}
	data := kautoml.Dataset{Path: ds.FilePath, TargetColumn: job.TargetColumn}

	if r.conf.Mode == server.Remote {
		return r.remote(ctx, job, data)
	}
	return r.local(ctx, job, data)
}

// update records progress. It returns errStopped when the job is no longer running.
func (r *runner) update(ctx context.Context, id string, status domain.AutoMLStatus, progress domain.AutoMLProgress) error {
	err := r.jobs.UpdateProgress(ctx, id, status, progress)
	if errors.Is(err, kerr.ErrInvalidState) {
		return errStopped
	}
	return err
}
