package db

import (
	"context"

	"github.com/opst/mlengine/pkg/domain"
)

type AutoMLInterface interface {
	// Register a new QUEUED automl job.
	//
	// # Returns
	//
	// - *domain.AutoMLJob: registered job.
	//
	// - error: ErrMissing when the dataset is not found.
	Register(context.Context, domain.AutoMLSpec) (*domain.AutoMLJob, error)

	// Get an automl job by id.
	//
	// # Returns
	//
	// - *domain.AutoMLJob
	//
	// - error: ErrMissing when it is not found.
	Get(ctx context.Context, id string) (*domain.AutoMLJob, error)

	// Find automl jobs, newest first.
	//
	// # Args
	//
	// - context.Context
	//
	// - status []domain.AutoMLStatus: when not empty, only jobs in one of them are found.
	Find(ctx context.Context, status []domain.AutoMLStatus) ([]domain.AutoMLJob, error)

	// Delete an automl job.
	//
	// # Returns
	//
	// - error: ErrMissing when it is not found.
	Delete(ctx context.Context, id string) error

	// PickQueued takes the oldest QUEUED job and makes it STARTING.
	//
	// Jobs locked by other transactions are skipped,
	// so concurrent callers do not pick the same job.
	//
	// # Returns
	//
	// - *domain.AutoMLJob: the picked job, or nil when no jobs are queued.
	//
	// - error
	PickQueued(context.Context) (*domain.AutoMLJob, error)

	// UpdateProgress records the status and progress of a running job.
	//
	// # Returns
	//
	// - error: ErrInvalidState when the job is already done (stopped, for example).
	// ErrMissing when it is not found.
	UpdateProgress(ctx context.Context, id string, status domain.AutoMLStatus, progress domain.AutoMLProgress) error

	// SetEngineJobId records the id of the job in the ML engine.
	SetEngineJobId(ctx context.Context, id string, engineJobId string) error

	// Finish records the outcome of a job.
	//
	// # Returns
	//
	// - error: ErrInvalidState when the job is already done.
	// ErrMissing when it is not found.
	Finish(ctx context.Context, id string, result domain.AutoMLResult) error

	// Stop a job.
	//
	// # Returns
	//
	// - *domain.AutoMLJob: the stopped job.
	//
	// - error: ErrInvalidState when the job is COMPLETED or FAILED.
	// ErrMissing when it is not found.
	Stop(ctx context.Context, id string) (*domain.AutoMLJob, error)
}
