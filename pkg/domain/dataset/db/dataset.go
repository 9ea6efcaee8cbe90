package db

import (
	"context"

	"github.com/opst/mlengine/pkg/domain"
)

type DatasetInterface interface {
	// Register a new dataset.
	//
	// # Returns
	//
	// - *domain.Dataset: registered dataset with a new id.
	//
	// - error
	Register(context.Context, domain.DatasetSpec) (*domain.Dataset, error)

	// Get a dataset by id.
	//
	// Deleted datasets are not found.
	//
	// # Returns
	//
	// - *domain.Dataset
	//
	// - error: ErrMissing when it is not found.
	Get(ctx context.Context, id string) (*domain.Dataset, error)

	// Find datasets, newest first.
	//
	// # Args
	//
	// - context.Context
	//
	// - workspaceId *string: when not nil, only datasets in the workspace are found.
	//
	// # Returns
	//
	// - []domain.Dataset: not deleted datasets.
	//
	// - error
	Find(ctx context.Context, workspaceId *string) ([]domain.Dataset, error)

	// Update name and description of a dataset.
	//
	// # Returns
	//
	// - *domain.Dataset: the updated dataset.
	//
	// - error: ErrMissing when it is not found.
	Update(ctx context.Context, id string, name string, description string) (*domain.Dataset, error)

	// SetStatus changes the status of a dataset.
	SetStatus(ctx context.Context, id string, status domain.DatasetStatus) error

	// SetStats records row and column counts of a dataset.
	SetStats(ctx context.Context, id string, stats domain.DatasetStats) error

	// SetQualityScore records the quality score of a dataset.
	SetQualityScore(ctx context.Context, id string, score float64) error

	// Delete a dataset softly. It gets status DELETED.
	//
	// # Returns
	//
	// - error: ErrMissing when it is not found or already deleted.
	Delete(ctx context.Context, id string) error

	// FindMissingStats finds datasets whose row or column count is null or 0.
	//
	// Deleted datasets are included, since their files may be restored.
	FindMissingStats(context.Context) ([]domain.Dataset, error)

	// All lists every dataset, deleted ones included, oldest first.
	All(context.Context) ([]domain.Dataset, error)

	// Columns lists column names of the table storing datasets.
	Columns(context.Context) ([]string, error)
}
