package db

import (
	"context"

	"github.com/opst/mlengine/pkg/domain"
)

type DataSourceInterface interface {
	// Register a new data source. It is DISCONNECTED until tested.
	Register(context.Context, domain.DataSourceSpec) (*domain.DataSource, error)

	// Get a data source by id.
	//
	// # Returns
	//
	// - *domain.DataSource
	//
	// - error: ErrMissing when it is not found.
	Get(ctx context.Context, id string) (*domain.DataSource, error)

	// Find data sources, newest first.
	//
	// # Args
	//
	// - context.Context
	//
	// - workspaceId *string: when not nil, only data sources in the workspace are found.
	Find(ctx context.Context, workspaceId *string) ([]domain.DataSource, error)

	// Update replaces the spec of a data source.
	//
	// Its test result is kept as it is.
	Update(ctx context.Context, id string, spec domain.DataSourceSpec) (*domain.DataSource, error)

	// Delete a data source.
	//
	// # Returns
	//
	// - error: ErrMissing when it is not found.
	Delete(ctx context.Context, id string) error

	// SetTestResult records the outcome of a connection test.
	SetTestResult(ctx context.Context, id string, result domain.ConnectionTest) error
}
