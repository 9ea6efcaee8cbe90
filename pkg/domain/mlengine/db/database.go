package db

import (
	"context"

	kautoml "github.com/opst/mlengine/pkg/domain/automl/db"
	kdataset "github.com/opst/mlengine/pkg/domain/dataset/db"
	kdatasource "github.com/opst/mlengine/pkg/domain/datasource/db"
	klock "github.com/opst/mlengine/pkg/domain/lock/db"
	kschema "github.com/opst/mlengine/pkg/domain/schema/db"
)

type Database interface {
	Dataset() kdataset.DatasetInterface
	DataSource() kdatasource.DataSourceInterface
	AutoML() kautoml.AutoMLInterface
	Lock() klock.LockInterface
	Schema() kschema.SchemaInterface

	// Ping checks the database is reachable.
	Ping(ctx context.Context) error

	Close() error
}
