package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
	kpool "github.com/opst/mlengine/pkg/conn/db/postgres/pool"
	kautoml "github.com/opst/mlengine/pkg/domain/automl/db"
	kpgautoml "github.com/opst/mlengine/pkg/domain/automl/db/postgres"
	kdataset "github.com/opst/mlengine/pkg/domain/dataset/db"
	kpgdataset "github.com/opst/mlengine/pkg/domain/dataset/db/postgres"
	kdatasource "github.com/opst/mlengine/pkg/domain/datasource/db"
	kpgdatasource "github.com/opst/mlengine/pkg/domain/datasource/db/postgres"
	klock "github.com/opst/mlengine/pkg/domain/lock/db"
	kpglock "github.com/opst/mlengine/pkg/domain/lock/db/postgres"
	dbInterface "github.com/opst/mlengine/pkg/domain/mlengine/db"
	kschema "github.com/opst/mlengine/pkg/domain/schema/db"
	kpgschema "github.com/opst/mlengine/pkg/domain/schema/db/postgres"
	xe "github.com/opst/mlengine/pkg/errors"
)

type mlengineDBPostgres struct {
	pool       kpool.Pool
	dataset    kdataset.DatasetInterface
	datasource kdatasource.DataSourceInterface
	automl     kautoml.AutoMLInterface
	lock       klock.LockInterface
	schema     kschema.SchemaInterface
}

type Config struct {
	SchemaRepository string
}

type Option func(*Config) *Config

func WithSchemaRepository(repository string) Option {
	return func(c *Config) *Config {
		c.SchemaRepository = repository
		return c
	}
}

// New connects to the database at url.
func New(ctx context.Context, url string, options ...Option) (dbInterface.Database, error) {
	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return Wrap(kpool.Wrap(pool), options...), nil
}

// Wrap builds the database on an established pool.
func Wrap(p kpool.Pool, options ...Option) dbInterface.Database {
	c := Config{}
	for _, option := range options {
		c = *option(&c)
	}

	var schema kschema.SchemaInterface = kpgschema.Null()
	if c.SchemaRepository != "" {
		schema = kpgschema.New(p, c.SchemaRepository)
	}

	return &mlengineDBPostgres{
		pool:       p,
		dataset:    kpgdataset.New(p),
		datasource: kpgdatasource.New(p),
		automl:     kpgautoml.New(p),
		lock:       kpglock.New(p),
		schema:     schema,
	}
}

func (m *mlengineDBPostgres) Dataset() kdataset.DatasetInterface {
	return m.dataset
}

func (m *mlengineDBPostgres) DataSource() kdatasource.DataSourceInterface {
	return m.datasource
}

func (m *mlengineDBPostgres) AutoML() kautoml.AutoMLInterface {
	return m.automl
}

func (m *mlengineDBPostgres) Lock() klock.LockInterface {
	return m.lock
}

func (m *mlengineDBPostgres) Schema() kschema.SchemaInterface {
	return m.schema
}

func (m *mlengineDBPostgres) Ping(ctx context.Context) error {
	return xe.Wrap(m.pool.Ping(ctx))
}

func (m *mlengineDBPostgres) Close() error {
	m.pool.Close()
	return nil
}
