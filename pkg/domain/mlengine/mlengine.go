package mlengine

import (
	"context"

	"github.com/opst/mlengine/pkg/domain/automl"
	"github.com/opst/mlengine/pkg/domain/dataset"
	"github.com/opst/mlengine/pkg/domain/datasource"
	"github.com/opst/mlengine/pkg/domain/lock"
	dbInterface "github.com/opst/mlengine/pkg/domain/mlengine/db"
	"github.com/opst/mlengine/pkg/domain/mlengine/db/postgres"
	"github.com/opst/mlengine/pkg/domain/schema"
)

// MLEngine is the root of domain interfaces.
type MLEngine interface {
	Dataset() dataset.Interface
	DataSource() datasource.Interface
	AutoML() automl.Interface
	Lock() lock.Interface
	Schema() schema.Interface

	// Ping checks the backing database is reachable.
	Ping(ctx context.Context) error

	Close() error
}

type mlengine struct {
	db dbInterface.Database

	dataset    dataset.Interface
	datasource datasource.Interface
	automl     automl.Interface
	lock       lock.Interface
	schema     schema.Interface
}

// New connects to the database at databaseURL.
func New(ctx context.Context, databaseURL string, options ...Option) (MLEngine, error) {
	opt := &_options{}
	for _, o := range options {
		o(opt)
	}

	pg, err := postgres.New(ctx, databaseURL, opt.pg...)
	if err != nil {
		return nil, err
	}
	return FromDatabase(pg), nil
}

// FromDatabase builds domain interfaces on db.
func FromDatabase(db dbInterface.Database) MLEngine {
	return &mlengine{
		db: db,

		dataset:    dataset.New(db.Dataset()),
		datasource: datasource.New(db.DataSource()),
		automl:     automl.New(db.AutoML()),
		lock:       lock.New(db.Lock()),
		schema:     schema.New(db.Schema()),
	}
}

type Option func(*_options)

type _options struct {
	pg []postgres.Option
}

func WithSchemaRepository(repository string) Option {
	return func(o *_options) {
		o.pg = append(o.pg, postgres.WithSchemaRepository(repository))
	}
}

func (m *mlengine) Dataset() dataset.Interface {
	return m.dataset
}

func (m *mlengine) DataSource() datasource.Interface {
	return m.datasource
}

func (m *mlengine) AutoML() automl.Interface {
	return m.automl
}

func (m *mlengine) Lock() lock.Interface {
	return m.lock
}

func (m *mlengine) Schema() schema.Interface {
	return m.schema
}

func (m *mlengine) Ping(ctx context.Context) error {
	return m.db.Ping(ctx)
}

func (m *mlengine) Close() error {
	return m.db.Close()
}
