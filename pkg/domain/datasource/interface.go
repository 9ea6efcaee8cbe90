package datasource

import "github.com/opst/mlengine/pkg/domain/datasource/db"

type Interface interface {
	Database() db.DataSourceInterface
}

type impl struct {
	db db.DataSourceInterface
}

func New(db db.DataSourceInterface) Interface {
	return &impl{db: db}
}

func (i *impl) Database() db.DataSourceInterface {
	return i.db
}
