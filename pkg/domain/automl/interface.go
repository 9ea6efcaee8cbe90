package automl

import "github.com/opst/mlengine/pkg/domain/automl/db"

type Interface interface {
	Database() db.AutoMLInterface
}

type impl struct {
	db db.AutoMLInterface
}

func New(db db.AutoMLInterface) Interface {
	return &impl{db: db}
}

func (i *impl) Database() db.AutoMLInterface {
	return i.db
}
