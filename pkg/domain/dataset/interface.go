package dataset

import "github.com/opst/mlengine/pkg/domain/dataset/db"

type Interface interface {
	Database() db.DatasetInterface
}

type impl struct {
	db db.DatasetInterface
}

func New(db db.DatasetInterface) Interface {
	return &impl{db: db}
}

func (i *impl) Database() db.DatasetInterface {
	return i.db
}
