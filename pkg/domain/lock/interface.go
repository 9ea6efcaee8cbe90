package lock

import "github.com/opst/mlengine/pkg/domain/lock/db"

type Interface interface {
	Database() db.LockInterface
}

type impl struct {
	db db.LockInterface
}

func New(db db.LockInterface) Interface {
	return &impl{db: db}
}

func (i *impl) Database() db.LockInterface {
	return i.db
}
