// this package provide "mock" implementation of database for testing.
package mocks

import (
	"context"
	"sync"

	kdbmock "github.com/opst/mlengine/pkg/domain/internal/db/mock"
	kdb "github.com/opst/mlengine/pkg/domain/lock/db"
)

// LockInterface serializes critical sections in the process.
//
// Impl.Lock, when set, replaces the behavior.
type LockInterface struct {
	Impl struct {
		Lock func(ctx context.Context, name string, criticalSection func(context.Context) error) error
	}
	Calls struct {
		Lock kdbmock.CallLog[string]
	}

	m sync.Mutex
}

var _ kdb.LockInterface = &LockInterface{}

func NewLockInterface() *LockInterface {
	return &LockInterface{}
}

func (l *LockInterface) Lock(ctx context.Context, name string, criticalSection func(context.Context) error) error {
	l.m.Lock()
	defer l.m.Unlock()

	l.Calls.Lock = append(l.Calls.Lock, name)
	if l.Impl.Lock != nil {
		return l.Impl.Lock(ctx, name, criticalSection)
	}
	return criticalSection(ctx)
}
