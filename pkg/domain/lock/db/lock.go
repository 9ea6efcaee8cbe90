package db

import "context"

type LockInterface interface {
	// Lock runs criticalSection holding the named lock.
	//
	// Other callers locking the same name wait until criticalSection returns.
	// Processes sharing the database are serialized as well.
	//
	// # Returns
	//
	// - error: error from criticalSection, or taking the lock.
	Lock(ctx context.Context, name string, criticalSection func(context.Context) error) error
}
