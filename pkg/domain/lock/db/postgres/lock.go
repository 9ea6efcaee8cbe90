package postgres

import (
	"context"

	kpool "github.com/opst/mlengine/pkg/conn/db/postgres/pool"
	kdblock "github.com/opst/mlengine/pkg/domain/lock/db"
	xe "github.com/opst/mlengine/pkg/errors"
)

type pgLock struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) kdblock.LockInterface {
	return &pgLock{pool: pool}
}

func (l *pgLock) Lock(ctx context.Context, name string, criticalSection func(context.Context) error) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer tx.Rollback(ctx)

	// insert the row when it is new, and lock it either way.
	if _, err := tx.Exec(
		ctx,
		`insert into "lock" ("name") values ($1) on conflict ("name") do nothing`,
		name,
	); err != nil {
		return xe.Wrap(err)
	}
	if _, err := tx.Exec(ctx, `select "name" from "lock" where "name" = $1 for update`, name); err != nil {
		return xe.Wrap(err)
	}

	if err := criticalSection(ctx); err != nil {
		return err
	}
	return xe.Wrap(tx.Commit(ctx))
}
