// Package testenv provides Postgres pools for tests.
//
// Tests using this package need a running Postgres
// pointed by the environment variable MLENGINE_TEST_DATABASE_URL.
// When it is not set, such tests are skipped.
package testenv

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jackc/pgx/v4/pgxpool"
	kpool "github.com/opst/mlengine/pkg/conn/db/postgres/pool"
	kpgschema "github.com/opst/mlengine/pkg/domain/schema/db/postgres"
)

const EnvDatabaseURL = "MLENGINE_TEST_DATABASE_URL"

// PoolBroaker hands pools out to tests.
type PoolBroaker interface {
	// GetPool returns a pool.
	//
	// Tables are cleaned up before returning and after t.
	GetPool(ctx context.Context, t *testing.T) kpool.Pool
}

type pg struct {
	pool *pgxpool.Pool
}

func (p *pg) GetPool(ctx context.Context, t *testing.T) kpool.Pool {
	t.Helper()
	t.Cleanup(func() { ClearTables(ctx, p.pool, t) })

	ClearTables(ctx, p.pool, t)
	return kpool.Wrap(p.pool)
}

// SchemaRepository is the directory of schema definitions in this module.
func SchemaRepository() string {
	_, here, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(here), "..", "..", "..", "..", "..", "..", "schema", "postgres")
}

// NewPoolBroaker connects to the test database and upgrades its schema.
//
// It skips t when no test database is configured.
func NewPoolBroaker(ctx context.Context, t *testing.T) PoolBroaker {
	t.Helper()

	url := os.Getenv(EnvDatabaseURL)
	if url == "" {
		t.Skipf("%s is not set. skipped.", EnvDatabaseURL)
	}

	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	if err := kpgschema.New(kpool.Wrap(pool), SchemaRepository()).Upgrade(ctx); err != nil {
		t.Fatalf("schema upgrade: %v", err)
	}

	return &pg{pool: pool}
}

func ClearTables(ctx context.Context, p *pgxpool.Pool, t *testing.T) {
	t.Helper()

	conn, err := p.Acquire(ctx)
	if err != nil {
		t.Errorf("fail to clean-up tables.: %v", err)
		return
	}
	defer conn.Release()

	for _, command := range []string{
		`truncate "automl_job" cascade`,
		`truncate "lock" cascade`,
		`truncate "data_source" cascade`,
		`truncate "dataset" cascade`,
	} {
		if _, err := conn.Exec(ctx, command); err != nil {
			t.Errorf("fail to clean-up tables.: %v", err)
		}
	}
}
