package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	kpool "github.com/opst/mlengine/pkg/conn/db/postgres/pool"
	"github.com/opst/mlengine/pkg/conn/db/postgres/scanner"
	"github.com/opst/mlengine/pkg/domain"
	kdataset "github.com/opst/mlengine/pkg/domain/dataset/db"
	pgerr "github.com/opst/mlengine/pkg/domain/errors/dberrors/postgres"
	xe "github.com/opst/mlengine/pkg/errors"
)

type pgDataset struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) kdataset.DatasetInterface {
	return &pgDataset{pool: pool}
}

const columns = `
	"id", "name", "description",
	coalesce("workspace_id", '') as "workspace_id",
	coalesce("file_path", '') as "file_path",
	coalesce("file_size", 0) as "file_size",
	"row_count", "column_count",
	"status"::text as "status",
	"quality_score",
	"created_at", "updated_at"
`

type datasetRow struct {
	Id           string
	Name         string
	Description  string
	WorkspaceId  string
	FilePath     string
	FileSize     int64
	RowCount     *int64
	ColumnCount  *int64
	Status       string
	QualityScore *float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r datasetRow) domain() (domain.Dataset, error) {
	st, err := domain.AsDatasetStatus(r.Status)
	if err != nil {
		return domain.Dataset{}, err
	}
	return domain.Dataset{
		Id:           r.Id,
		Name:         r.Name,
		Description:  r.Description,
		WorkspaceId:  r.WorkspaceId,
		FilePath:     r.FilePath,
		FileSize:     r.FileSize,
		RowCount:     r.RowCount,
		ColumnCount:  r.ColumnCount,
		Status:       st,
		QualityScore: r.QualityScore,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

func query(ctx context.Context, conn scanner.Queryer, sql string, args ...any) ([]domain.Dataset, error) {
	rows, err := scanner.New[datasetRow]().QueryAll(ctx, conn, sql, args...)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	ret := make([]domain.Dataset, 0, len(rows))
	for _, r := range rows {
		d, err := r.domain()
		if err != nil {
			return nil, xe.Wrap(err)
		}
		ret = append(ret, d)
	}
	return ret, nil
}

func one(ctx context.Context, conn scanner.Queryer, id string, sql string, args ...any) (*domain.Dataset, error) {
	ds, err := query(ctx, conn, sql, args...)
	if err != nil {
		return nil, err
	}
	switch len(ds) {
	case 0:
		return nil, xe.Wrap(pgerr.Missing{Table: "dataset", Identity: id})
	case 1:
		return &ds[0], nil
	default:
		return nil, xe.Wrap(pgerr.TooMuch{Table: "dataset", Identity: id, Expected: 1})
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (d *pgDataset) Register(ctx context.Context, spec domain.DatasetSpec) (*domain.Dataset, error) {
	status := spec.Status
	if status == "" {
		status = domain.DatasetUploading
	}
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	id := uuid.NewString()
	return one(
		ctx, conn, id,
		`
		insert into "dataset"
			("id", "name", "description", "workspace_id", "file_path", "file_size", "status")
		values ($1, $2, $3, $4, $5, $6, $7)
		returning `+columns,
		id, spec.Name, spec.Description, nullable(spec.WorkspaceId),
		nullable(spec.FilePath), spec.FileSize, string(status),
	)
}

func (d *pgDataset) Get(ctx context.Context, id string) (*domain.Dataset, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return one(
		ctx, conn, id,
		`select `+columns+` from "dataset" where "id" = $1 and "status" <> 'DELETED'`,
		id,
	)
}

func (d *pgDataset) Find(ctx context.Context, workspaceId *string) ([]domain.Dataset, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return query(
		ctx, conn,
		`
		select `+columns+` from "dataset"
		where "status" <> 'DELETED'
			and ($1::varchar is null or "workspace_id" = $1)
		order by "created_at" desc, "id"
		`,
		workspaceId,
	)
}

func (d *pgDataset) Update(ctx context.Context, id string, name string, description string) (*domain.Dataset, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return one(
		ctx, conn, id,
		`
		update "dataset"
		set "name" = $2, "description" = $3, "updated_at" = now()
		where "id" = $1 and "status" <> 'DELETED'
		returning `+columns,
		id, name, description,
	)
}

// exec runs a statement updating a single dataset.
func (d *pgDataset) exec(ctx context.Context, id string, sql string, args ...any) error {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	ctag, err := conn.Exec(ctx, sql, args...)
	if err != nil {
		return xe.Wrap(err)
	}
	if ctag.RowsAffected() == 0 {
		return xe.Wrap(pgerr.Missing{Table: "dataset", Identity: id})
	}
	return nil
}

func (d *pgDataset) SetStatus(ctx context.Context, id string, status domain.DatasetStatus) error {
	return d.exec(
		ctx, id,
		`update "dataset" set "status" = $2, "updated_at" = now() where "id" = $1`,
		id, string(status),
	)
}

func (d *pgDataset) SetStats(ctx context.Context, id string, stats domain.DatasetStats) error {
	return d.exec(
		ctx, id,
		`
		update "dataset"
		set "row_count" = $2, "column_count" = $3, "updated_at" = now()
		where "id" = $1
		`,
		id, stats.RowCount, stats.ColumnCount,
	)
}

func (d *pgDataset) SetQualityScore(ctx context.Context, id string, score float64) error {
	return d.exec(
		ctx, id,
		`update "dataset" set "quality_score" = $2, "updated_at" = now() where "id" = $1`,
		id, score,
	)
}

func (d *pgDataset) Delete(ctx context.Context, id string) error {
	return d.exec(
		ctx, id,
		`
		update "dataset" set "status" = 'DELETED', "updated_at" = now()
		where "id" = $1 and "status" <> 'DELETED'
		`,
		id,
	)
}

func (d *pgDataset) FindMissingStats(ctx context.Context) ([]domain.Dataset, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return query(
		ctx, conn,
		`
		select `+columns+` from "dataset"
		where coalesce("row_count", 0) = 0 or coalesce("column_count", 0) = 0
		order by "created_at", "id"
		`,
	)
}

func (d *pgDataset) All(ctx context.Context) ([]domain.Dataset, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return query(
		ctx, conn,
		`select `+columns+` from "dataset" order by "created_at", "id"`,
	)
}

func (d *pgDataset) Columns(ctx context.Context) ([]string, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	cols, err := scanner.New[string]().QueryAll(
		ctx, conn,
		`
		select "column_name"::text from "information_schema"."columns"
		where "table_schema" = current_schema() and "table_name" = 'dataset'
		order by "ordinal_position"
		`,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return cols, nil
}
