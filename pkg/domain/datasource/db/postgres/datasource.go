package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kpool "github.com/opst/mlengine/pkg/conn/db/postgres/pool"
	"github.com/opst/mlengine/pkg/conn/db/postgres/scanner"
	"github.com/opst/mlengine/pkg/domain"
	kdatasource "github.com/opst/mlengine/pkg/domain/datasource/db"
	pgerr "github.com/opst/mlengine/pkg/domain/errors/dberrors/postgres"
	xe "github.com/opst/mlengine/pkg/errors"
)

type pgDataSource struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) kdatasource.DataSourceInterface {
	return &pgDataSource{pool: pool}
}

const columns = `
	"id", "name", "description", "source_type", "params"::text as "params",
	"query_or_path", "sample_size",
	coalesce("workspace_id", '') as "workspace_id",
	"status"::text as "status", "last_tested_at",
	coalesce("error_message", '') as "error_message",
	"created_at", "updated_at"
`

type dataSourceRow struct {
	Id           string
	Name         string
	Description  string
	SourceType   string
	Params       string
	QueryOrPath  string
	SampleSize   int32
	WorkspaceId  string
	Status       string
	LastTestedAt *time.Time
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r dataSourceRow) domain() (domain.DataSource, error) {
	st, err := domain.AsDataSourceStatus(r.Status)
	if err != nil {
		return domain.DataSource{}, err
	}
	params := map[string]any{}
	if err := json.Unmarshal([]byte(r.Params), &params); err != nil {
		return domain.DataSource{}, xe.WrapWithNote("params of "+r.Id, err)
	}
	return domain.DataSource{
		Id: r.Id,
		DataSourceSpec: domain.DataSourceSpec{
			Name:        r.Name,
			Description: r.Description,
			SourceType:  r.SourceType,
			Params:      params,
			QueryOrPath: r.QueryOrPath,
			SampleSize:  int(r.SampleSize),
			WorkspaceId: r.WorkspaceId,
		},
		Status:       st,
		LastTestedAt: r.LastTestedAt,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

func query(ctx context.Context, conn scanner.Queryer, sql string, args ...any) ([]domain.DataSource, error) {
	rows, err := scanner.New[dataSourceRow]().QueryAll(ctx, conn, sql, args...)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	ret := make([]domain.DataSource, 0, len(rows))
	for _, r := range rows {
		d, err := r.domain()
		if err != nil {
			return nil, err
		}
		ret = append(ret, d)
	}
	return ret, nil
}

func one(ctx context.Context, conn scanner.Queryer, id string, sql string, args ...any) (*domain.DataSource, error) {
	ds, err := query(ctx, conn, sql, args...)
	if err != nil {
		return nil, err
	}
	switch len(ds) {
	case 0:
		return nil, xe.Wrap(pgerr.Missing{Table: "data_source", Identity: id})
	case 1:
		return &ds[0], nil
	default:
		return nil, xe.Wrap(pgerr.TooMuch{Table: "data_source", Identity: id, Expected: 1})
	}
}

func paramsJSON(params map[string]any) (string, error) {
	if params == nil {
		return "{}", nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return "", xe.Wrap(err)
	}
	return string(b), nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (d *pgDataSource) Register(ctx context.Context, spec domain.DataSourceSpec) (*domain.DataSource, error) {
	params, err := paramsJSON(spec.Params)
	if err != nil {
		return nil, err
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
		insert into "data_source"
			("id", "name", "description", "source_type", "params",
			"query_or_path", "sample_size", "workspace_id", "status")
		values ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, 'DISCONNECTED')
		returning `+columns,
		id, spec.Name, spec.Description, spec.SourceType, params,
		spec.QueryOrPath, spec.SampleSize, nullable(spec.WorkspaceId),
	)
}

func (d *pgDataSource) Get(ctx context.Context, id string) (*domain.DataSource, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return one(ctx, conn, id, `select `+columns+` from "data_source" where "id" = $1`, id)
}

func (d *pgDataSource) Find(ctx context.Context, workspaceId *string) ([]domain.DataSource, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return query(
		ctx, conn,
		`
		select `+columns+` from "data_source"
		where $1::varchar is null or "workspace_id" = $1
		order by "created_at" desc, "id"
		`,
		workspaceId,
	)
}

func (d *pgDataSource) Update(ctx context.Context, id string, spec domain.DataSourceSpec) (*domain.DataSource, error) {
	params, err := paramsJSON(spec.Params)
	if err != nil {
		return nil, err
	}

	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return one(
		ctx, conn, id,
		`
		update "data_source"
		set
			"name" = $2, "description" = $3, "source_type" = $4, "params" = $5::jsonb,
			"query_or_path" = $6, "sample_size" = $7, "workspace_id" = $8,
			"updated_at" = now()
		where "id" = $1
		returning `+columns,
		id, spec.Name, spec.Description, spec.SourceType, params,
		spec.QueryOrPath, spec.SampleSize, nullable(spec.WorkspaceId),
	)
}

func (d *pgDataSource) exec(ctx context.Context, id string, sql string, args ...any) error {
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
		return xe.Wrap(pgerr.Missing{Table: "data_source", Identity: id})
	}
	return nil
}

func (d *pgDataSource) Delete(ctx context.Context, id string) error {
	return d.exec(ctx, id, `delete from "data_source" where "id" = $1`, id)
}

func (d *pgDataSource) SetTestResult(ctx context.Context, id string, result domain.ConnectionTest) error {
	return d.exec(
		ctx, id,
		`
		update "data_source"
		set "status" = $2, "error_message" = $3, "last_tested_at" = $4, "updated_at" = now()
		where "id" = $1
		`,
		id, string(result.Status), nullable(result.ErrorMessage), result.TestedAt,
	)
}
