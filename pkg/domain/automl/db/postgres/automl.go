package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/opst/mlengine/pkg/automl"
	kpool "github.com/opst/mlengine/pkg/conn/db/postgres/pool"
	"github.com/opst/mlengine/pkg/conn/db/postgres/scanner"
	"github.com/opst/mlengine/pkg/domain"
	kautoml "github.com/opst/mlengine/pkg/domain/automl/db"
	pgerr "github.com/opst/mlengine/pkg/domain/errors/dberrors/postgres"
	xe "github.com/opst/mlengine/pkg/errors"
)

type pgAutoML struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) kautoml.AutoMLInterface {
	return &pgAutoML{pool: pool}
}

const columns = `
	"id", "name", "dataset_id", "target_column", "problem_type",
	"status"::text as "status",
	"cv_folds", "time_limit_seconds", "n_algorithms",
	"progress",
	coalesce("current_algorithm", '') as "current_algorithm",
	"algorithms_completed", "algorithms_total",
	coalesce("best_algorithm", '') as "best_algorithm",
	"best_score",
	"leaderboard"::text as "leaderboard",
	"feature_importance"::text as "feature_importance",
	coalesce("error_message", '') as "error_message",
	coalesce("model_id", '') as "model_id",
	coalesce("engine_job_id", '') as "engine_job_id",
	"created_at", "started_at", "completed_at", "updated_at"
`

type jobRow struct {
	Id                  string
	Name                string
	DatasetId           string
	TargetColumn        string
	ProblemType         string
	Status              string
	CVFolds             int32 `sql:"cv_folds"`
	TimeLimitSeconds    int32
	NAlgorithms         int32
	Progress            int32
	CurrentAlgorithm    string
	AlgorithmsCompleted int32
	AlgorithmsTotal     int32
	BestAlgorithm       string
	BestScore           *float64
	Leaderboard         string
	FeatureImportance   string
	ErrorMessage        string
	ModelId             string
	EngineJobId         string
	CreatedAt           time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
	UpdatedAt           time.Time
}

func (r jobRow) domain() (domain.AutoMLJob, error) {
	st, err := domain.AsAutoMLStatus(r.Status)
	if err != nil {
		return domain.AutoMLJob{}, err
	}
	pt, err := automl.ParseProblemType(r.ProblemType)
	if err != nil {
		return domain.AutoMLJob{}, err
	}
	lb := []domain.LeaderboardEntry{}
	if err := json.Unmarshal([]byte(r.Leaderboard), &lb); err != nil {
		return domain.AutoMLJob{}, xe.WrapWithNote("leaderboard of "+r.Id, err)
	}
	fi := []domain.FeatureImportance{}
	if err := json.Unmarshal([]byte(r.FeatureImportance), &fi); err != nil {
		return domain.AutoMLJob{}, xe.WrapWithNote("feature importance of "+r.Id, err)
	}

	return domain.AutoMLJob{
		Id: r.Id,
		AutoMLSpec: domain.AutoMLSpec{
			Name:             r.Name,
			DatasetId:        r.DatasetId,
			TargetColumn:     r.TargetColumn,
			ProblemType:      pt,
			CVFolds:          int(r.CVFolds),
			TimeLimitSeconds: int(r.TimeLimitSeconds),
			NAlgorithms:      int(r.NAlgorithms),
		},
		AutoMLProgress: domain.AutoMLProgress{
			Progress:            int(r.Progress),
			CurrentAlgorithm:    r.CurrentAlgorithm,
			AlgorithmsCompleted: int(r.AlgorithmsCompleted),
			AlgorithmsTotal:     int(r.AlgorithmsTotal),
			BestAlgorithm:       r.BestAlgorithm,
			BestScore:           r.BestScore,
			Leaderboard:         lb,
		},
		Status:       st,
		ErrorMessage: r.ErrorMessage,
		ModelId:      r.ModelId,
		EngineJobId:  r.EngineJobId,
		CreatedAt:    r.CreatedAt,
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
		UpdatedAt:    r.UpdatedAt,

		FeatureImportance: fi,
	}, nil
}

func query(ctx context.Context, conn scanner.Queryer, sql string, args ...any) ([]domain.AutoMLJob, error) {
	rows, err := scanner.New[jobRow]().QueryAll(ctx, conn, sql, args...)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	ret := make([]domain.AutoMLJob, 0, len(rows))
	for _, r := range rows {
		j, err := r.domain()
		if err != nil {
			return nil, err
		}
		ret = append(ret, j)
	}
	return ret, nil
}

func one(ctx context.Context, conn scanner.Queryer, id string, sql string, args ...any) (*domain.AutoMLJob, error) {
	js, err := query(ctx, conn, sql, args...)
	if err != nil {
		return nil, err
	}
	switch len(js) {
	case 0:
		return nil, xe.Wrap(pgerr.Missing{Table: "automl_job", Identity: id})
	case 1:
		return &js[0], nil
	default:
		return nil, xe.Wrap(pgerr.TooMuch{Table: "automl_job", Identity: id, Expected: 1})
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// jsonArray marshals a slice for a jsonb array column. nil is an empty array.
func jsonArray[T any](items []T) (string, error) {
	if items == nil {
		return "[]", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", xe.Wrap(err)
	}
	return string(b), nil
}

func (m *pgAutoML) Register(ctx context.Context, spec domain.AutoMLSpec) (*domain.AutoMLJob, error) {
	spec = spec.WithDefaults()

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	id := uuid.NewString()
	job, err := one(
		ctx, conn, id,
		`
		insert into "automl_job"
			("id", "name", "dataset_id", "target_column", "problem_type",
			"status", "cv_folds", "time_limit_seconds", "n_algorithms")
		values ($1, $2, $3, $4, $5, 'QUEUED', $6, $7, $8)
		returning `+columns,
		id, spec.Name, spec.DatasetId, spec.TargetColumn, spec.ProblemType.String(),
		spec.CVFolds, spec.TimeLimitSeconds, spec.NAlgorithms,
	)
	if pgErr := new(pgconn.PgError); errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
		return nil, xe.Wrap(pgerr.Missing{Table: "dataset", Identity: spec.DatasetId})
	}
	return job, err
}

func (m *pgAutoML) Get(ctx context.Context, id string) (*domain.AutoMLJob, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	return one(ctx, conn, id, `select `+columns+` from "automl_job" where "id" = $1`, id)
}

func (m *pgAutoML) Find(ctx context.Context, status []domain.AutoMLStatus) ([]domain.AutoMLJob, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer conn.Release()

	st := make([]string, 0, len(status))
	for _, s := range status {
		st = append(st, string(s))
	}

	return query(
		ctx, conn,
		`
		select `+columns+` from "automl_job"
		where cardinality($1::varchar[]) = 0 or "status"::text = any($1::varchar[])
		order by "created_at" desc, "id"
		`,
		st,
	)
}

func (m *pgAutoML) Delete(ctx context.Context, id string) error {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return xe.Wrap(err)
	}
	defer conn.Release()

	ctag, err := conn.Exec(ctx, `delete from "automl_job" where "id" = $1`, id)
	if err != nil {
		return xe.Wrap(err)
	}
	if ctag.RowsAffected() == 0 {
		return xe.Wrap(pgerr.Missing{Table: "automl_job", Identity: id})
	}
	return nil
}

func (m *pgAutoML) PickQueued(ctx context.Context) (*domain.AutoMLJob, error) {
	var picked *domain.AutoMLJob
	err := kpool.InTx(ctx, m.pool, func(tx kpool.Tx) error {
		ids, err := scanner.New[string]().QueryAll(
			ctx, tx,
			`
			select "id" from "automl_job"
			where "status" = 'QUEUED'
			order by "created_at", "id"
			limit 1
			for update skip locked
			`,
		)
		if err != nil {
			return xe.Wrap(err)
		}
		if len(ids) == 0 {
			return nil
		}

		picked, err = one(
			ctx, tx, ids[0],
			`
			update "automl_job"
			set "status" = 'STARTING', "started_at" = now(), "updated_at" = now()
			where "id" = $1
			returning `+columns,
			ids[0],
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return picked, nil
}

// transit runs the update when the current status of the job is acceptable.
//
// The job is locked while it is checked and updated.
func (m *pgAutoML) transit(
	ctx context.Context, id string,
	acceptable func(domain.AutoMLStatus) bool,
	sql string, args ...any,
) (*domain.AutoMLJob, error) {
	var updated *domain.AutoMLJob
	err := kpool.InTx(ctx, m.pool, func(tx kpool.Tx) error {
		current, err := scanner.New[string]().QueryAll(
			ctx, tx, `select "status"::text from "automl_job" where "id" = $1 for update`, id,
		)
		if err != nil {
			return xe.Wrap(err)
		}
		if len(current) == 0 {
			return xe.Wrap(pgerr.Missing{Table: "automl_job", Identity: id})
		}
		if !acceptable(domain.AutoMLStatus(current[0])) {
			return xe.Wrap(pgerr.InvalidState{Table: "automl_job", Identity: id, Status: current[0]})
		}

		updated, err = one(ctx, tx, id, sql+` returning `+columns, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func notDone(s domain.AutoMLStatus) bool {
	return !s.Done()
}

func (m *pgAutoML) UpdateProgress(ctx context.Context, id string, status domain.AutoMLStatus, progress domain.AutoMLProgress) error {
	lb, err := jsonArray(progress.Leaderboard)
	if err != nil {
		return err
	}
	_, err = m.transit(
		ctx, id, notDone,
		`
		update "automl_job"
		set
			"status" = $2, "progress" = $3, "current_algorithm" = $4,
			"algorithms_completed" = $5, "algorithms_total" = $6,
			"best_algorithm" = $7, "best_score" = $8, "leaderboard" = $9::jsonb,
			"updated_at" = now()
		where "id" = $1
		`,
		id, string(status), progress.Progress, nullable(progress.CurrentAlgorithm),
		progress.AlgorithmsCompleted, progress.AlgorithmsTotal,
		nullable(progress.BestAlgorithm), progress.BestScore, lb,
	)
	return err
}

func (m *pgAutoML) SetEngineJobId(ctx context.Context, id string, engineJobId string) error {
	_, err := m.transit(
		ctx, id, notDone,
		`update "automl_job" set "engine_job_id" = $2, "updated_at" = now() where "id" = $1`,
		id, engineJobId,
	)
	return err
}

func (m *pgAutoML) Finish(ctx context.Context, id string, result domain.AutoMLResult) error {
	if !result.Status.Done() {
		return xe.Errorf("%s is not a final status", result.Status)
	}
	lb, err := jsonArray(result.Progress.Leaderboard)
	if err != nil {
		return err
	}
	fi, err := jsonArray(result.FeatureImportance)
	if err != nil {
		return err
	}
	_, err = m.transit(
		ctx, id, notDone,
		`
		update "automl_job"
		set
			"status" = $2, "error_message" = $3, "model_id" = $4,
			"progress" = $5, "current_algorithm" = $6,
			"algorithms_completed" = $7, "algorithms_total" = $8,
			"best_algorithm" = $9, "best_score" = $10, "leaderboard" = $11::jsonb,
			"feature_importance" = $12::jsonb,
			"completed_at" = now(), "updated_at" = now()
		where "id" = $1
		`,
		id, string(result.Status), nullable(result.ErrorMessage), nullable(result.ModelId),
		result.Progress.Progress, nullable(result.Progress.CurrentAlgorithm),
		result.Progress.AlgorithmsCompleted, result.Progress.AlgorithmsTotal,
		nullable(result.Progress.BestAlgorithm), result.Progress.BestScore, lb,
		fi,
	)
	return err
}

func (m *pgAutoML) Stop(ctx context.Context, id string) (*domain.AutoMLJob, error) {
	return m.transit(
		ctx, id, domain.AutoMLStatus.Stoppable,
		`
		update "automl_job"
		set
			"status" = 'STOPPED',
			"completed_at" = coalesce("completed_at", now()),
			"updated_at" = now()
		where "id" = $1
		`,
		id,
	)
}
