package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	apiautoml "github.com/opst/mlengine/pkg/api/types/automl"
	apierr "github.com/opst/mlengine/pkg/api/types/errors"
	"github.com/opst/mlengine/pkg/automl"
	"github.com/opst/mlengine/pkg/domain"
	kautoml "github.com/opst/mlengine/pkg/domain/automl/db"
	kdataset "github.com/opst/mlengine/pkg/domain/dataset/db"
	kerr "github.com/opst/mlengine/pkg/domain/errors"
	"github.com/opst/mlengine/pkg/utils"
	kstrings "github.com/opst/mlengine/pkg/utils/strings"
)

func errJobNotFound() error {
	return apierr.NotFound("AutoML job not found")
}

// AlgorithmsHandler lists algorithms for "?problem_type=".
//
// Without problem_type, algorithms of every problem type having any are listed, keyed by problem type.
func AlgorithmsHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		if q := c.QueryParam("problem_type"); q != "" {
			pt, err := automl.ParseProblemType(q)
			if err != nil {
				return apierr.BadRequest(
					`"problem_type" should be one of "classification", "regression", "time_series", "clustering" or "anomaly_detection"`,
					err,
				)
			}
			algos, err := automl.Algorithms(pt)
			if err != nil {
				algos = []automl.Algorithm{}
			}
			return c.JSON(http.StatusOK, algos)
		}

		all := map[string][]automl.Algorithm{}
		for _, pt := range []automl.ProblemType{automl.Classification, automl.Regression} {
			algos, err := automl.Algorithms(pt)
			if err != nil {
				return apierr.InternalServerError(err)
			}
			all[pt.String()] = algos
		}
		return c.JSON(http.StatusOK, all)
	}
}

// CreateJobHandler queues a new automl job.
//
// now is the clock for default job names.
func CreateJobHandler(
	dbAutoML kautoml.AutoMLInterface,
	dbDataset kdataset.DatasetInterface,
	now func() time.Time,
) echo.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if err := requireJSON(c); err != nil {
			return err
		}
		req := apiautoml.Create{}
		if err := decodeJSON(c, &req); err != nil {
			return err
		}

		if strings.TrimSpace(req.DatasetId) == "" {
			return apierr.BadRequest(`"dataset_id" is required`, nil)
		}
		if strings.TrimSpace(req.TargetColumn) == "" {
			return apierr.BadRequest(`"target_column" is required`, nil)
		}
		pt, err := automl.ParseProblemType(req.ProblemType)
		if err != nil {
			return apierr.BadRequest("Invalid problem type: "+req.ProblemType, err)
		}
		if _, err := automl.Algorithms(pt); err != nil {
			return apierr.BadRequest(
				`no algorithms for "`+pt.String()+`". "problem_type" should be "classification", "regression" or "time_series"`,
				err,
			)
		}
		for name, v := range map[string]int{
			"cv_folds":           req.CVFolds,
			"time_limit_seconds": req.TimeLimitSeconds,
			"n_algorithms":       req.NAlgorithms,
		} {
			if v < 0 {
				return apierr.BadRequest(
					fmt.Sprintf(`"%s" should be positive, or omitted for the default`, name), nil,
				)
			}
		}
		if req.CVFolds == 1 {
			return apierr.BadRequest(`"cv_folds" should be 2 or more`, nil)
		}

		ds, err := getDataset(ctx, dbDataset, req.DatasetId)
		if err != nil {
			return err
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			name = domain.DefaultJobName(ds.Name, now())
		}

		job, err := dbAutoML.Register(ctx, domain.AutoMLSpec{
			Name:             name,
			DatasetId:        ds.Id,
			TargetColumn:     req.TargetColumn,
			ProblemType:      pt,
			CVFolds:          req.CVFolds,
			TimeLimitSeconds: req.TimeLimitSeconds,
			NAlgorithms:      req.NAlgorithms,
		}.WithDefaults())
		if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusCreated, apiautoml.Compose(*job))
	}
}

func FindJobsHandler(dbAutoML kautoml.AutoMLInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		status := []domain.AutoMLStatus{}
		for _, s := range kstrings.SplitIfNotEmpty(c.QueryParam("status"), ",") {
			st, err := domain.AsAutoMLStatus(strings.ToUpper(strings.TrimSpace(s)))
			if err != nil {
				return apierr.BadRequest(`"status" should be comma separated job statuses`, err)
			}
			status = append(status, st)
		}

		jobs, err := dbAutoML.Find(c.Request().Context(), status)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, utils.Map(jobs, apiautoml.Compose))
	}
}

func getJob(ctx context.Context, dbAutoML kautoml.AutoMLInterface, id string) (*domain.AutoMLJob, error) {
	job, err := dbAutoML.Get(ctx, id)
	if errors.Is(err, kerr.ErrMissing) {
		return nil, errJobNotFound()
	} else if err != nil {
		return nil, apierr.InternalServerError(err)
	}
	return job, nil
}

func GetJobHandler(dbAutoML kautoml.AutoMLInterface, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		job, err := getJob(c.Request().Context(), dbAutoML, c.Param(paramKey))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, apiautoml.Compose(*job))
	}
}

func JobResultsHandler(dbAutoML kautoml.AutoMLInterface, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		job, err := getJob(c.Request().Context(), dbAutoML, c.Param(paramKey))
		if err != nil {
			return err
		}
		if job.Status != domain.AutoMLCompleted {
			return apierr.Conflict(
				"Job is not completed. Current status: "+job.Status.String(),
				apierr.WithAdvice("wait for the job to be COMPLETED"),
			)
		}
		return c.JSON(http.StatusOK, apiautoml.ComposeResults(*job))
	}
}

func JobLeaderboardHandler(dbAutoML kautoml.AutoMLInterface, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		job, err := getJob(c.Request().Context(), dbAutoML, c.Param(paramKey))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, apiautoml.ComposeLeaderboard(job.Leaderboard))
	}
}

// StopJobHandler stops a job.
//
// A job running on the ML engine is stopped there by the automl loop,
// when the loop finds the job STOPPED.
func StopJobHandler(dbAutoML kautoml.AutoMLInterface, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		job, err := dbAutoML.Stop(c.Request().Context(), c.Param(paramKey))
		if errors.Is(err, kerr.ErrMissing) {
			return errJobNotFound()
		} else if errors.Is(err, kerr.ErrInvalidState) {
			return apierr.Conflict("Cannot stop a completed or failed job", apierr.WithError(err))
		} else if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, apiautoml.Compose(*job))
	}
}

func DeleteJobHandler(dbAutoML kautoml.AutoMLInterface, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param(paramKey)
		if err := dbAutoML.Delete(c.Request().Context(), id); errors.Is(err, kerr.ErrMissing) {
			return errJobNotFound()
		} else if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, map[string]string{"message": "AutoML job deleted successfully", "id": id})
	}
}

// JobFeatureImportanceHandler returns feature importance of the best model of a job, ranked.
//
// It is empty until the job completes, and when the ML engine does not report it.
func JobFeatureImportanceHandler(dbAutoML kautoml.AutoMLInterface, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		job, err := getJob(c.Request().Context(), dbAutoML, c.Param(paramKey))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, apiautoml.ComposeFeatureImportance(*job))
	}
}
