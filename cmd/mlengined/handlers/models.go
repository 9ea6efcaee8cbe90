package handlers

import (
	"context"
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/mlengine/pkg/api/types/errors"
	apimodels "github.com/opst/mlengine/pkg/api/types/models"
	"github.com/opst/mlengine/pkg/automl"
	"github.com/opst/mlengine/pkg/domain"
	kautoml "github.com/opst/mlengine/pkg/domain/automl/db"
	kdataset "github.com/opst/mlengine/pkg/domain/dataset/db"
	"github.com/opst/mlengine/pkg/engine"
	"github.com/opst/mlengine/pkg/explain"
	"github.com/opst/mlengine/pkg/utils"
)

// ModelEngine is the part of the ML engine serving trained models.
type ModelEngine interface {
	explain.Backend
	explain.ModelSource
	Predict(ctx context.Context, modelID string, features map[string]any) (map[string]any, error)
	PredictBatch(ctx context.Context, modelID string, rows []map[string]any) (map[string]any, error)
}

var _ ModelEngine = &engine.Client{}

func engineError(err error, advice string) error {
	if engine.IsNotFound(err) {
		return apierr.NotFound("Model not found", apierr.WithError(err))
	}
	return apierr.BadGateway(advice, err)
}

// trainedModels are models of COMPLETED automl jobs, newest first.
func trainedModels(ctx context.Context, dbAutoML kautoml.AutoMLInterface) ([]domain.AutoMLJob, error) {
	jobs, err := dbAutoML.Find(ctx, []domain.AutoMLStatus{domain.AutoMLCompleted})
	if err != nil {
		return nil, apierr.InternalServerError(err)
	}
	return slices.DeleteFunc(jobs, func(j domain.AutoMLJob) bool { return j.ModelId == "" }), nil
}

// trainedBy finds the COMPLETED job which trained the model. It is nil when there are none.
func trainedBy(ctx context.Context, dbAutoML kautoml.AutoMLInterface, modelId string) (*domain.AutoMLJob, error) {
	jobs, err := trainedModels(ctx, dbAutoML)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(jobs, func(j domain.AutoMLJob) bool { return j.ModelId == modelId })
	if i < 0 {
		return nil, nil
	}
	return &jobs[i], nil
}

func errModelNotFound() error {
	return apierr.NotFound(
		"Model not found",
		apierr.WithAdvice("models are registered when AutoML jobs complete"),
	)
}

// FindModelsHandler lists models trained by completed AutoML jobs, with their scores.
//
// "?problem_type=" narrows models down.
func FindModelsHandler(dbAutoML kautoml.AutoMLInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		var pt automl.ProblemType
		if q := c.QueryParam("problem_type"); q != "" {
			p, err := automl.ParseProblemType(q)
			if err != nil {
				return apierr.BadRequest("Invalid problem type: "+q, err)
			}
			pt = p
		}

		jobs, err := trainedModels(c.Request().Context(), dbAutoML)
		if err != nil {
			return err
		}
		if pt != "" {
			jobs = slices.DeleteFunc(jobs, func(j domain.AutoMLJob) bool { return j.ProblemType != pt })
		}
		return c.JSON(http.StatusOK, utils.Map(jobs, apimodels.ComposeModel))
	}
}

func GetModelHandler(dbAutoML kautoml.AutoMLInterface, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		job, err := trainedBy(c.Request().Context(), dbAutoML, c.Param(paramKey))
		if err != nil {
			return err
		}
		if job == nil {
			return errModelNotFound()
		}
		return c.JSON(http.StatusOK, apimodels.ComposeDetail(*job))
	}
}

func ModelMetricsHandler(dbAutoML kautoml.AutoMLInterface, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		job, err := trainedBy(c.Request().Context(), dbAutoML, c.Param(paramKey))
		if err != nil {
			return err
		}
		if job == nil {
			return errModelNotFound()
		}
		return c.JSON(http.StatusOK, apimodels.ComposeMetrics(*job))
	}
}

// explainerFor builds an explainer of a model trained by an automl job.
//
// Training data, less the target column, is the background.
// It is found through the COMPLETED job which made the model.
func explainerFor(
	ctx context.Context,
	eng ModelEngine,
	dbAutoML kautoml.AutoMLInterface,
	dbDataset kdataset.DatasetInterface,
	modelId string,
) (*explain.Explainer, [][]any, error) {
	model, err := eng.Model(ctx, modelId)
	if err != nil {
		return nil, nil, engineError(err, "the ML engine can not describe the model")
	}

	job, err := trainedBy(ctx, dbAutoML, modelId)
	if err != nil {
		return nil, nil, err
	}
	if job == nil {
		return nil, nil, apierr.NotFound(
			"Training data of the model not found",
			apierr.WithAdvice("only models trained by AutoML jobs can be explained"),
		)
	}

	ds, err := getDataset(ctx, dbDataset, job.DatasetId)
	if err != nil {
		return nil, nil, err
	}
	f, err := loadDataset(ctx, *ds)
	if err != nil {
		return nil, nil, err
	}

	features := model.FeatureNames
	if len(features) == 0 {
		features = slices.DeleteFunc(slices.Clone(f.Columns()), func(c string) bool {
			return c == job.TargetColumn
		})
		model.FeatureNames = features
	}

	rows := make([][]any, 0, f.Len())
	for _, rec := range f.Records() {
		rows = append(rows, featureRow(features, rec))
	}
	return explain.New(eng, model, rows), rows, nil
}

// featureRow orders values of rec by features. Missing features are nil.
func featureRow(features []string, rec map[string]any) []any {
	row := make([]any, len(features))
	for i, name := range features {
		row[i] = rec[name]
	}
	return row
}

func GlobalExplanationHandler(
	eng ModelEngine,
	dbAutoML kautoml.AutoMLInterface,
	dbDataset kdataset.DatasetInterface,
	paramKey string,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		maxSamples, err := positiveQuery(c, "max_samples", explain.DefaultMaxSamples)
		if err != nil {
			return err
		}

		id := c.Param(paramKey)
		ex, rows, err := explainerFor(ctx, eng, dbAutoML, dbDataset, id)
		if err != nil {
			return err
		}
		ex.MaxSamples = maxSamples

		values, err := ex.Explain(ctx, rows)
		if err != nil {
			return engineError(err, "SHAP values can not be calculated")
		}
		imp, err := ex.GlobalImportance()
		if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, apimodels.Global{
			ModelId:    id,
			Explainer:  string(ex.Kind()),
			Samples:    values.Len(),
			Importance: imp,
		})
	}
}

// ExplanationSummaryHandler returns SHAP values of the most important features for each sample.
//
// "?samples=" caps samples as "max_samples" of the global explanation does.
func ExplanationSummaryHandler(
	eng ModelEngine,
	dbAutoML kautoml.AutoMLInterface,
	dbDataset kdataset.DatasetInterface,
	paramKey string,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		samples, err := positiveQuery(c, "samples", explain.DefaultMaxSamples)
		if err != nil {
			return err
		}

		id := c.Param(paramKey)
		ex, rows, err := explainerFor(ctx, eng, dbAutoML, dbDataset, id)
		if err != nil {
			return err
		}
		ex.MaxSamples = samples

		if _, err := ex.Explain(ctx, rows); err != nil {
			return engineError(err, "SHAP values can not be calculated")
		}
		summary, err := ex.Summary(explain.TopFeatures)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, apimodels.Summary{
			ModelId:   id,
			Explainer: string(ex.Kind()),
			Summary:   summary,
		})
	}
}

func LocalExplanationHandler(
	eng ModelEngine,
	dbAutoML kautoml.AutoMLInterface,
	dbDataset kdataset.DatasetInterface,
	paramKey string,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if err := requireJSON(c); err != nil {
			return err
		}
		req := apimodels.LocalRequest{}
		if err := decodeJSON(c, &req); err != nil {
			return err
		}
		if len(req.Row) == 0 {
			return apierr.BadRequest(`"row" is required`, nil)
		}

		id := c.Param(paramKey)
		ex, _, err := explainerFor(ctx, eng, dbAutoML, dbDataset, id)
		if err != nil {
			return err
		}

		cs, err := ex.ExplainPrediction(ctx, featureRow(ex.FeatureNames, req.Row))
		if err != nil {
			return engineError(err, "SHAP values can not be calculated")
		}
		return c.JSON(http.StatusOK, apimodels.Local{
			ModelId:       id,
			Explainer:     string(ex.Kind()),
			Contributions: cs,
		})
	}
}

// PredictHandler proxies predictions to the ML engine.
//
// A single row goes to the realtime prediction, and more rows go to the batch prediction.
func PredictHandler(eng ModelEngine, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if err := requireJSON(c); err != nil {
			return err
		}
		req := apimodels.PredictRequest{}
		if err := decodeJSON(c, &req); err != nil {
			return err
		}
		if len(req.Rows) == 0 {
			return apierr.BadRequest(`"rows" should have one row at least`, nil)
		}

		id := c.Param(paramKey)
		var out map[string]any
		var err error
		if len(req.Rows) == 1 {
			out, err = eng.Predict(ctx, id, req.Rows[0])
		} else {
			out, err = eng.PredictBatch(ctx, id, req.Rows)
		}
		if err != nil {
			return engineError(err, "the ML engine failed to predict")
		}
		return c.JSON(http.StatusOK, out)
	}
}
