package engine

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/opst/mlengine/pkg/automl"
	xe "github.com/opst/mlengine/pkg/errors"
)

type AutoMLRequest struct {
	DatasetPath           string `json:"dataset_path"`
	TargetColumn          string `json:"target_column"`
	ProblemType           string `json:"problem_type"`
	CVFolds               int    `json:"cv_folds"`
	UseFeatureEngineering bool   `json:"use_feature_engineering"`
	ScalingMethod         string `json:"scaling_method"`
}

type autoMLStart struct {
	DatasetID string `json:"dataset_id"`
	AutoMLRequest
}

// StartAutoML starts an AutoML job on the engine and returns its id.
func (c *Client) StartAutoML(ctx context.Context, req AutoMLRequest) (string, error) {
	req.ProblemType = strings.ToLower(req.ProblemType)
	if req.ScalingMethod == "" {
		req.ScalingMethod = "standard"
	}
	body := autoMLStart{
		DatasetID:     strings.TrimSuffix(path.Base(req.DatasetPath), ".csv"),
		AutoMLRequest: req,
	}

	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(ctx, http.MethodPost, c.apipath("automl", "start"), body, &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", xe.New("ML engine did not return job_id")
	}
	return resp.JobID, nil
}

// Status of jobs on the engine.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusStopped   = "stopped"
)

type Progress struct {
	Status               string   `json:"status"`
	Progress             *int     `json:"progress"`
	CurrentPhase         string   `json:"current_phase"`
	CurrentAlgorithm     string   `json:"current_algorithm"`
	AlgorithmsCompleted  *int     `json:"algorithms_completed"`
	AlgorithmsTotal      *int     `json:"algorithms_total"`
	CurrentBestScore     *float64 `json:"current_best_score"`
	CurrentBestAlgorithm string   `json:"current_best_algorithm"`
	ErrorMessage         string   `json:"error_message"`
}

func (c *Client) AutoMLProgress(ctx context.Context, jobID string) (Progress, error) {
	p := Progress{}
	err := c.do(ctx, http.MethodGet, c.apipath("automl", "jobs", jobID, "progress"), nil, &p)
	return p, err
}

type LeaderboardEntry struct {
	Rank         int                `json:"rank"`
	Algorithm    string             `json:"algorithm"`
	Score        float64            `json:"score"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	TrainingTime float64            `json:"training_time"`
}

type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
	Rank       int     `json:"rank,omitempty"`
}

type Results struct {
	BestAlgorithm     string              `json:"best_algorithm"`
	BestScore         float64             `json:"best_score"`
	BestMetric        string              `json:"best_metric"`
	ModelID           string              `json:"model_id"`
	Leaderboard       []LeaderboardEntry  `json:"leaderboard"`
	FeatureImportance []FeatureImportance `json:"feature_importance"`
}

func (c *Client) AutoMLResults(ctx context.Context, jobID string) (Results, error) {
	r := Results{}
	err := c.do(ctx, http.MethodGet, c.apipath("automl", "jobs", jobID, "results"), nil, &r)
	return r, err
}

func (c *Client) StopAutoML(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodPost, c.apipath("automl", "jobs", jobID, "stop"), map[string]any{}, nil)
}

type crossValidate struct {
	DatasetPath  string         `json:"dataset_path"`
	TargetColumn string         `json:"target_column"`
	ProblemType  string         `json:"problem_type"`
	Algorithm    string         `json:"algorithm"`
	Estimator    string         `json:"estimator"`
	Params       map[string]any `json:"params"`
	CVFolds      int            `json:"cv_folds"`
	Scoring      string         `json:"scoring"`
}

// CrossValidate scores an algorithm with cross validation on the engine.
func (c *Client) CrossValidate(ctx context.Context, req automl.CrossValidation) ([]float64, error) {
	body := crossValidate{
		DatasetPath:  req.Dataset.Path,
		TargetColumn: req.Dataset.TargetColumn,
		ProblemType:  req.ProblemType.String(),
		Algorithm:    req.Algorithm.Key,
		Estimator:    req.Algorithm.Class,
		Params:       req.Algorithm.Params,
		CVFolds:      req.Folds,
		Scoring:      req.Scoring,
	}
	var resp struct {
		Scores []float64 `json:"scores"`
	}
	if err := c.do(ctx, http.MethodPost, c.apipath("automl", "cross_validate"), body, &resp); err != nil {
		return nil, err
	}
	return resp.Scores, nil
}

var _ automl.Evaluator = &Client{}

type trainingStart struct {
	DatasetPath  string         `json:"dataset_path"`
	TargetColumn string         `json:"target_column"`
	Algorithm    string         `json:"algorithm"`
	ProblemType  string         `json:"problem_type"`
	Config       map[string]any `json:"config,omitempty"`
}

// Train fits an algorithm on the whole dataset and returns the model id.
//
// When the engine trains asynchronously (answering a job_id instead of a model_id),
// Train waits for the job to finish.
func (c *Client) Train(ctx context.Context, req automl.Training) (string, error) {
	body := trainingStart{
		DatasetPath:  req.Dataset.Path,
		TargetColumn: req.Dataset.TargetColumn,
		Algorithm:    strings.ToLower(req.Algorithm.Key),
		ProblemType:  req.ProblemType.String(),
		Config:       map[string]any{"estimator": req.Algorithm.Class, "params": req.Algorithm.Params},
	}
	var resp struct {
		ModelID string `json:"model_id"`
		JobID   string `json:"job_id"`
	}
	if err := c.do(ctx, http.MethodPost, c.apipath("training", "start"), body, &resp); err != nil {
		return "", err
	}
	if resp.ModelID != "" {
		return resp.ModelID, nil
	}
	if resp.JobID == "" {
		return "", xe.New("ML engine returned neither model_id nor job_id")
	}
	return c.waitTraining(ctx, resp.JobID)
}

var _ automl.Trainer = &Client{}

func (c *Client) waitTraining(ctx context.Context, jobID string) (string, error) {
	for {
		p := Progress{}
		if err := c.do(ctx, http.MethodGet, c.apipath("training", "jobs", jobID, "progress"), nil, &p); err != nil {
			return "", err
		}
		switch p.Status {
		case StatusCompleted:
			var r struct {
				ModelID string `json:"model_id"`
			}
			if err := c.do(ctx, http.MethodGet, c.apipath("training", "jobs", jobID, "results"), nil, &r); err != nil {
				return "", err
			}
			if r.ModelID == "" {
				return "", xe.New("ML engine did not return model_id")
			}
			return r.ModelID, nil
		case StatusFailed, StatusStopped:
			return "", xe.Errorf("training job %s is %s: %s", jobID, p.Status, p.ErrorMessage)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}
