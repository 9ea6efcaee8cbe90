package models

import (
	"maps"
	"slices"

	"github.com/opst/mlengine/pkg/domain"
	"github.com/opst/mlengine/pkg/explain"
	"github.com/opst/mlengine/pkg/utils/rfctime"
)

type Global struct {
	ModelId    string               `json:"model_id"`
	Explainer  string               `json:"explainer"`
	Samples    int                  `json:"samples"`
	Importance []explain.Importance `json:"feature_importance"`
}

// Summary is data of a SHAP summary (beeswarm) plot.
type Summary struct {
	ModelId   string `json:"model_id"`
	Explainer string `json:"explainer"`
	explain.Summary
}

type LocalRequest struct {
	Row map[string]any `json:"row"`
}

type Local struct {
	ModelId       string                 `json:"model_id"`
	Explainer     string                 `json:"explainer"`
	Contributions []explain.Contribution `json:"contributions"`
}

type PredictRequest struct {
	Rows []map[string]any `json:"rows"`
}

// Model is a model trained by an AutoML job, with its scores.
type Model struct {
	ModelId       string             `json:"model_id"`
	Name          string             `json:"name"`
	JobId         string             `json:"job_id"`
	DatasetId     string             `json:"dataset_id"`
	TargetColumn  string             `json:"target_column"`
	ProblemType   string             `json:"problem_type"`
	Algorithm     string             `json:"algorithm"`
	AlgorithmName string             `json:"algorithm_name,omitempty"`
	Metric        string             `json:"metric"`
	Score         *float64           `json:"score"`
	Metrics       map[string]float64 `json:"metrics"`
	CreatedAt     rfctime.RFC3339    `json:"created_at"`
}

// Detail is a Model with the results of the job which trained it.
type Detail struct {
	Model
	Leaderboard       []domain.LeaderboardEntry  `json:"leaderboard"`
	FeatureImportance []domain.FeatureImportance `json:"feature_importance"`
}

// Metrics of a model.
type Metrics struct {
	ModelId string             `json:"model_id"`
	Metric  string             `json:"metric"`
	Metrics map[string]float64 `json:"metrics"`
}

// metricsOf collects scores of the best algorithm of a job.
//
// The scoring metric is the best score, and "<scoring>_std" is its deviation over folds.
// Other metrics come from the leaderboard.
func metricsOf(j domain.AutoMLJob) map[string]float64 {
	m := map[string]float64{}
	scoring := j.ProblemType.Scoring()
	i := slices.IndexFunc(j.Leaderboard, func(e domain.LeaderboardEntry) bool {
		return e.Algorithm == j.BestAlgorithm
	})
	if 0 <= i {
		best := j.Leaderboard[i]
		maps.Copy(m, best.Metrics)
		m[scoring] = best.MeanScore
		m[scoring+"_std"] = best.StdScore
	}
	if j.BestScore != nil {
		m[scoring] = *j.BestScore
	}
	return m
}

// ComposeModel describes the model trained by a completed job.
func ComposeModel(j domain.AutoMLJob) Model {
	name := ""
	if i := slices.IndexFunc(j.Leaderboard, func(e domain.LeaderboardEntry) bool {
		return e.Algorithm == j.BestAlgorithm
	}); 0 <= i {
		name = j.Leaderboard[i].Name
	}
	created := j.UpdatedAt
	if j.CompletedAt != nil {
		created = *j.CompletedAt
	}
	return Model{
		ModelId:       j.ModelId,
		Name:          j.Name,
		JobId:         j.Id,
		DatasetId:     j.DatasetId,
		TargetColumn:  j.TargetColumn,
		ProblemType:   j.ProblemType.String(),
		Algorithm:     j.BestAlgorithm,
		AlgorithmName: name,
		Metric:        j.ProblemType.Scoring(),
		Score:         j.BestScore,
		Metrics:       metricsOf(j),
		CreatedAt:     rfctime.RFC3339(created),
	}
}

func ComposeDetail(j domain.AutoMLJob) Detail {
	lb, fi := j.Leaderboard, j.FeatureImportance
	if lb == nil {
		lb = []domain.LeaderboardEntry{}
	}
	if fi == nil {
		fi = []domain.FeatureImportance{}
	}
	return Detail{Model: ComposeModel(j), Leaderboard: lb, FeatureImportance: fi}
}

func ComposeMetrics(j domain.AutoMLJob) Metrics {
	return Metrics{ModelId: j.ModelId, Metric: j.ProblemType.Scoring(), Metrics: metricsOf(j)}
}
