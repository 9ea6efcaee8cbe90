package automl

import (
	"github.com/opst/mlengine/pkg/domain"
	"github.com/opst/mlengine/pkg/utils/rfctime"
)

// Create is a request to create an AutoML job.
type Create struct {
	Name             string `json:"name"`
	DatasetId        string `json:"dataset_id"`
	TargetColumn     string `json:"target_column"`
	ProblemType      string `json:"problem_type"`
	CVFolds          int    `json:"cv_folds"`
	TimeLimitSeconds int    `json:"time_limit_seconds"`
	NAlgorithms      int    `json:"n_algorithms"`
}

type Job struct {
	Id               string `json:"id"`
	Name             string `json:"name"`
	DatasetId        string `json:"dataset_id"`
	TargetColumn     string `json:"target_column"`
	ProblemType      string `json:"problem_type"`
	CVFolds          int    `json:"cv_folds"`
	TimeLimitSeconds int    `json:"time_limit_seconds"`
	NAlgorithms      int    `json:"n_algorithms"`

	Status              string   `json:"status"`
	Progress            int      `json:"progress"`
	CurrentAlgorithm    string   `json:"current_algorithm,omitempty"`
	AlgorithmsCompleted int      `json:"algorithms_completed"`
	AlgorithmsTotal     int      `json:"algorithms_total"`
	BestAlgorithm       string   `json:"best_algorithm,omitempty"`
	BestScore           *float64 `json:"best_score"`
	ErrorMessage        string   `json:"error_message,omitempty"`
	ModelId             string   `json:"model_id,omitempty"`

	CreatedAt   rfctime.RFC3339  `json:"created_at"`
	StartedAt   *rfctime.RFC3339 `json:"started_at"`
	CompletedAt *rfctime.RFC3339 `json:"completed_at"`
	UpdatedAt   rfctime.RFC3339  `json:"updated_at"`
}

func Compose(j domain.AutoMLJob) Job {
	var started, completed *rfctime.RFC3339
	if j.StartedAt != nil {
		s := rfctime.RFC3339(*j.StartedAt)
		started = &s
	}
	if j.CompletedAt != nil {
		c := rfctime.RFC3339(*j.CompletedAt)
		completed = &c
	}
	return Job{
		Id:               j.Id,
		Name:             j.Name,
		DatasetId:        j.DatasetId,
		TargetColumn:     j.TargetColumn,
		ProblemType:      j.ProblemType.String(),
		CVFolds:          j.CVFolds,
		TimeLimitSeconds: j.TimeLimitSeconds,
		NAlgorithms:      j.NAlgorithms,

		Status:              j.Status.String(),
		Progress:            j.Progress,
		CurrentAlgorithm:    j.CurrentAlgorithm,
		AlgorithmsCompleted: j.AlgorithmsCompleted,
		AlgorithmsTotal:     j.AlgorithmsTotal,
		BestAlgorithm:       j.BestAlgorithm,
		BestScore:           j.BestScore,
		ErrorMessage:        j.ErrorMessage,
		ModelId:             j.ModelId,

		CreatedAt:   rfctime.RFC3339(j.CreatedAt),
		StartedAt:   started,
		CompletedAt: completed,
		UpdatedAt:   rfctime.RFC3339(j.UpdatedAt),
	}
}

// Results of a completed job.
type Results struct {
	JobId         string                    `json:"job_id"`
	BestAlgorithm string                    `json:"best_algorithm"`
	BestScore     *float64                  `json:"best_score"`
	ModelId       string                    `json:"model_id,omitempty"`
	Leaderboard   []domain.LeaderboardEntry `json:"leaderboard"`

	FeatureImportance []domain.FeatureImportance `json:"feature_importance"`
}

func ComposeResults(j domain.AutoMLJob) Results {
	lb := j.Leaderboard
	if lb == nil {
		lb = []domain.LeaderboardEntry{}
	}
	return Results{
		JobId:         j.Id,
		BestAlgorithm: j.BestAlgorithm,
		BestScore:     j.BestScore,
		ModelId:       j.ModelId,
		Leaderboard:   lb,

		FeatureImportance: ComposeFeatureImportance(j),
	}
}

// ComposeFeatureImportance is feature importance of a job, never nil.
func ComposeFeatureImportance(j domain.AutoMLJob) []domain.FeatureImportance {
	if j.FeatureImportance == nil {
		return []domain.FeatureImportance{}
	}
	return j.FeatureImportance
}

// Row of a leaderboard, ranked from 1.
type Row struct {
	Rank         int     `json:"rank"`
	Algorithm    string  `json:"algorithm"`
	Name         string  `json:"name"`
	MeanScore    float64 `json:"mean_score"`
	StdScore     float64 `json:"std_score"`
	TrainingTime float64 `json:"training_time"`
}

// ComposeLeaderboard ranks entries in the stored order, which is already sorted by score.
func ComposeLeaderboard(lb []domain.LeaderboardEntry) []Row {
	rows := make([]Row, 0, len(lb))
	for i, e := range lb {
		rows = append(rows, Row{
			Rank:         i + 1,
			Algorithm:    e.Algorithm,
			Name:         e.Name,
			MeanScore:    e.MeanScore,
			StdScore:     e.StdScore,
			TrainingTime: e.TrainingTime,
		})
	}
	return rows
}
