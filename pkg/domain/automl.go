package domain

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/opst/mlengine/pkg/automl"
)

type AutoMLStatus string

const (
	AutoMLQueued   AutoMLStatus = "QUEUED"
	AutoMLStarting AutoMLStatus = "STARTING"

	// AutoMLValidating is the status while algorithms are cross-validated.
	AutoMLValidating AutoMLStatus = "VALIDATING"

	// AutoMLTraining is the status while the best algorithm is fitted,
	// or while the ML engine runs the whole job.
	AutoMLTraining AutoMLStatus = "TRAINING"

	AutoMLCompleted AutoMLStatus = "COMPLETED"
	AutoMLFailed    AutoMLStatus = "FAILED"
	AutoMLStopped   AutoMLStatus = "STOPPED"
	AutoMLPaused    AutoMLStatus = "PAUSED"
)

func (s AutoMLStatus) String() string {
	return string(s)
}

// Done tells the job will not change its status anymore.
func (s AutoMLStatus) Done() bool {
	switch s {
	case AutoMLCompleted, AutoMLFailed, AutoMLStopped:
		return true
	}
	return false
}

func AsAutoMLStatus(s string) (AutoMLStatus, error) {
	switch st := AutoMLStatus(s); st {
	case AutoMLQueued, AutoMLStarting, AutoMLValidating, AutoMLTraining,
		AutoMLCompleted, AutoMLFailed, AutoMLStopped, AutoMLPaused:
		return st, nil
	}
	return "", fmt.Errorf("unknown automl job status: %q", s)
}

// Stoppable tells the job can be stopped.
func (s AutoMLStatus) Stoppable() bool {
	return s != AutoMLCompleted && s != AutoMLFailed
}

// AutoMLSpec is what is requested to start an automl job.
type AutoMLSpec struct {
	Name             string
	DatasetId        string
	TargetColumn     string
	ProblemType      automl.ProblemType
	CVFolds          int
	TimeLimitSeconds int
	NAlgorithms      int
}

// Defaults of AutoMLSpec.
const (
	DefaultCVFolds          = 5
	DefaultTimeLimitSeconds = 3600
	DefaultNAlgorithms      = 5
)

// WithDefaults returns a copy of the spec whose zero-valued settings are defaulted.
func (s AutoMLSpec) WithDefaults() AutoMLSpec {
	if s.CVFolds <= 0 {
		s.CVFolds = DefaultCVFolds
	}
	if s.TimeLimitSeconds <= 0 {
		s.TimeLimitSeconds = DefaultTimeLimitSeconds
	}
	if s.NAlgorithms <= 0 {
		s.NAlgorithms = DefaultNAlgorithms
	}
	return s
}

// DefaultJobName names a job after its dataset and the time it is requested.
func DefaultJobName(datasetName string, at time.Time) string {
	return fmt.Sprintf("AutoML - %s - %s", strings.TrimSpace(datasetName), at.Format("2006-01-02T15:04"))
}

func (s AutoMLSpec) TimeLimit() time.Duration {
	return time.Duration(s.TimeLimitSeconds) * time.Second
}

// LeaderboardEntry is a row of the leaderboard of an automl job.
type LeaderboardEntry struct {
	Algorithm    string    `json:"algorithm"`
	Name         string    `json:"name"`
	MeanScore    float64   `json:"mean_score"`
	StdScore     float64   `json:"std_score"`
	CVScores     []float64 `json:"cv_scores,omitempty"`
	TrainingTime float64   `json:"training_time"`

	// Metrics are other scores reported for the algorithm, keyed by metric name.
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// FeatureImportance is how much a feature contributes to the best model, ranked from 1.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
	Rank       int     `json:"rank"`
}

// RankFeatures sorts features by importance, descending, and ranks them from 1.
// Ties keep their order.
func RankFeatures(fi []FeatureImportance) []FeatureImportance {
	ranked := slices.Clone(fi)
	slices.SortStableFunc(ranked, func(a, b FeatureImportance) int {
		return cmp.Compare(b.Importance, a.Importance)
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// AsLeaderboard converts selection results, best first.
func AsLeaderboard(results []automl.Result) []LeaderboardEntry {
	lb := make([]LeaderboardEntry, 0, len(results))
	for _, r := range results {
		lb = append(lb, LeaderboardEntry{
			Algorithm:    r.Algorithm,
			Name:         r.Name,
			MeanScore:    r.MeanScore,
			StdScore:     r.StdScore,
			CVScores:     r.CVScores,
			TrainingTime: r.TrainingTime,
		})
	}
	return lb
}

type AutoMLProgress struct {
	// Progress in percent, 0 to 100.
	Progress            int
	CurrentAlgorithm    string
	AlgorithmsCompleted int
	AlgorithmsTotal     int
	BestAlgorithm       string
	BestScore           *float64
	Leaderboard         []LeaderboardEntry
}

// Percent computes progress from counts of algorithms.
func Percent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	p := completed * 100 / total
	if 100 < p {
		return 100
	}
	return p
}

type AutoMLJob struct {
	Id string
	AutoMLSpec
	AutoMLProgress

	Status       AutoMLStatus
	ErrorMessage string

	// ModelId is the id of the model trained with the best algorithm.
	ModelId string

	// EngineJobId is the job id in the ML engine when the job runs remotely.
	EngineJobId string

	// FeatureImportance of the best model, when the ML engine reports it.
	FeatureImportance []FeatureImportance

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// AutoMLResult is the outcome of a finished automl job.
type AutoMLResult struct {
	Status       AutoMLStatus
	ErrorMessage string
	ModelId      string
	Progress     AutoMLProgress

	FeatureImportance []FeatureImportance
}
