package automl

import (
	"context"
	"errors"
	"log"
	"slices"
	"time"

	xe "github.com/opst/mlengine/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Dataset tells the engine where training data is.
type Dataset struct {
	// Path is a path of a CSV file, readable by the engine.
	Path string `json:"dataset_path"`

	// TargetColumn is the column to be predicted.
	TargetColumn string `json:"target_column"`
}

type CrossValidation struct {
	Algorithm   Algorithm
	ProblemType ProblemType
	Dataset     Dataset
	Folds       int
	Scoring     string
}

// Evaluator scores an algorithm by cross validation.
type Evaluator interface {
	// CrossValidate returns one score per fold.
	CrossValidate(ctx context.Context, req CrossValidation) ([]float64, error)
}

type Training struct {
	Algorithm   Algorithm
	ProblemType ProblemType
	Dataset     Dataset
}

// Trainer fits an algorithm on a whole dataset.
type Trainer interface {
	// Train returns the id of the trained model.
	Train(ctx context.Context, req Training) (string, error)
}

type Result struct {
	Algorithm    string    `json:"algorithm"`
	Name         string    `json:"name"`
	MeanScore    float64   `json:"mean_score"`
	StdScore     float64   `json:"std_score"`
	CVScores     []float64 `json:"cv_scores"`
	TrainingTime float64   `json:"training_time"`
}

type Selection struct {
	BestAlgorithm     string   `json:"best_algorithm,omitempty"`
	BestAlgorithmName string   `json:"best_algorithm_name,omitempty"`
	BestScore         *float64 `json:"best_score"`
	AllResults        []Result `json:"all_results"`
	TotalTime         float64  `json:"total_time"`
}

// Progress is reported after each algorithm is tried.
type Progress struct {
	Algorithm Algorithm

	// Completed is the number of algorithms tried so far, including this one.
	Completed int
	Total     int

	// Result is nil when the algorithm failed.
	Result *Result
	Err    error

	Best      string
	BestScore *float64
}

// ComparisonRow is a row of Selector.Comparison.
type ComparisonRow struct {
	Rank         int     `json:"rank"`
	Name         string  `json:"name"`
	MeanScore    float64 `json:"mean_score"`
	StdScore     float64 `json:"std_score"`
	TrainingTime float64 `json:"training_time"`
}

var ErrNotSelected = errors.New("must run SelectBest first")

type Selector struct {
	ProblemType ProblemType
	CVFolds     int

	// TimeLimit stops trying further algorithms once exceeded. Zero means no limit.
	TimeLimit time.Duration

	// NAlgorithms caps the number of algorithms to try. Zero means all.
	NAlgorithms int

	// OnProgress is called after each algorithm.
	// When it returns an error, SelectBest stops with the error.
	OnProgress func(Progress) error

	Logger *log.Logger

	results []Result
	best    *Algorithm

	now func() time.Time
}

// NewSelector returns a Selector with defaults: 5 folds, 1 hour and 5 algorithms.
func NewSelector(pt ProblemType) *Selector {
	return &Selector{
		ProblemType: pt,
		CVFolds:     5,
		TimeLimit:   time.Hour,
		NAlgorithms: 5,
	}
}

func (s *Selector) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Selector) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

// Candidates are algorithms to be tried, in order.
func (s *Selector) Candidates() ([]Algorithm, error) {
	algos, err := Algorithms(s.ProblemType)
	if err != nil {
		return nil, err
	}
	if 0 < s.NAlgorithms && s.NAlgorithms < len(algos) {
		algos = algos[:s.NAlgorithms]
	}
	return algos, nil
}

// SelectBest cross-validates candidates one by one and picks the one with the best mean score.
//
// Failed algorithms are logged and skipped. The first algorithm wins ties.
func (s *Selector) SelectBest(ctx context.Context, ev Evaluator, ds Dataset) (Selection, error) {
	algos, err := s.Candidates()
	if err != nil {
		return Selection{}, err
	}
	l := s.logger()

	s.results = nil
	s.best = nil
	var bestScore *float64

	start := s.clock()
	l.Printf("testing %d algorithms", len(algos))
	for i, algo := range algos {
		if 0 < s.TimeLimit && s.TimeLimit < s.clock().Sub(start) {
			l.Printf("time limit reached (%s)", s.TimeLimit)
			break
		}
		if err := ctx.Err(); err != nil {
			return Selection{}, err
		}

		algoStart := s.clock()
		scores, err := ev.CrossValidate(ctx, CrossValidation{
			Algorithm:   algo,
			ProblemType: s.ProblemType,
			Dataset:     ds,
			Folds:       s.CVFolds,
			Scoring:     s.ProblemType.Scoring(),
		})
		if err == nil && len(scores) == 0 {
			err = xe.New("no scores")
		}

		p := Progress{Algorithm: algo, Completed: i + 1, Total: len(algos)}
		if err != nil {
			if ctx.Err() != nil {
				return Selection{}, ctx.Err()
			}
			l.Printf("%s failed: %s", algo.Name, err)
			p.Err = err
		} else {
			mean, std := meanStd(scores)
			r := Result{
				Algorithm:    algo.Key,
				Name:         algo.Name,
				MeanScore:    mean,
				StdScore:     std,
				CVScores:     scores,
				TrainingTime: s.clock().Sub(algoStart).Seconds(),
			}
			s.results = append(s.results, r)
			if bestScore == nil || *bestScore < mean {
				bestScore = &mean
				a := algo
				s.best = &a
			}
			l.Printf(
				"%s %s: %.4f (±%.4f) [%.2fs]",
				algo.Name, s.ProblemType.MetricName(), mean, std, r.TrainingTime,
			)
			p.Result = &r
		}

		if s.best != nil {
			p.Best = s.best.Key
			p.BestScore = bestScore
		}
		if s.OnProgress != nil {
			if err := s.OnProgress(p); err != nil {
				return Selection{}, err
			}
		}
	}

	slices.SortStableFunc(s.results, func(a, b Result) int {
		switch {
		case a.MeanScore > b.MeanScore:
			return -1
		case a.MeanScore < b.MeanScore:
			return 1
		}
		return 0
	})

	sel := Selection{
		BestScore:  bestScore,
		AllResults: slices.Clone(s.results),
		TotalTime:  s.clock().Sub(start).Seconds(),
	}
	if s.best != nil {
		sel.BestAlgorithm = s.best.Key
		sel.BestAlgorithmName = s.best.Name
		l.Printf("best algorithm: %s (%s %.4f)", s.best.Name, s.ProblemType.MetricName(), *bestScore)
	}
	return sel, nil
}

// TrainBest trains the algorithm selected by the last SelectBest on the whole dataset.
func (s *Selector) TrainBest(ctx context.Context, tr Trainer, ds Dataset) (string, error) {
	if s.best == nil {
		return "", ErrNotSelected
	}
	return tr.Train(ctx, Training{Algorithm: *s.best, ProblemType: s.ProblemType, Dataset: ds})
}

// Comparison ranks results of the last SelectBest.
func (s *Selector) Comparison() []ComparisonRow {
	rows := make([]ComparisonRow, len(s.results))
	for i, r := range s.results {
		rows[i] = ComparisonRow{
			Rank:         i + 1,
			Name:         r.Name,
			MeanScore:    r.MeanScore,
			StdScore:     r.StdScore,
			TrainingTime: r.TrainingTime,
		}
	}
	return rows
}

// meanStd returns the mean and the population standard deviation.
func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(xs, nil)
}
