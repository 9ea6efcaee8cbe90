package automl

import (
	"context"
	"errors"
	"path/filepath"

	kautoml "github.com/opst/mlengine/pkg/automl"
	"github.com/opst/mlengine/pkg/domain"
)

// local selects the best algorithm in this process, with the engine scoring each of them.
func (r *runner) local(ctx context.Context, job domain.AutoMLJob, data kautoml.Dataset) (domain.AutoMLResult, error) {
	sel := kautoml.NewSelector(job.ProblemType)
	sel.CVFolds = job.CVFolds
	sel.TimeLimit = job.TimeLimit()
	sel.NAlgorithms = job.NAlgorithms
	sel.Logger = r.logger

	candidates, err := sel.Candidates()
	if err != nil {
		return failed(err, domain.AutoMLProgress{}), nil
	}

	progress := domain.AutoMLProgress{AlgorithmsTotal: len(candidates)}
	if err := r.update(ctx, job.Id, domain.AutoMLValidating, progress); err != nil {
		return domain.AutoMLResult{}, err
	}

	results := []kautoml.Result{}
	sel.OnProgress = func(p kautoml.Progress) error {
		if p.Result != nil {
			results = append(results, *p.Result)
		}
		progress.Progress = domain.Percent(p.Completed, p.Total)
		progress.CurrentAlgorithm = p.Algorithm.Name
		progress.AlgorithmsCompleted = p.Completed
		progress.AlgorithmsTotal = p.Total
		progress.BestAlgorithm = p.Best
		progress.BestScore = p.BestScore
		progress.Leaderboard = domain.AsLeaderboard(results)
		return r.update(ctx, job.Id, domain.AutoMLValidating, progress)
	}

	selection, err := sel.SelectBest(ctx, r.engine, data)
	if errors.Is(err, errStopped) {
		return domain.AutoMLResult{}, err
	} else if err != nil {
		return failed(err, progress), nil
	}

	progress.Leaderboard = domain.AsLeaderboard(selection.AllResults)
	if selection.BestScore == nil {
		return failed(errors.New("every algorithm failed"), progress), nil
	}
	progress.BestAlgorithm = selection.BestAlgorithm
	progress.BestScore = selection.BestScore
	progress.CurrentAlgorithm = selection.BestAlgorithmName

	if err := r.update(ctx, job.Id, domain.AutoMLTraining, progress); err != nil {
		return domain.AutoMLResult{}, err
	}

	modelId, err := sel.TrainBest(ctx, r.engine, data)
	if err != nil {
		return failed(err, progress), nil
	}

	if r.conf.ReportRoot != "" {
		dir := filepath.Join(r.conf.ReportRoot, job.Id)
		if err := selection.WriteReport(dir, job.ProblemType); err != nil {
			r.logger.Printf("job %s: failed to write report: %v", job.Id, err)
		} else {
			r.logger.Printf("job %s: report is written in %s", job.Id, dir)
		}
	}

	progress.Progress = 100
	progress.CurrentAlgorithm = ""
	return domain.AutoMLResult{
		Status:   domain.AutoMLCompleted,
		ModelId:  modelId,
		Progress: progress,
	}, nil
}
