package automl

import (
	"context"
	"errors"
	"fmt"

	kautoml "github.com/opst/mlengine/pkg/automl"
	"github.com/opst/mlengine/pkg/domain"
	"github.com/opst/mlengine/pkg/engine"
	"github.com/opst/mlengine/pkg/loop"
)

type polling struct {
	polls    int
	progress engine.Progress

	// lastErr is the error of the last poll, cleared by a successful one.
	lastErr error
}

// terminal tells the engine job will not change anymore.
// Other statuses, "queued" or "pending" for example, are waited on.
func terminal(status string) bool {
	switch status {
	case engine.StatusCompleted, engine.StatusFailed, engine.StatusStopped:
		return true
	}
	return false
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func asProgress(p engine.Progress) domain.AutoMLProgress {
	return domain.AutoMLProgress{
		Progress:            deref(p.Progress),
		CurrentAlgorithm:    p.CurrentAlgorithm,
		AlgorithmsCompleted: deref(p.AlgorithmsCompleted),
		AlgorithmsTotal:     deref(p.AlgorithmsTotal),
		BestAlgorithm:       p.CurrentBestAlgorithm,
		BestScore:           p.CurrentBestScore,
	}
}

func asLeaderboard(lb []engine.LeaderboardEntry) []domain.LeaderboardEntry {
	ret := make([]domain.LeaderboardEntry, 0, len(lb))
	for _, e := range lb {
		ret = append(ret, domain.LeaderboardEntry{
			Algorithm:    e.Algorithm,
			Name:         e.Algorithm,
			MeanScore:    e.Score,
			TrainingTime: e.TrainingTime,
			Metrics:      e.Metrics,
		})
	}
	return ret
}

// asFeatureImportance ranks features by importance,
// ignoring ranks given by the engine.
func asFeatureImportance(fi []engine.FeatureImportance) []domain.FeatureImportance {
	ret := make([]domain.FeatureImportance, 0, len(fi))
	for _, f := range fi {
		ret = append(ret, domain.FeatureImportance{Feature: f.Feature, Importance: f.Importance})
	}
	return domain.RankFeatures(ret)
}

// remote runs whole of the job on the engine, and polls it until it ends.
func (r *runner) remote(ctx context.Context, job domain.AutoMLJob, data kautoml.Dataset) (domain.AutoMLResult, error) {
	engineJobId, err := r.engine.StartAutoML(ctx, engine.AutoMLRequest{
		DatasetPath:  data.Path,
		TargetColumn: data.TargetColumn,
		ProblemType:  job.ProblemType.String(),
		CVFolds:      job.CVFolds,
	})
	if err != nil {
		return failed(fmt.Errorf("failed to start on ML engine: %w", err), domain.AutoMLProgress{}), nil
	}
	if err := r.jobs.SetEngineJobId(ctx, job.Id, engineJobId); err != nil {
		return domain.AutoMLResult{}, err
	}

	stopEngine := func() {
		if err := r.engine.StopAutoML(context.WithoutCancel(ctx), engineJobId); err != nil {
			r.logger.Printf("job %s: failed to stop engine job %s: %v", job.Id, engineJobId, err)
		}
	}

	last, err := loop.Start(ctx, polling{}, func(ctx context.Context, p polling) (polling, loop.Next) {
		if 0 < r.conf.MaxPolls && r.conf.MaxPolls <= p.polls {
			return p, loop.Break(nil)
		}
		progress, err := r.engine.AutoMLProgress(ctx, engineJobId)
		p.polls += 1
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return p, loop.Break(cerr)
			}
			r.logger.Printf("job %s: polling engine job %s failed, retrying: %v", job.Id, engineJobId, err)
			p.lastErr = err
			return p, loop.Continue(r.conf.PollInterval)
		}
		p.lastErr = nil
		p.progress = progress

		if terminal(progress.Status) {
			return p, loop.Break(nil)
		}
		status := domain.AutoMLStarting
		if progress.Status == engine.StatusRunning {
			status = domain.AutoMLTraining
		}
		if err := r.update(ctx, job.Id, status, asProgress(progress)); err != nil {
			return p, loop.Break(err)
		}
		return p, loop.Continue(r.conf.PollInterval)
	})

	progress := asProgress(last.progress)
	switch {
	case errors.Is(err, errStopped):
		stopEngine()
		return domain.AutoMLResult{}, err
	case err != nil:
		return failed(fmt.Errorf("failed to watch ML engine: %w", err), progress), nil
	}

	switch last.progress.Status {
	case engine.StatusCompleted:
	case engine.StatusFailed:
		msg := last.progress.ErrorMessage
		if msg == "" {
			msg = "failed on ML engine"
		}
		return failed(errors.New(msg), progress), nil
	case engine.StatusStopped:
		return domain.AutoMLResult{Status: domain.AutoMLStopped, Progress: progress}, nil
	default:
		stopEngine()
		if last.lastErr != nil {
			return failed(fmt.Errorf("timed out after %d polls: %w", last.polls, last.lastErr), progress), nil
		}
		return failed(fmt.Errorf("timed out after %d polls", last.polls), progress), nil
	}

	results, err := r.engine.AutoMLResults(ctx, engineJobId)
	if err != nil {
		return failed(fmt.Errorf("failed to get results from ML engine: %w", err), progress), nil
	}
	best := results.BestScore
	progress.Progress = 100
	progress.CurrentAlgorithm = ""
	progress.BestAlgorithm = results.BestAlgorithm
	progress.BestScore = &best
	progress.Leaderboard = asLeaderboard(results.Leaderboard)
	return domain.AutoMLResult{
		Status:            domain.AutoMLCompleted,
		ModelId:           results.ModelID,
		Progress:          progress,
		FeatureImportance: asFeatureImportance(results.FeatureImportance),
	}, nil
}
