package worker

import (
	"context"

	"github.com/okian/devrank/internal/adapters/github"
	"github.com/okian/devrank/internal/adapters/repository"
	"github.com/okian/devrank/internal/domain/model"
	"github.com/okian/devrank/internal/domain/scoring"
	"github.com/okian/devrank/internal/domain/techstack"
	"github.com/okian/devrank/pkg/logger"
	"github.com/okian/devrank/pkg/metrics"
)

// Collector fetches a developer's activity.
type Collector interface {
	Collect(ctx context.Context, username string) (*github.Profile, error)
}

// Scorer evaluates collected activity under a mode.
type Scorer interface {
	Evaluate(mode scoring.Mode, in scoring.MetricsInput, repos []scoring.RepoSignal) (scoring.ScoreResult, error)
}

// Saver upserts a developer record.
type Saver interface {
	Save(ctx context.Context, rec repository.Record) (bool, error)
}

// Publisher announces stored records.
type Publisher interface {
	Publish(ctx context.Context, rec repository.Record) error
}

// Pipeline runs one job: collect, score, save, notify.
// It is safe for concurrent use when its collaborators are.
type Pipeline struct {
	collector Collector
	scorer    Scorer
	saver     Saver
	publisher Publisher
	log       logger.Logger
}

// NewPipeline wires the collaborators. A nil publisher disables notifications.
func NewPipeline(c Collector, s Scorer, sv Saver, p Publisher) *Pipeline {
	return &Pipeline{
		collector: c,
		scorer:    s,
		saver:     sv,
		publisher: p,
		log:       logger.GetOrNop().Named("pipeline"),
	}
}

// Process evaluates job and returns the stored record. A failed
// notification is logged but does not fail the job.
func (p *Pipeline) Process(ctx context.Context, job model.Job) (repository.Record, error) {
	if !job.Valid() {
		metrics.RecordEvaluationError("validate")
		return repository.Record{}, &StageError{Stage: "validate", JobID: job.JobID, Err: ErrInvalidJob}
	}

	profile, err := p.collector.Collect(ctx, job.Username)
	if err != nil {
		return repository.Record{}, p.fail(ctx, StageCollect, job, err)
	}

	in := profile.Metrics
	if job.Mode == scoring.ModeWeightedPercentile && in.PreviousScore == nil {
		in.PreviousScore = p.previous(ctx, job.Username)
	}

	result, err := p.scorer.Evaluate(job.Mode, in, profile.Repos)
	if err != nil {
		return repository.Record{}, p.fail(ctx, StageScore, job, err)
	}

	rec := repository.Record{
		DeveloperID:        repository.NormalizeID(job.Username),
		Result:             result,
		Metrics:            in,
		Languages:          profile.Languages,
		Stacks:             techstack.Classify(profile.Languages),
		ContributionDegree: profile.ContributionDegree,
	}
	if _, err := p.saver.Save(ctx, rec); err != nil {
		return repository.Record{}, p.fail(ctx, StageStore, job, err)
	}

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, rec); err != nil {
			metrics.RecordEvaluationError(StageNotify)
			p.log.Warn(ctx, "notification failed",
				logger.String("job_id", job.JobID),
				logger.String("developer_id", rec.DeveloperID),
				logger.Error(err))
		}
	}

	metrics.RecordEvaluationProcessed()
	p.log.Debug(ctx, "job processed",
		logger.String("job_id", job.JobID),
		logger.String("developer_id", rec.DeveloperID),
		logger.String("mode", string(result.Mode)),
		logger.String("grade", result.Grade))
	return rec, nil
}

// previous feeds the stored smoothed score back into smoothing when the
// saver can read records.
func (p *Pipeline) previous(ctx context.Context, username string) *float64 {
	g, ok := p.saver.(repository.Getter)
	if !ok {
		return nil
	}
	prev, err := repository.PreviousScore(ctx, g, username)
	if err != nil {
		p.log.Warn(ctx, "previous score lookup failed", logger.String("username", username), logger.Error(err))
		return nil
	}
	return prev
}

func (p *Pipeline) fail(ctx context.Context, stage string, job model.Job, err error) error {
	metrics.RecordEvaluationError(stage)
	metrics.RecordErrorByComponent("worker", stage+"_error")
	p.log.Error(ctx, "job failed",
		logger.String("job_id", job.JobID),
		logger.String("username", job.Username),
		logger.String("stage", stage),
		logger.Error(err))
	return &StageError{Stage: stage, JobID: job.JobID, Err: err}
}
