// Package scoring turns aggregated developer activity into a percentile,
// a smoothed 0-10 score and a letter grade. It performs no I/O.
package scoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/devrank/pkg/logger"
	"github.com/okian/devrank/pkg/metrics"
)

// Engine evaluates metrics against a validated WeightConfig. It is immutable
// after construction and safe for concurrent use.
type Engine struct {
	cfg         WeightConfig
	medians     map[Metric]float64
	totalWeight float64
	log         logger.Logger
}

// NewEngine validates cfg once and returns an engine bound to it.
func NewEngine(cfg WeightConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:         cfg.clone(),
		medians:     make(map[Metric]float64, len(WeightedMetrics)),
		totalWeight: cfg.TotalWeightBase(),
		log:         logger.GetOrNop().Named("scoring"),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, m := range WeightedMetrics {
		median := e.cfg.Weights[m].Median
		if median <= 0 {
			e.log.Warn(context.Background(), "non-positive median replaced by 1",
				logger.String("metric", string(m)),
				logger.Float64("median", median))
			metrics.RecordDegenerateMedian(string(m))
		}
		e.medians[m] = math.Max(median, 1)
	}
	return e, nil
}

// ComputeScore is the one-shot form of Engine.Compute.
func ComputeScore(in MetricsInput, cfg WeightConfig) (ScoreResult, error) {
	e, err := NewEngine(cfg)
	if err != nil {
		return ScoreResult{}, err
	}
	return e.Compute(in)
}

// Config returns a copy of the engine's configuration.
func (e *Engine) Config() WeightConfig { return e.cfg.clone() }

// DefaultMode is the mode used when a caller does not pick one.
func (e *Engine) DefaultMode() Mode { return e.cfg.DefaultMode }

// Evaluate dispatches on mode. repos is only read in point mode.
func (e *Engine) Evaluate(mode Mode, in MetricsInput, repos []RepoSignal) (ScoreResult, error) {
	switch mode {
	case ModeWeightedPercentile:
		return e.Compute(in)
	case ModePointThreshold:
		return e.ComputePoints(in.Username, repos)
	default:
		return ScoreResult{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// Compute runs the weighted percentile heuristic.
func (e *Engine) Compute(in MetricsInput) (ScoreResult, error) {
	start := time.Now()
	if err := validateInput(in); err != nil {
		metrics.RecordInvalidInput(err.(*InvalidMetricError).Field) //nolint:errorlint // validateInput only returns this type
		return ScoreResult{}, err
	}

	ratio := e.rawRatio(in)
	percentile := ratio * percentScale

	res := ScoreResult{
		Username:      in.Username,
		Mode:          ModeWeightedPercentile,
		RawRatio:      ratio,
		RawPercentile: percentile,
		SmoothedScore: e.smooth(percentile, in.Previous()),
		Grade:         e.grade(percentile),
	}

	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordScoreComputed(string(res.Mode), res.Grade)
	return res, nil
}

func (e *Engine) rawRatio(in MetricsInput) float64 {
	var sum float64
	for _, m := range WeightedMetrics {
		sum += e.cfg.Weights[m].Weight * float64(valueOf(in, m)) / e.medians[m]
	}
	return sum / e.totalWeight
}

func (e *Engine) smooth(percentile, previous float64) float64 {
	f := e.cfg.SmoothingFactor
	blended := f*percentile + (1-f)*previous
	v := blended / e.cfg.ScoreDivisor
	v = math.Max(0, math.Min(maxSmoothedScore, v))
	return math.Round(v*10) / 10
}

// grade scans the ascending table; the first threshold >= percentile wins.
// Percentiles above the last threshold take the last label.
func (e *Engine) grade(percentile float64) string {
	for _, g := range e.cfg.Grades {
		if percentile <= g.Threshold {
			return g.Label
		}
	}
	return e.cfg.Grades[len(e.cfg.Grades)-1].Label
}

func valueOf(in MetricsInput, m Metric) int64 {
	switch m {
	case MetricCommits:
		return in.Commits
	case MetricPulls:
		return in.Pulls
	case MetricIssues:
		return in.Issues
	case MetricReviews:
		return in.Reviews
	case MetricStars:
		return in.Stars
	case MetricFollowers:
		return in.Followers
	}
	return 0
}

func validateInput(in MetricsInput) error {
	for _, m := range WeightedMetrics {
		if v := valueOf(in, m); v < 0 {
			return &InvalidMetricError{Field: string(m), Value: float64(v)}
		}
	}
	if in.Forks < 0 {
		return &InvalidMetricError{Field: "forks", Value: float64(in.Forks)}
	}
	if p := in.PreviousScore; p != nil && (math.IsNaN(*p) || *p < 0 || *p > maxSmoothedScore) {
		return &InvalidMetricError{Field: "previous_score", Value: *p}
	}
	return nil
}
