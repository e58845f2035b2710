package scoring

import (
	"fmt"
	"strings"
)

// Mode selects one of the two scoring heuristics. They are not numerically
// compatible and are never combined.
type Mode string

const (
	ModeWeightedPercentile Mode = "weighted_percentile"
	ModePointThreshold     Mode = "point_threshold"
)

// ParseMode accepts the canonical names plus the short aliases "weighted" and "points".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ModeWeightedPercentile), "weighted", "percentile":
		return ModeWeightedPercentile, nil
	case string(ModePointThreshold), "points", "point":
		return ModePointThreshold, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

func (m Mode) String() string { return string(m) }

// DefaultPreviousScore is used for smoothing when no earlier score exists.
const DefaultPreviousScore = 5.0

// MetricsInput holds the aggregated activity counts for one developer.
type MetricsInput struct {
	Username  string `json:"username" yaml:"username"`
	Commits   int64  `json:"commits" yaml:"commits"`
	Pulls     int64  `json:"pulls" yaml:"pulls"`
	Issues    int64  `json:"issues" yaml:"issues"`
	Reviews   int64  `json:"reviews" yaml:"reviews"`
	Stars     int64  `json:"stars" yaml:"stars"`
	Followers int64  `json:"followers" yaml:"followers"`
	// Forks is collected for display only and carries no weight.
	Forks int64 `json:"forks" yaml:"forks"`
	// PreviousScore is nil when the developer was never scored before.
	PreviousScore *float64 `json:"previous_score,omitempty" yaml:"previous_score,omitempty"`
}

// Previous returns the smoothing input, defaulting to DefaultPreviousScore.
func (m MetricsInput) Previous() float64 {
	if m.PreviousScore == nil {
		return DefaultPreviousScore
	}
	return *m.PreviousScore
}

// RepoSignal holds the per-repository facts used by point mode.
type RepoSignal struct {
	Name         string `json:"name" yaml:"name"`
	Contributors int64  `json:"contributors" yaml:"contributors"`
	HasReadme    bool   `json:"has_readme" yaml:"has_readme"`
	Commits      int64  `json:"commits" yaml:"commits"`
}

// ScoreResult is the immutable output of one evaluation.
type ScoreResult struct {
	Username      string  `json:"username" yaml:"username"`
	Mode          Mode    `json:"mode" yaml:"mode"`
	RawRatio      float64 `json:"raw_ratio" yaml:"raw_ratio"`
	RawPercentile float64 `json:"raw_percentile" yaml:"raw_percentile"`
	SmoothedScore float64 `json:"smoothed_score" yaml:"smoothed_score"`
	Grade         string  `json:"grade" yaml:"grade"`
	Points        int64   `json:"points,omitempty" yaml:"points,omitempty"`
}

// RankValue is the number a leaderboard orders this result by.
func (r ScoreResult) RankValue() float64 {
	if r.Mode == ModePointThreshold {
		return float64(r.Points)
	}
	return r.RawPercentile
}
