package scoring

import (
	"math"
	"sort"
)

// Metric names a weighted activity signal.
type Metric string

const (
	MetricCommits   Metric = "commits"
	MetricPulls     Metric = "pulls"
	MetricIssues    Metric = "issues"
	MetricReviews   Metric = "reviews"
	MetricStars     Metric = "stars"
	MetricFollowers Metric = "followers"
)

// WeightedMetrics lists the weighted metrics in evaluation order.
var WeightedMetrics = []Metric{ //nolint:gochecknoglobals // fixed evaluation order
	MetricCommits, MetricPulls, MetricIssues, MetricReviews, MetricStars, MetricFollowers,
}

// MetricWeight is the (weight, median) pair for one metric.
type MetricWeight struct {
	Weight float64 `json:"weight" yaml:"weight"`
	Median float64 `json:"median" yaml:"median"`
}

// GradeThreshold pairs an upper percentile bound with its label.
type GradeThreshold struct {
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Label     string  `json:"label" yaml:"label"`
}

// PointGrade pairs a minimum point total with its label.
type PointGrade struct {
	Min   int64  `json:"min" yaml:"min"`
	Label string `json:"label" yaml:"label"`
}

// WeightConfig is loaded once at start-up and never mutated afterwards.
type WeightConfig struct {
	Weights map[Metric]MetricWeight `json:"weights" yaml:"weights"`
	// Grades must be ascending by Threshold and end at or above 100.
	Grades          []GradeThreshold `json:"grades" yaml:"grades"`
	SmoothingFactor float64          `json:"smoothing_factor" yaml:"smoothing_factor"`
	ScoreDivisor    float64          `json:"score_divisor" yaml:"score_divisor"`
	// PointGrades must be descending by Min; PointFloor applies below the last entry.
	PointGrades []PointGrade `json:"point_grades" yaml:"point_grades"`
	PointFloor  string       `json:"point_floor" yaml:"point_floor"`
	DefaultMode Mode         `json:"default_mode" yaml:"default_mode"`
}

const (
	defaultSmoothingFactor = 0.8
	defaultScoreDivisor    = 30
	percentScale           = 100
	maxSmoothedScore       = 10
)

// DefaultWeightConfig returns the stock weights, medians and grade tables.
func DefaultWeightConfig() WeightConfig {
	return WeightConfig{
		Weights: map[Metric]MetricWeight{
			MetricCommits:   {Weight: 2, Median: 1000},
			MetricPulls:     {Weight: 3, Median: 50},
			MetricIssues:    {Weight: 1, Median: 25},
			MetricReviews:   {Weight: 1, Median: 2},
			MetricStars:     {Weight: 4, Median: 50},
			MetricFollowers: {Weight: 1, Median: 10},
		},
		Grades: []GradeThreshold{
			{1, "S"}, {12.5, "A+"}, {25, "A"}, {37.5, "A-"}, {50, "B+"},
			{62.5, "B"}, {75, "B-"}, {87.5, "C+"}, {100, "C"},
		},
		SmoothingFactor: defaultSmoothingFactor,
		ScoreDivisor:    defaultScoreDivisor,
		PointGrades: []PointGrade{
			{90, "SSS"}, {80, "SS"}, {70, "S"}, {60, "A"}, {40, "B"}, {15, "C"}, {5, "D"},
		},
		PointFloor:  "F",
		DefaultMode: ModeWeightedPercentile,
	}
}

// TotalWeightBase is the sum of all configured weights.
func (c WeightConfig) TotalWeightBase() float64 {
	var total float64
	for _, m := range WeightedMetrics {
		total += c.Weights[m].Weight
	}
	return total
}

// Validate checks the configuration and returns a *ConfigurationError on the first problem.
func (c WeightConfig) Validate() error {
	for _, m := range WeightedMetrics {
		w := c.Weights[m]
		if w.Weight < 0 || math.IsNaN(w.Weight) || math.IsInf(w.Weight, 0) {
			return configErrorf("weight for %s must be a finite non-negative number, got %v", m, w.Weight)
		}
		if math.IsNaN(w.Median) || math.IsInf(w.Median, 0) {
			return configErrorf("median for %s must be finite, got %v", m, w.Median)
		}
	}
	if c.TotalWeightBase() <= 0 {
		return configErrorf("total weight base must be positive")
	}

	if len(c.Grades) == 0 {
		return configErrorf("grade table is empty")
	}
	for i, g := range c.Grades {
		if g.Label == "" {
			return configErrorf("grade at threshold %v has no label", g.Threshold)
		}
		if i > 0 && g.Threshold <= c.Grades[i-1].Threshold {
			return configErrorf("grade thresholds must be strictly ascending")
		}
	}
	if last := c.Grades[len(c.Grades)-1].Threshold; last < percentScale {
		return configErrorf("last grade threshold %v is below %d", last, percentScale)
	}

	if c.SmoothingFactor < 0 || c.SmoothingFactor > 1 || math.IsNaN(c.SmoothingFactor) {
		return configErrorf("smoothing factor %v outside [0,1]", c.SmoothingFactor)
	}
	if !(c.ScoreDivisor > 0) || math.IsInf(c.ScoreDivisor, 0) {
		return configErrorf("score divisor must be positive, got %v", c.ScoreDivisor)
	}

	if !sort.SliceIsSorted(c.PointGrades, func(i, j int) bool {
		return c.PointGrades[i].Min > c.PointGrades[j].Min
	}) {
		return configErrorf("point grades must be descending by minimum")
	}
	for i := 1; i < len(c.PointGrades); i++ {
		if c.PointGrades[i].Min == c.PointGrades[i-1].Min {
			return configErrorf("duplicate point grade minimum %d", c.PointGrades[i].Min)
		}
	}
	if c.PointFloor == "" {
		return configErrorf("point floor label is empty")
	}

	switch c.DefaultMode {
	case ModeWeightedPercentile, ModePointThreshold:
	default:
		return configErrorf("default mode %q is not a known mode", c.DefaultMode)
	}
	return nil
}

// clone deep-copies the slices and map so the engine owns its tables.
func (c WeightConfig) clone() WeightConfig {
	out := c
	out.Weights = make(map[Metric]MetricWeight, len(c.Weights))
	for k, v := range c.Weights {
		out.Weights[k] = v
	}
	out.Grades = append([]GradeThreshold(nil), c.Grades...)
	out.PointGrades = append([]PointGrade(nil), c.PointGrades...)
	return out
}
