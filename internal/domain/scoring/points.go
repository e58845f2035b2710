package scoring

import (
	"regexp"
	"time"

	"github.com/okian/devrank/pkg/metrics"
)

// camelCaseName matches names built from two or more capitalised words,
// e.g. "DevRank" or "myToolKit".
var camelCaseName = regexp.MustCompile(`^[a-zA-Z][a-z0-9]+(?:[A-Z][a-z0-9]+)+$`)

const (
	pointsPerRepo          = 1
	pointsMultiContributor = 2
	pointsReadme           = 1
	pointsCamelCase        = 1
)

// IsCamelCase reports whether a repository name earns the naming point.
func IsCamelCase(name string) bool {
	return camelCaseName.MatchString(name)
}

// RepoPoints returns the points a single repository contributes.
func RepoPoints(r RepoSignal) int64 {
	p := int64(pointsPerRepo)
	if r.Contributors > 1 {
		p += pointsMultiContributor
	}
	if r.HasReadme {
		p += pointsReadme
	}
	if IsCamelCase(r.Name) {
		p += pointsCamelCase
	}
	return p + r.Commits
}

// ComputePoints runs the repo-signal heuristic.
func (e *Engine) ComputePoints(username string, repos []RepoSignal) (ScoreResult, error) {
	start := time.Now()
	var total int64
	for _, r := range repos {
		if r.Contributors < 0 {
			metrics.RecordInvalidInput("contributors")
			return ScoreResult{}, &InvalidMetricError{Field: "contributors", Value: float64(r.Contributors)}
		}
		if r.Commits < 0 {
			metrics.RecordInvalidInput("repo_commits")
			return ScoreResult{}, &InvalidMetricError{Field: "repo_commits", Value: float64(r.Commits)}
		}
		total += RepoPoints(r)
	}

	res := ScoreResult{
		Username: username,
		Mode:     ModePointThreshold,
		Points:   total,
		Grade:    e.pointGrade(total),
	}
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordScoreComputed(string(res.Mode), res.Grade)
	return res, nil
}

func (e *Engine) pointGrade(points int64) string {
	for _, g := range e.cfg.PointGrades {
		if points >= g.Min {
			return g.Label
		}
	}
	return e.cfg.PointFloor
}
