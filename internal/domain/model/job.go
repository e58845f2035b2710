// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/devrank/internal/domain/scoring"
)

// Job asks the worker pool to fetch, score and store one developer.
type Job struct {
	JobID       string       // request id used for idempotency
	Username    string       // GitHub login, also the developer id
	Mode        scoring.Mode // heuristic to apply
	RequestedAt time.Time
}

// Valid reports whether the job can be processed.
func (j Job) Valid() bool {
	return j.JobID != "" && j.Username != "" &&
		(j.Mode == scoring.ModeWeightedPercentile || j.Mode == scoring.ModePointThreshold)
}
