package worker

import (
	"errors"
	"fmt"
)

// Sentinel kinds for worker errors.
var (
	ErrInvalidJob = errors.New("invalid job")
	ErrStopped    = errors.New("worker stopped")
)

// Pipeline stages, also used as metric labels.
const (
	StageCollect = "collect"
	StageScore   = "score"
	StageStore   = "store"
	StageNotify  = "notify"
)

// StageError reports which step of a job failed.
type StageError struct {
	Stage string
	JobID string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("job %s: %s: %v", e.JobID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
