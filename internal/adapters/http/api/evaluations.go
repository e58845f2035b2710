package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/devrank/internal/domain/dedupe"
	"github.com/okian/devrank/internal/domain/model"
	"github.com/okian/devrank/internal/domain/scoring"
)

// EvaluationDependencies defines what asynchronous evaluation needs.
type EvaluationDependencies interface {
	dedupe.Deduper
	// Enqueue hands job to the worker pool without blocking.
	Enqueue(ctx context.Context, job model.Job) error
	DefaultMode() scoring.Mode
}

// evaluationRequest is the body of POST /v1/evaluations.
type evaluationRequest struct {
	RequestID string `json:"request_id"`
	Username  string `json:"username"`
	Mode      string `json:"mode"`
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	JobID     string `json:"job_id"`
}

// EvaluationsHandler handles evaluation requests.
type EvaluationsHandler struct {
	deps EvaluationDependencies
	now  func() time.Time
}

// NewEvaluationsHandler creates a new evaluations handler.
func NewEvaluationsHandler(deps EvaluationDependencies) *EvaluationsHandler {
	return &EvaluationsHandler{deps: deps, now: time.Now}
}

// HandlePostEvaluation handles POST /v1/evaluations requests.
func (h *EvaluationsHandler) HandlePostEvaluation(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_evaluation"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req evaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeFailure(r.Context(), w, WrapKind(op, ErrBadRequest, errors.New("missing username")))
		return
	}
	mode := h.deps.DefaultMode()
	if req.Mode != "" {
		m, err := scoring.ParseMode(req.Mode)
		if err != nil {
			writeFailure(r.Context(), w, err)
			return
		}
		mode = m
	}
	if strings.TrimSpace(req.RequestID) == "" {
		req.RequestID = uuid.NewString()
	}

	// Idempotency check - mark as seen first
	if h.deps.SeenAndRecord(r.Context(), req.RequestID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true, JobID: req.RequestID})
		return
	}

	job := model.Job{JobID: req.RequestID, Username: req.Username, Mode: mode, RequestedAt: h.now()}
	if err := h.deps.Enqueue(r.Context(), job); err != nil {
		// Forget the id so the client may retry once the queue drains.
		h.deps.Unrecord(r.Context(), req.RequestID)
		writeFailure(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", JobID: req.RequestID})
}
