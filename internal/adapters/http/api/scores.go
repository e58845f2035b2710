package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/devrank/internal/domain/scoring"
)

// ScoreDependencies runs the engine synchronously.
type ScoreDependencies interface {
	// Score evaluates in under mode. With save set the result is stored
	// under in.Username.
	Score(ctx context.Context, mode scoring.Mode, in scoring.MetricsInput, repos []scoring.RepoSignal, save bool) (scoring.ScoreResult, error)
	DefaultMode() scoring.Mode
}

// scoreRequest is the body of POST /v1/scores. The metric counts sit at the top level.
type scoreRequest struct {
	scoring.MetricsInput
	Mode  string               `json:"mode"`
	Repos []scoring.RepoSignal `json:"repos"`
	Save  bool                 `json:"save"`
}

// ScoresHandler handles synchronous score requests.
type ScoresHandler struct {
	deps ScoreDependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoreDependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// HandlePostScore handles POST /v1/scores requests.
func (h *ScoresHandler) HandlePostScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_score"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req scoreRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeFailure(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Save && req.Username == "" {
		writeFailure(r.Context(), w, WrapKind(op, ErrBadRequest, errors.New("username is required to save")))
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

	res, err := h.deps.Score(r.Context(), mode, req.MetricsInput, req.Repos, req.Save)
	if err != nil {
		writeFailure(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
