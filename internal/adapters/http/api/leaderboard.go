package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/devrank/internal/domain/scoring"
)

const defaultLeaderboardLimit = 10

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	TopN(ctx context.Context, mode scoring.Mode, n int) ([]Entry, error)
	DefaultMode() scoring.Mode
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	if maxLimit < 1 {
		maxLimit = 100
	}
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetLeaderboard handles GET /leaderboard?limit=N&mode=M requests.
// limit defaults to 10 and mode to the configured default.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	n := min(defaultLeaderboardLimit, h.maxLimit)
	if s := q.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			writeFailure(r.Context(), w, WrapKind(op, ErrBadRequest, fmt.Errorf("invalid limit %q", s)))
			return
		}
		if v > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded",
				WrapKind(op, ErrBadRequest, fmt.Errorf("limit must be at most %d", h.maxLimit)))
			return
		}
		n = v
	}
	mode := h.deps.DefaultMode()
	if s := q.Get("mode"); s != "" {
		m, err := scoring.ParseMode(s)
		if err != nil {
			writeFailure(r.Context(), w, err)
			return
		}
		mode = m
	}

	entries, err := h.deps.TopN(r.Context(), mode, n)
	if err != nil {
		writeFailure(r.Context(), w, Wrap(op, err))
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
