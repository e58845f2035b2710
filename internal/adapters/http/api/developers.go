package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/devrank/internal/adapters/repository"
)

// DeveloperDependencies reads stored developer records.
type DeveloperDependencies interface {
	Developer(ctx context.Context, id string) (repository.Record, error)
}

// DeveloperHandler handles developer lookups.
type DeveloperHandler struct {
	deps DeveloperDependencies
}

// NewDeveloperHandler creates a new developer handler.
func NewDeveloperHandler(deps DeveloperDependencies) *DeveloperHandler {
	return &DeveloperHandler{deps: deps}
}

// HandleGetDeveloper handles GET /v1/developers/{id} requests.
func (h *DeveloperHandler) HandleGetDeveloper(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_developer"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id, ok := pathID(r.URL.Path, "/v1/developers/")
	if !ok {
		writeFailure(r.Context(), w, NewKind(op, ErrBadRequest))
		return
	}
	rec, err := h.deps.Developer(r.Context(), id)
	if err != nil {
		writeFailure(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// pathID extracts the single segment following prefix.
func pathID(path, prefix string) (string, bool) {
	id := strings.TrimPrefix(path, prefix)
	if id == "" || id == path || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
