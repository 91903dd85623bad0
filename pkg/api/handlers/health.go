package handlers

import (
	"net/http"

	"github.com/libreary/libreary/pkg/archive"
)

// HealthHandler provides liveness and readiness probes.
type HealthHandler struct {
	archive *archive.Archive
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(a *archive.Archive) *HealthHandler {
	return &HealthHandler{archive: a}
}

// Liveness handles GET /health. Always 200 while the process runs.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, map[string]string{"status": "ok"})
}

// Readiness handles GET /health/ready. Ready means the catalog answers.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if _, err := h.archive.ListLevels(r.Context()); err != nil {
		WriteProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "catalog is not reachable")
		return
	}
	WriteJSONOK(w, map[string]string{"status": "ready"})
}
