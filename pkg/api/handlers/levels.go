package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/libreary/libreary/pkg/archive"
	"github.com/libreary/libreary/pkg/catalog"
)

// LevelHandler handles durability level API endpoints.
type LevelHandler struct {
	archive *archive.Archive
}

// NewLevelHandler creates a new LevelHandler.
func NewLevelHandler(a *archive.Archive) *LevelHandler {
	return &LevelHandler{archive: a}
}

// CreateLevelRequest is the request body for POST /api/v1/levels.
type CreateLevelRequest struct {
	Name      string               `json:"name"`
	Frequency int                  `json:"frequency,omitempty"` // seconds
	Copies    int                  `json:"copies,omitempty"`
	Adapters  []catalog.AdapterRef `json:"adapters"`
}

// LevelResponse is the response body for level endpoints.
type LevelResponse struct {
	Name      string               `json:"name"`
	Frequency int                  `json:"frequency"`
	Copies    int                  `json:"copies"`
	Adapters  []catalog.AdapterRef `json:"adapters"`
}

func levelToResponse(l *catalog.Level) (LevelResponse, error) {
	refs, err := l.AdapterRefs()
	if err != nil {
		return LevelResponse{}, err
	}
	return LevelResponse{
		Name:      l.Name,
		Frequency: l.Frequency,
		Copies:    l.Copies,
		Adapters:  refs,
	}, nil
}

// Create handles POST /api/v1/levels.
func (h *LevelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLevelRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		BadRequest(w, "Level name is required")
		return
	}
	if len(req.Adapters) == 0 {
		BadRequest(w, "At least one adapter is required")
		return
	}

	if err := h.archive.AddLevel(r.Context(), req.Name, req.Frequency, req.Copies, req.Adapters); err != nil {
		writeArchiveError(w, err)
		return
	}

	l, err := h.archive.Catalog().GetLevel(r.Context(), req.Name)
	if err != nil {
		writeArchiveError(w, err)
		return
	}
	response, err := levelToResponse(l)
	if err != nil {
		InternalServerError(w, err.Error())
		return
	}
	WriteJSONCreated(w, response)
}

// List handles GET /api/v1/levels.
func (h *LevelHandler) List(w http.ResponseWriter, r *http.Request) {
	levels, err := h.archive.ListLevels(r.Context())
	if err != nil {
		writeArchiveError(w, err)
		return
	}

	response := make([]LevelResponse, 0, len(levels))
	for _, l := range levels {
		lr, err := levelToResponse(l)
		if err != nil {
			InternalServerError(w, err.Error())
			return
		}
		response = append(response, lr)
	}
	WriteJSONOK(w, response)
}

// Delete handles DELETE /api/v1/levels/{name}.
func (h *LevelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.archive.DeleteLevel(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeArchiveError(w, err)
		return
	}
	WriteNoContent(w)
}
