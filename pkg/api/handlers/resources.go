package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/libreary/libreary/pkg/archive"
	"github.com/libreary/libreary/pkg/catalog"
)

// ResourceHandler handles resource management API endpoints.
type ResourceHandler struct {
	archive *archive.Archive
}

// NewResourceHandler creates a new ResourceHandler.
func NewResourceHandler(a *archive.Archive) *ResourceHandler {
	return &ResourceHandler{archive: a}
}

// IngestRequest is the request body for POST /api/v1/resources.
// Path names a staged file readable by the server process.
type IngestRequest struct {
	Path             string            `json:"path"`
	Levels           []string          `json:"levels"`
	Description      string            `json:"description,omitempty"`
	DeleteAfterStore bool              `json:"delete_after_store,omitempty"`
	MetadataSchema   string            `json:"metadata_schema,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// ResourceResponse is the response body for resource endpoints.
type ResourceResponse struct {
	UUID             string   `json:"uuid"`
	Filename         string   `json:"filename"`
	Checksum         string   `json:"checksum"`
	CanonicalLocator string   `json:"canonical_locator"`
	Levels           []string `json:"levels"`
	Description      string   `json:"description,omitempty"`
}

func resourceToResponse(r *catalog.Resource) ResourceResponse {
	return ResourceResponse{
		UUID:             r.UUID,
		Filename:         r.Filename,
		Checksum:         r.Checksum,
		CanonicalLocator: r.CanonicalLocator,
		Levels:           r.LevelNames(),
		Description:      r.Description,
	}
}

// Create handles POST /api/v1/resources.
func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		BadRequest(w, "Staged file path is required")
		return
	}
	if len(req.Levels) == 0 {
		BadRequest(w, "At least one level is required")
		return
	}

	id, err := h.archive.Ingest(r.Context(), archive.IngestRequest{
		Path:             req.Path,
		Levels:           req.Levels,
		Description:      req.Description,
		DeleteAfterStore: req.DeleteAfterStore,
		MetadataSchema:   req.MetadataSchema,
		Metadata:         req.Metadata,
	})
	if err != nil {
		writeArchiveError(w, err)
		return
	}

	resource, err := h.archive.GetResourceInfo(r.Context(), id)
	if err != nil {
		writeArchiveError(w, err)
		return
	}
	WriteJSONCreated(w, resourceToResponse(resource))
}

// List handles GET /api/v1/resources. An optional ?q= term searches filename,
// locator, UUID, and description.
func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		resources []*catalog.Resource
		err       error
	)
	if term := r.URL.Query().Get("q"); term != "" {
		resources, err = h.archive.Search(r.Context(), term)
	} else {
		resources, err = h.archive.ListResources(r.Context())
	}
	if err != nil {
		writeArchiveError(w, err)
		return
	}

	response := make([]ResourceResponse, len(resources))
	for i, res := range resources {
		response[i] = resourceToResponse(res)
	}
	WriteJSONOK(w, response)
}

// Get handles GET /api/v1/resources/{uuid}.
func (h *ResourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	resource, err := h.archive.GetResourceInfo(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		writeArchiveError(w, err)
		return
	}
	WriteJSONOK(w, resourceToResponse(resource))
}

// Delete handles DELETE /api/v1/resources/{uuid}.
func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.archive.Delete(r.Context(), chi.URLParam(r, "uuid")); err != nil {
		writeArchiveError(w, err)
		return
	}
	WriteNoContent(w)
}

// UpdateContentRequest is the request body for PUT /api/v1/resources/{uuid}/content.
type UpdateContentRequest struct {
	Path string `json:"path"`
}

// UpdateContent handles PUT /api/v1/resources/{uuid}/content.
func (h *ResourceHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	var req UpdateContentRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		BadRequest(w, "Staged file path is required")
		return
	}

	id := chi.URLParam(r, "uuid")
	if err := h.archive.Update(r.Context(), id, req.Path); err != nil {
		writeArchiveError(w, err)
		return
	}

	resource, err := h.archive.GetResourceInfo(r.Context(), id)
	if err != nil {
		writeArchiveError(w, err)
		return
	}
	WriteJSONOK(w, resourceToResponse(resource))
}

// ChangeLevelsRequest is the request body for PUT /api/v1/resources/{uuid}/levels.
type ChangeLevelsRequest struct {
	Levels []string `json:"levels"`
}

// ChangeLevels handles PUT /api/v1/resources/{uuid}/levels.
func (h *ResourceHandler) ChangeLevels(w http.ResponseWriter, r *http.Request) {
	var req ChangeLevelsRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "uuid")
	if err := h.archive.ChangeLevel(r.Context(), id, req.Levels); err != nil {
		writeArchiveError(w, err)
		return
	}

	resource, err := h.archive.GetResourceInfo(r.Context(), id)
	if err != nil {
		writeArchiveError(w, err)
		return
	}
	WriteJSONOK(w, resourceToResponse(resource))
}

// RetrieveResponse is the response body for POST /api/v1/resources/{uuid}/retrieve.
type RetrieveResponse struct {
	Path string `json:"path"`
}

// Retrieve handles POST /api/v1/resources/{uuid}/retrieve. The resource is
// materialized into the output directory and the path returned.
func (h *ResourceHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	path, err := h.archive.Retrieve(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		writeArchiveError(w, err)
		return
	}
	WriteJSONOK(w, RetrieveResponse{Path: path})
}

// CopyResponse is one row of GET /api/v1/resources/{uuid}/copies.
type CopyResponse struct {
	Adapter   string `json:"adapter"`
	Type      string `json:"type"`
	Canonical bool   `json:"canonical"`
	Checksum  string `json:"checksum"`
	Matches   bool   `json:"matches"`
}

// Copies handles GET /api/v1/resources/{uuid}/copies.
func (h *ResourceHandler) Copies(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.archive.SummarizeCopies(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		writeArchiveError(w, err)
		return
	}

	response := make([]CopyResponse, len(statuses))
	for i, s := range statuses {
		response[i] = CopyResponse{
			Adapter:   s.Adapter,
			Type:      s.Type,
			Canonical: s.Canonical,
			Checksum:  s.Checksum,
			Matches:   s.Matches,
		}
	}
	WriteJSONOK(w, response)
}

// CheckRequest is the request body for POST /api/v1/resources/{uuid}/check.
type CheckRequest struct {
	Deep   bool `json:"deep,omitempty"`
	Repair bool `json:"repair,omitempty"`
}

// CheckResultResponse is one row of a check response.
type CheckResultResponse struct {
	Adapter  string `json:"adapter"`
	State    string `json:"state"`
	Repaired bool   `json:"repaired"`
}

// Check handles POST /api/v1/resources/{uuid}/check.
func (h *ResourceHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	results, err := h.archive.CheckSingleResource(r.Context(), chi.URLParam(r, "uuid"), req.Deep, req.Repair)
	if err != nil {
		writeArchiveError(w, err)
		return
	}

	response := make([]CheckResultResponse, len(results))
	for i, res := range results {
		response[i] = CheckResultResponse{
			Adapter:  res.Adapter,
			State:    res.State.String(),
			Repaired: res.Repaired,
		}
	}
	WriteJSONOK(w, response)
}

// MetadataRequest is the request body for PUT /api/v1/resources/{uuid}/metadata.
type MetadataRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// MetadataEntry is one row of GET /api/v1/resources/{uuid}/metadata.
type MetadataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SetMetadata handles PUT /api/v1/resources/{uuid}/metadata.
func (h *ResourceHandler) SetMetadata(w http.ResponseWriter, r *http.Request) {
	var req MetadataRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Key == "" {
		BadRequest(w, "Metadata key is required")
		return
	}

	if err := h.archive.SetObjectMetadata(r.Context(), chi.URLParam(r, "uuid"), req.Key, req.Value); err != nil {
		writeArchiveError(w, err)
		return
	}
	WriteNoContent(w)
}

// SchemaRequest is the request body for PUT /api/v1/resources/{uuid}/schema.
type SchemaRequest struct {
	Schema string `json:"schema"`
}

// SchemaResponse is the response body for GET /api/v1/resources/{uuid}/schema.
type SchemaResponse struct {
	Schema string `json:"schema"`
}

// SetSchema handles PUT /api/v1/resources/{uuid}/schema.
func (h *ResourceHandler) SetSchema(w http.ResponseWriter, r *http.Request) {
	var req SchemaRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Schema == "" {
		BadRequest(w, "Schema document is required")
		return
	}

	if err := h.archive.SetObjectSchema(r.Context(), chi.URLParam(r, "uuid"), req.Schema); err != nil {
		writeArchiveError(w, err)
		return
	}
	WriteNoContent(w)
}

// GetSchema handles GET /api/v1/resources/{uuid}/schema.
func (h *ResourceHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.archive.GetObjectSchema(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		writeArchiveError(w, err)
		return
	}
	WriteJSONOK(w, SchemaResponse{Schema: schema.SchemaJSON})
}

// GetMetadata handles GET /api/v1/resources/{uuid}/metadata.
func (h *ResourceHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	entries, err := h.archive.GetObjectMetadata(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		writeArchiveError(w, err)
		return
	}

	response := make([]MetadataEntry, len(entries))
	for i, e := range entries {
		response[i] = MetadataEntry{Key: e.Key, Value: e.Value}
	}
	WriteJSONOK(w, response)
}
