package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/libreary/libreary/pkg/archive"
)

// CheckHandler handles integrity sweep and adapter probe endpoints.
type CheckHandler struct {
	archive *archive.Archive
}

// NewCheckHandler creates a new CheckHandler.
func NewCheckHandler(a *archive.Archive) *CheckHandler {
	return &CheckHandler{archive: a}
}

// SweepRequest is the request body for POST /api/v1/checks. DueOnly limits
// the sweep to resources whose level check frequency has elapsed.
type SweepRequest struct {
	Deep    bool `json:"deep,omitempty"`
	Repair  bool `json:"repair,omitempty"`
	DueOnly bool `json:"due_only,omitempty"`
}

// SweepResponse is the response body for POST /api/v1/checks.
type SweepResponse struct {
	ResourcesChecked int      `json:"resources_checked"`
	Skipped          int      `json:"skipped"`
	CopiesChecked    int      `json:"copies_checked"`
	Good             int      `json:"good"`
	Missing          int      `json:"missing"`
	Mismatched       int      `json:"mismatched"`
	Repaired         int      `json:"repaired"`
	Errors           []string `json:"errors,omitempty"`
}

// Run handles POST /api/v1/checks. The sweep runs synchronously; large
// archives should prefer the scheduler.
func (h *CheckHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	run := h.archive.RunCheck
	if req.DueOnly {
		run = h.archive.CheckDue
	}
	report, err := run(r.Context(), req.Deep, req.Repair)
	if err != nil {
		writeArchiveError(w, err)
		return
	}

	response := SweepResponse{
		ResourcesChecked: report.ResourcesChecked,
		Skipped:          report.Skipped,
		CopiesChecked:    report.CopiesChecked,
		Good:             report.Good,
		Missing:          report.Missing,
		Mismatched:       report.Mismatched,
		Repaired:         report.Repaired,
	}
	for _, e := range report.Errors {
		response.Errors = append(response.Errors, e.Error())
	}
	WriteJSONOK(w, response)
}

// VerifyAdapter handles POST /api/v1/adapters/{id}/verify.
func (h *CheckHandler) VerifyAdapter(w http.ResponseWriter, r *http.Request) {
	if err := h.archive.VerifyAdapter(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeArchiveError(w, err)
		return
	}
	WriteJSONOK(w, map[string]string{"status": "ok"})
}
