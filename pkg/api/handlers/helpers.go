package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/libreary/libreary/pkg/adapter"
	"github.com/libreary/libreary/pkg/catalog"
)

// decodeJSONBody decodes the request body into v, writing a 400 on failure.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// writeArchiveError maps archive error codes onto HTTP problem responses.
func writeArchiveError(w http.ResponseWriter, err error) {
	switch {
	case adapter.IsNotIngested(err):
		NotFound(w, err.Error())
	case adapter.IsNoCopy(err):
		NotFound(w, err.Error())
	case adapter.IsConfigurationError(err):
		BadRequest(w, err.Error())
	case adapter.IsChecksumMismatch(err), adapter.IsStorageFailed(err), adapter.IsRestorationFailed(err):
		BadGateway(w, err.Error())
	case errors.Is(err, catalog.ErrDuplicateLevel):
		Conflict(w, "Level already exists")
	case errors.Is(err, catalog.ErrLevelNotFound):
		NotFound(w, "Level not found")
	case errors.Is(err, catalog.ErrSchemaNotFound):
		NotFound(w, "No metadata schema recorded")
	default:
		InternalServerError(w, err.Error())
	}
}
