package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"mercator-hq/archivist/pkg/archival"
)

const internalErrorMessage = "An internal error occurred. Please try again later."

// messageResponse is the body of every error and acknowledgment.
type messageResponse struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// runNowResponse acknowledges a triggered sweep.
type runNowResponse struct {
	Message string `json:"message"`
	RunID   string `json:"runId"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps err to a status code and writes it as a message body.
// Server-side failures are logged and replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeJSON(w, status, messageResponse{Message: internalErrorMessage})
		return
	}

	resp := messageResponse{Message: err.Error()}
	var ve *archival.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}
	writeJSON(w, status, resp)
}

// StatusFor returns the HTTP status code for an error returned by the
// archival service.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case archival.IsValidation(err):
		return http.StatusBadRequest
	case archival.IsPermissionDenied(err):
		return http.StatusForbidden
	case errors.Is(err, archival.ErrPolicyNotFound), errors.Is(err, archival.ErrGrantNotFound):
		return http.StatusNotFound
	case errors.Is(err, archival.ErrSweepInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
