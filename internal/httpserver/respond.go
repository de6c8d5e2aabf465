// Package httpserver provides the shared chi-based HTTP plumbing (routing
// middleware, JSON responses, validation, pagination) used by both the
// Storage Element and Admin binaries.
package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BigKAA/artStore-sub005/pkg/apperr"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// ErrorResponse is the standard JSON error envelope (§7): never leaks
// backend internals or stack traces, always carries a correlation id when
// one is available on the request context.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// RespondError writes a JSON error response.
func RespondError(w http.ResponseWriter, status int, errCode string, message string) {
	Respond(w, status, ErrorResponse{ErrorCode: errCode, Message: message})
}

// RespondErrorCtx writes a JSON error response carrying the request's
// correlation id (§7).
func RespondErrorCtx(w http.ResponseWriter, r *http.Request, status int, errCode string, message string) {
	Respond(w, status, ErrorResponse{ErrorCode: errCode, Message: message, RequestID: RequestIDFromContext(r.Context())})
}

// RespondAppError maps an apperr.Kind to its HTTP status (§4.17, §7) and
// writes the standard error envelope, including details when the error
// carries them (e.g. field-level validation failures).
func RespondAppError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := apperr.HTTPStatus(err)
	Respond(w, status, ErrorResponse{
		ErrorCode: code,
		Message:   apperr.Message(err),
		Details:   apperr.DetailsOf(err),
		RequestID: RequestIDFromContext(r.Context()),
	})
}
