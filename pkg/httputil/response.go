// Package httputil writes the API's JSON envelope and maps errors onto it.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/marketsearch/pkg/errors"
	"github.com/utafrali/marketsearch/pkg/logger"
	"github.com/utafrali/marketsearch/pkg/validator"
)

// Response is the envelope of every JSON response: exactly one of Data and
// Error is set.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the error member of the envelope.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON encodes v with the given status. Encoding errors are dropped:
// the status line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteErrorCode writes an error envelope for a fixed code and message.
func WriteErrorCode(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, Response{Error: &ErrorResponse{Code: code, Message: message}})
}

// WriteError converts err with apperrors.From and writes it, tagged with the
// request's correlation id. Unavailable dependencies are logged at warn and
// other server errors at error; client errors are not logged here.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	ctx := r.Context()
	appErr := apperrors.From(err)

	l := logger.FromContext(ctx)
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	attrs := []any{
		slog.String("code", appErr.Code),
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	}
	switch {
	case errors.Is(appErr, apperrors.ErrServiceUnavail):
		l.WarnContext(ctx, "dependency unavailable", attrs...)
	case appErr.Status >= http.StatusInternalServerError:
		l.ErrorContext(ctx, "internal error", attrs...)
	}

	WriteJSON(w, appErr.Status, Response{Error: &ErrorResponse{
		Code:      appErr.Code,
		Message:   appErr.Message,
		RequestID: logger.CorrelationID(ctx),
	}})
}

// WriteValidationError writes 400. Constraint failures are VALIDATION_ERROR
// with per-field messages; anything else, such as malformed JSON, is
// INVALID_INPUT.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "request validation failed",
			Fields:  valErr.Fields(),
		}})
		return
	}
	WriteErrorCode(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
}
