package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/orchestrator"
	apperrors "github.com/utafrali/marketsearch/pkg/errors"
	"github.com/utafrali/marketsearch/pkg/httputil"
)

// toAppError maps domain and session errors onto the API error taxonomy.
// Unknown errors pass through and surface as 500.
func toAppError(err error) error {
	switch {
	case errors.Is(err, domain.ErrIndexUnavailable):
		return apperrors.ServiceUnavailable("INDEX_UNAVAILABLE", domain.SearchFailedMessage, err)
	case errors.Is(err, orchestrator.ErrSessionNotFound), errors.Is(err, orchestrator.ErrClosed):
		return apperrors.New(apperrors.ErrNotFound, "SESSION_NOT_FOUND", "search session not found", err)
	case errors.Is(err, orchestrator.ErrUnknownResult):
		return apperrors.New(apperrors.ErrNotFound, "RESULT_NOT_FOUND", err.Error(), err)
	case errors.Is(err, domain.ErrInvalidMode),
		errors.Is(err, domain.ErrInvalidSort),
		errors.Is(err, domain.ErrInvalidFacet),
		errors.Is(err, domain.ErrInvalidSurface),
		errors.Is(err, orchestrator.ErrInvalidPage),
		errors.Is(err, orchestrator.ErrNotSupported):
		return apperrors.InvalidInput(err.Error())
	}
	return err
}

func writeError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	httputil.WriteError(w, r, toAppError(err), logger)
}
