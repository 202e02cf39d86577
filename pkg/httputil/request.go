package httputil

import (
	"mime"
	"net/http"

	"github.com/google/uuid"
)

// ParseUUID parses a path parameter as a UUID. On failure it writes 400
// INVALID_PARAMETER and returns false.
func ParseUUID(w http.ResponseWriter, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteErrorCode(w, http.StatusBadRequest, "INVALID_PARAMETER", "invalid id: "+param)
		return uuid.Nil, false
	}
	return id, true
}

// RequireJSON rejects request bodies declared as anything other than
// application/json with 415. Requests without a Content-Type pass, so empty
// POST and DELETE calls need no header.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "" {
			mt, _, err := mime.ParseMediaType(ct)
			if err != nil || mt != "application/json" {
				WriteErrorCode(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
