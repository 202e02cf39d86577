package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketsearch/pkg/logger"
)

func loggedRequest(t *testing.T, req *http.Request, status int) (*httptest.ResponseRecorder, map[string]any, string) {
	t.Helper()
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var seen string
	h := RequestLogging(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.CorrelationID(r.Context())
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return rec, entry, seen
}

func TestRequestLogging_EchoesCorrelationID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=steel", nil)
	req.Header.Set(CorrelationIDHeader, "abc-123")

	rec, entry, seen := loggedRequest(t, req, http.StatusOK)

	assert.Equal(t, "abc-123", rec.Header().Get(CorrelationIDHeader))
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", entry["correlation_id"])
	assert.Equal(t, "/api/v1/search", entry["path"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, float64(2), entry["bytes"])
}

func TestRequestLogging_GeneratesCorrelationID(t *testing.T) {
	for name, header := range map[string]string{
		"missing":  "",
		"overlong": strings.Repeat("x", maxCorrelationIDLen+1),
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set(CorrelationIDHeader, header)
			}

			rec, _, seen := loggedRequest(t, req, http.StatusOK)

			got := rec.Header().Get(CorrelationIDHeader)
			_, err := uuid.Parse(got)
			assert.NoError(t, err)
			assert.Equal(t, got, seen)
		})
	}
}

func TestRequestLogging_Level(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   string
	}{
		{"/api/v1/search", http.StatusOK, "INFO"},
		{"/api/v1/search", http.StatusBadRequest, "WARN"},
		{"/api/v1/search", http.StatusBadGateway, "ERROR"},
		{"/health/ready", http.StatusOK, "DEBUG"},
		{"/metrics", http.StatusOK, "DEBUG"},
		{"/health/ready", http.StatusServiceUnavailable, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.path+" "+tt.want, func(t *testing.T) {
			_, entry, _ := loggedRequest(t, httptest.NewRequest(http.MethodGet, tt.path, nil), tt.status)
			assert.Equal(t, tt.want, entry["level"])
		})
	}
}
