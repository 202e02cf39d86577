package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketsearch/pkg/httputil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestIPAllowlist(t *testing.T) {
	tests := []struct {
		name       string
		cidrs      []string
		remoteAddr string
		want       int
	}{
		{"loopback allowed", []string{"127.0.0.0/8"}, "127.0.0.1:4000", http.StatusOK},
		{"outside prefix", []string{"127.0.0.0/8"}, "192.168.1.10:4000", http.StatusForbidden},
		{"second prefix", []string{"127.0.0.0/8", "10.0.0.0/8"}, "10.2.3.4:4000", http.StatusOK},
		{"unmasked prefix", []string{"10.1.2.3/16"}, "10.1.200.1:4000", http.StatusOK},
		{"ipv6 loopback", []string{"::1/128"}, "[::1]:4000", http.StatusOK},
		{"ipv4 mapped ipv6", []string{"127.0.0.0/8"}, "[::ffff:127.0.0.1]:4000", http.StatusOK},
		{"no port", []string{"127.0.0.0/8"}, "127.0.0.1", http.StatusOK},
		{"invalid prefix skipped", []string{"not-a-cidr", "127.0.0.0/8"}, "127.0.0.1:4000", http.StatusOK},
		{"no valid prefix denies", []string{"not-a-cidr"}, "127.0.0.1:4000", http.StatusForbidden},
		{"garbage peer denied", []string{"0.0.0.0/0"}, "somewhere", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := IPAllowlist(tt.cidrs, discardLogger())(okHandler())
			req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
			req.RemoteAddr = tt.remoteAddr
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestIPAllowlist_IgnoresForwardingHeaders(t *testing.T) {
	h := IPAllowlist([]string{"127.0.0.0/8"}, discardLogger())(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.RemoteAddr = "203.0.113.7:4000"
	req.Header.Set("X-Forwarded-For", "127.0.0.1")
	req.Header.Set("X-Real-IP", "127.0.0.1")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var body httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "FORBIDDEN", body.Error.Code)
}

func pprofRouter() *chi.Mux {
	r := chi.NewRouter()
	RegisterPprof(r, []string{"127.0.0.0/8"}, discardLogger())
	return r
}

func TestRegisterPprof_Routes(t *testing.T) {
	r := pprofRouter()

	for _, path := range []string{
		"/debug/pprof/",
		"/debug/pprof/cmdline",
		"/debug/pprof/symbol",
		"/debug/pprof/heap",
		"/debug/pprof/goroutine?debug=1",
	} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.RemoteAddr = "127.0.0.1:4000"
			rec := httptest.NewRecorder()

			r.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			body, _ := io.ReadAll(rec.Body)
			assert.NotEmpty(t, body)
		})
	}
}

func TestRegisterPprof_DeniesRemotePeer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/heap", nil)
	req.RemoteAddr = "198.51.100.4:4000"
	rec := httptest.NewRecorder()

	pprofRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
