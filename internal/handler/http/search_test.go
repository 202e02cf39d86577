package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketsearch/internal/domain"
)

func TestSearch_Products(t *testing.T) {
	srv := newTestServer(t, seededEngine(t))

	w, env := srv.do(t, http.MethodGet, "/api/v1/search?q=cable&category=Electronics", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))

	got := decodeData[SearchResult](t, env)
	assert.Equal(t, domain.ModeProducts, got.Mode)
	assert.EqualValues(t, 2, got.Total)
	require.Len(t, got.Results, 2)
	for _, r := range got.Results {
		assert.Equal(t, "Electronics", r.Category)
	}
	assert.Equal(t, 1, got.TotalPages)
	require.NotEmpty(t, got.FacetGroups)
	assert.Equal(t, "Category", got.FacetGroups[0].Title)
	assert.Equal(t, []string{"Electronics"}, got.FacetGroups[0].Selected)
}

func TestSearch_SuppliersResolveSourceTitles(t *testing.T) {
	srv := newTestServer(t, seededEngine(t))

	w, env := srv.do(t, http.MethodGet, "/api/v1/search?q=textiles&mode=suppliers", "")

	require.Equal(t, http.StatusOK, w.Code)
	got := decodeData[SearchResult](t, env)
	require.Len(t, got.Results, 2)

	titles := map[string]string{}
	for _, r := range got.Results {
		titles[r.SourceID] = r.SourceTitle
	}
	assert.Equal(t, "Alibaba", titles["S1"])
	assert.Equal(t, domain.UnknownSource, titles["S2"])
}

func TestSearch_Pagination(t *testing.T) {
	srv := newTestServer(t, seededEngine(t))

	w, env := srv.do(t, http.MethodGet, "/api/v1/search?q=cable&limit=2&page=2", "")

	require.Equal(t, http.StatusOK, w.Code)
	got := decodeData[SearchResult](t, env)
	assert.EqualValues(t, 3, got.Total)
	assert.Len(t, got.Results, 1)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 2, got.TotalPages)
}

func TestSearch_BlankQuery(t *testing.T) {
	srv := newTestServer(t, failingEngine{})

	w, env := srv.do(t, http.MethodGet, "/api/v1/search?q=%20%20", "")

	require.Equal(t, http.StatusOK, w.Code)
	got := decodeData[SearchResult](t, env)
	assert.Empty(t, got.Results)
	assert.Zero(t, got.Total)
}

func TestSearch_InvalidParams(t *testing.T) {
	srv := newTestServer(t, seededEngine(t))

	tests := []struct {
		name string
		path string
	}{
		{"unknown mode", "/api/v1/search?q=cable&mode=services"},
		{"unknown sort", "/api/v1/search?q=cable&sort=rating:desc"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, env := srv.do(t, http.MethodGet, tc.path, "")

			require.Equal(t, http.StatusBadRequest, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, "INVALID_INPUT", env.Error.Code)
		})
	}
}

func TestSearch_IndexUnavailable(t *testing.T) {
	srv := newTestServer(t, failingEngine{})

	w, env := srv.do(t, http.MethodGet, "/api/v1/search?q=cable", "")

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INDEX_UNAVAILABLE", env.Error.Code)
	assert.Equal(t, domain.SearchFailedMessage, env.Error.Message)
}

func TestSearch_ReportsNoResults(t *testing.T) {
	srv := newTestServer(t, seededEngine(t))

	w, _ := srv.do(t, http.MethodGet, "/api/v1/search?q=zeppelin", "")
	require.Equal(t, http.StatusOK, w.Code)

	srv.reporter.mu.Lock()
	defer srv.reporter.mu.Unlock()
	require.Len(t, srv.reporter.events, 1)
	ev := srv.reporter.events[0]
	assert.Equal(t, "zeppelin", ev.Query)
	assert.Equal(t, SurfaceAPI, ev.Surface)
	assert.Equal(t, "client-1", ev.ClientID)
	assert.Equal(t, domain.ModeProducts, ev.Mode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, seededEngine(t))

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		w, _ := srv.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestSearch_RateLimitedPerClient(t *testing.T) {
	srv := newTestServer(t, seededEngine(t), func(cfg *RouterConfig) {
		cfg.RateLimitRPS = 0.001
		cfg.RateLimitBurst = 2
	})

	for i := 0; i < 2; i++ {
		w, _ := srv.do(t, http.MethodGet, "/api/v1/search?q=cable", "")
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, env := srv.do(t, http.MethodGet, "/api/v1/search?q=cable", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)

	// Health checks are not limited.
	w, _ = srv.do(t, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
