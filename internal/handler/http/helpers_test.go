package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/engine"
	"github.com/utafrali/marketsearch/internal/engine/memory"
	"github.com/utafrali/marketsearch/internal/orchestrator"
	"github.com/utafrali/marketsearch/internal/service"
	"github.com/utafrali/marketsearch/pkg/health"
	"github.com/utafrali/marketsearch/pkg/httputil"
	"github.com/utafrali/marketsearch/pkg/middleware"
)

func ptr[T any](v T) *T { return &v }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSources map[string]string

func (f fakeSources) Titles(_ context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range ids {
		if t, ok := f[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

type failingEngine struct{}

func (failingEngine) Search(context.Context, domain.Mode, string, engine.SearchOptions) (*domain.RawResult, error) {
	return nil, fmt.Errorf("meilisearch search: %w: connection refused", domain.ErrIndexUnavailable)
}

func (failingEngine) Ping(context.Context) error { return domain.ErrIndexUnavailable }

type recordingReporter struct {
	mu     sync.Mutex
	events []service.NoResultsEvent
}

func (r *recordingReporter) ReportNoResults(_ context.Context, ev service.NoResultsEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func seededEngine(t *testing.T) *memory.Engine {
	t.Helper()
	eng := memory.New()
	ctx := context.Background()
	require.NoError(t, eng.IndexProducts(ctx,
		domain.ProductHit{ID: "p1", Title: ptr("USB Cable"), Category: ptr("Electronics"), Country: ptr("China"), Price: ptr("$3")},
		domain.ProductHit{ID: "p2", Title: ptr("Cable Knit Sweater"), Category: ptr("Apparel"), Country: ptr("Peru")},
		domain.ProductHit{ID: "p3", Title: ptr("HDMI Cable"), Category: ptr("Electronics"), Country: ptr("China"), Price: ptr("$9")},
	))
	require.NoError(t, eng.IndexSuppliers(ctx,
		domain.SupplierHit{ID: "s1", Title: ptr("Andes Textiles"), Country: ptr("Peru"), SourceID: ptr("S1"), ProductKeywords: ptr("textiles alpaca")},
		domain.SupplierHit{ID: "s2", Title: ptr("Lima Looms"), Country: ptr("Peru"), SourceID: ptr("S2"), ProductKeywords: ptr("textiles")},
	))
	return eng
}

type testServer struct {
	router   http.Handler
	registry *orchestrator.Registry
	reporter *recordingReporter
}

func newTestServer(t *testing.T, eng engine.SearchEngine, opts ...func(*RouterConfig)) *testServer {
	t.Helper()
	logger := testLogger()
	reporter := &recordingReporter{}
	resolver := service.NewResolver(fakeSources{"S1": "Alibaba"}, logger)
	svc := service.NewSearchService(eng, resolver, reporter, logger)
	registry := orchestrator.NewRegistry(svc, service.NewPreferences(nil, logger),
		orchestrator.Config{Debounce: 10 * time.Millisecond, QueryTimeout: time.Second},
		time.Minute, logger)
	t.Cleanup(registry.CloseAll)

	cfg := RouterConfig{
		Searcher:          svc,
		Registry:          registry,
		Health:            health.NewHandler(),
		Logger:            logger,
		CORS:              middleware.DefaultCORSConfig(),
		SearchCacheMaxAge: 60,
		Heartbeat:         time.Hour,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	router := NewRouter(cfg)
	return &testServer{router: router, registry: registry, reporter: reporter}
}

type envelope struct {
	Data  json.RawMessage         `json:"data"`
	Error *httputil.ErrorResponse `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middleware.ClientIDHeader, "client-1")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}
