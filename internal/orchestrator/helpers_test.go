package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/service"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errEngineDown = errors.New("engine down")

// fakeSearcher answers every query with one result named after the query.
// Queries with a gate block until the gate is released or ctx ends.
type fakeSearcher struct {
	mu       sync.Mutex
	requests []service.SearchRequest
	gates    map[string]chan struct{}
	failing  map[string]bool
	done     int
	reports  []string
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{
		gates:   make(map[string]chan struct{}),
		failing: make(map[string]bool),
	}
}

func (f *fakeSearcher) gate(query string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gates[query] = make(chan struct{})
}

func (f *fakeSearcher) release(query string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.gates[query])
}

func (f *fakeSearcher) fail(query string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[query] = true
}

func (f *fakeSearcher) Search(ctx context.Context, req service.SearchRequest) (*domain.SearchResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	gate := f.gates[req.Query]
	failing := f.failing[req.Query]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.done++
		f.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failing {
		return nil, errEngineDown
	}

	resp := &domain.SearchResponse{
		Mode:  req.Mode,
		Query: req.Query,
		Results: []domain.UnifiedResult{{
			ID:   req.Query + "-1",
			Name: req.Query,
			Type: req.Mode,
			URL:  "/product/" + req.Query + "-1",
		}},
		FacetGroups: []domain.FacetGroup{},
		Total:       1,
		Page:        req.Page,
		Limit:       req.Limit,
	}
	if req.Facets {
		resp.FacetGroups = service.DeriveFacetGroups(req.Mode, req.Selections,
			domain.FacetDistribution{domain.FieldCountry: {"China": 3}}, nil)
	}
	return resp, nil
}

func (f *fakeSearcher) ReportOutcome(_ context.Context, surface, _ string, _ service.SearchRequest, _ *domain.SearchResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, surface)
}

func (f *fakeSearcher) calls() []service.SearchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]service.SearchRequest(nil), f.requests...)
}

func (f *fakeSearcher) reported() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reports...)
}

func (f *fakeSearcher) completed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

func (f *fakeSearcher) lastRequest(t *testing.T) service.SearchRequest {
	t.Helper()
	calls := f.calls()
	require.NotEmpty(t, calls)
	return calls[len(calls)-1]
}

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fastConfig debounces briefly so tests settle quickly.
var fastConfig = Config{Debounce: 10 * time.Millisecond, QueryTimeout: time.Second}

// noDebounceConfig never lets a typed query settle during a test, so any
// query that runs was issued without waiting on the debounce.
var noDebounceConfig = Config{Debounce: time.Hour, QueryTimeout: time.Second}

func newTestOrchestrator(t *testing.T, surface Surface, seed Seed, cfg Config, search Searcher, handle *service.ModeHandle) *Orchestrator {
	t.Helper()
	o := New(Options{ID: "sess-1", Surface: surface, Seed: seed, Config: cfg}, search, handle, newTestLogger())
	t.Cleanup(o.Close)
	return o
}

func waitStatus(t *testing.T, o *Orchestrator, want Status) State {
	t.Helper()
	require.Eventually(t, func() bool { return o.State().Status == want }, waitFor, tick)
	return o.State()
}
