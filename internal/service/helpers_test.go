package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/engine"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

// fakeSources is an in-memory SourceRepository that records every lookup.
type fakeSources struct {
	mu     sync.Mutex
	titles map[string]string
	err    error
	calls  [][]string
}

func (f *fakeSources) Titles(_ context.Context, ids []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), ids...))
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]string)
	for _, id := range ids {
		if t, ok := f.titles[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

// stubEngine returns a canned result and records the last request.
type stubEngine struct {
	mu        sync.Mutex
	result    *domain.RawResult
	err       error
	calls     int
	lastMode  domain.Mode
	lastQuery string
	lastOpts  engine.SearchOptions
}

func (s *stubEngine) Search(_ context.Context, mode domain.Mode, query string, opts engine.SearchOptions) (*domain.RawResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastMode, s.lastQuery, s.lastOpts = mode, query, opts
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubEngine) Ping(context.Context) error { return nil }

// recordingReporter captures no-results diagnostics.
type recordingReporter struct {
	mu     sync.Mutex
	events []NoResultsEvent
}

func (r *recordingReporter) ReportNoResults(_ context.Context, ev NoResultsEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}
