package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/engine"
	"github.com/utafrali/marketsearch/pkg/logger"
)

// NoResultsMinQueryLen is the query length above which an empty result set
// is reported as a diagnostic.
const NoResultsMinQueryLen = 2

// NoResultsEvent describes a successful search that found nothing.
type NoResultsEvent struct {
	Query    string
	Mode     domain.Mode
	Surface  string
	Filters  string
	ClientID string
}

// NoResultsReporter receives no-results diagnostics. Implementations must not
// block the caller for long.
type NoResultsReporter interface {
	ReportNoResults(ctx context.Context, ev NoResultsEvent)
}

// SearchRequest is the input of one pipeline run.
type SearchRequest struct {
	Mode       domain.Mode
	Query      string
	Selections Selections
	Sort       domain.Sort
	Limit      int
	Page       int
	// Facets requests facet distributions and facet groups.
	Facets bool
}

// SearchService runs the stateless search pipeline: index query, source
// resolution, normalization and facet derivation.
type SearchService struct {
	engine   engine.SearchEngine
	resolver *Resolver
	reporter NoResultsReporter
	logger   *slog.Logger
}

// NewSearchService creates a new search service. reporter may be nil.
func NewSearchService(eng engine.SearchEngine, resolver *Resolver, reporter NoResultsReporter, logger *slog.Logger) *SearchService {
	return &SearchService{
		engine:   eng,
		resolver: resolver,
		reporter: reporter,
		logger:   logger,
	}
}

// Search executes one search. A blank query returns an empty response
// without touching the engine. Engine failures wrap domain.ErrIndexUnavailable.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*domain.SearchResponse, error) {
	if !req.Mode.IsValid() {
		return nil, fmt.Errorf("search: %w: %q", domain.ErrInvalidMode, req.Mode)
	}
	if !req.Sort.ValidFor(req.Mode) {
		return nil, fmt.Errorf("search: %w: %s for %s", domain.ErrInvalidSort, req.Sort, req.Mode)
	}

	opts := engine.SearchOptions{
		Limit:                req.Limit,
		Filter:               DeriveIndexFilters(req.Mode, req.Selections),
		Sort:                 req.Sort,
		AttributesToRetrieve: domain.AttributesFor(req.Mode),
	}
	if req.Facets {
		opts.Facets = domain.FacetKeys(req.Mode)
	}
	opts = opts.Normalize()
	page := max(req.Page, 1)
	opts.Offset = (page - 1) * opts.Limit

	query := strings.TrimSpace(req.Query)
	resp := &domain.SearchResponse{
		Mode:        req.Mode,
		Query:       query,
		Results:     []domain.UnifiedResult{},
		FacetGroups: []domain.FacetGroup{},
		Page:        page,
		Limit:       opts.Limit,
	}
	if query == "" {
		return resp, nil
	}

	raw, err := s.engine.Search(ctx, req.Mode, query, opts)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", req.Mode, err)
	}

	titles := domain.SourceTitleMap{}
	if req.Mode == domain.ModeSuppliers {
		ids := raw.SourceIDs()
		if req.Facets {
			ids = append(ids, facetSourceIDs(raw.FacetDistribution)...)
		}
		titles = s.resolver.Resolve(ctx, ids)
	}

	resp.Results = Normalize(req.Mode, raw, titles)
	if req.Facets {
		resp.FacetGroups = DeriveFacetGroups(req.Mode, req.Selections, raw.FacetDistribution, titles)
	}
	resp.Total = raw.Total
	resp.TookMs = raw.TookMs

	logger.FromContext(ctx).DebugContext(ctx, "search executed",
		slog.String("mode", req.Mode.String()),
		slog.String("query", query),
		slog.Int("results", len(resp.Results)),
		slog.Int64("total", resp.Total),
		slog.Int64("took_ms", resp.TookMs),
	)

	return resp, nil
}

// ReportOutcome emits the no-results diagnostic for a successful response
// when the query is longer than NoResultsMinQueryLen and nothing was found.
func (s *SearchService) ReportOutcome(ctx context.Context, surface, clientID string, req SearchRequest, resp *domain.SearchResponse) {
	if resp == nil || len(resp.Results) > 0 {
		return
	}
	if utf8.RuneCountInString(resp.Query) <= NoResultsMinQueryLen {
		return
	}
	NoResultsTotal.WithLabelValues(req.Mode.String(), surface).Inc()
	if s.reporter == nil {
		return
	}
	s.reporter.ReportNoResults(ctx, NoResultsEvent{
		Query:    resp.Query,
		Mode:     req.Mode,
		Surface:  surface,
		Filters:  DeriveIndexFilters(req.Mode, req.Selections).String(),
		ClientID: clientID,
	})
}
