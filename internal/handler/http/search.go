package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/marketsearch/internal/domain"
	"github.com/utafrali/marketsearch/internal/orchestrator"
	"github.com/utafrali/marketsearch/internal/service"
	"github.com/utafrali/marketsearch/pkg/httputil"
	"github.com/utafrali/marketsearch/pkg/logger"
	"github.com/utafrali/marketsearch/pkg/pagination"
)

// SurfaceAPI labels diagnostics raised by the one-shot search endpoint.
const SurfaceAPI = "api"

// SearchHandler handles the stateless search endpoint.
type SearchHandler struct {
	service orchestrator.Searcher
	logger  *slog.Logger
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(svc orchestrator.Searcher, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		service: svc,
		logger:  logger,
	}
}

// SearchResult is the one-shot search payload.
type SearchResult struct {
	*domain.SearchResponse
	TotalPages int `json:"total_pages"`
}

// Search handles GET /api/v1/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	mode := domain.DefaultMode
	if v := params.Get("mode"); v != "" {
		m, err := domain.ParseMode(v)
		if err != nil {
			writeError(w, r, err, h.logger)
			return
		}
		mode = m
	}

	sort, err := domain.ParseSort(mode, params.Get("sort"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	page := pagination.FromRequest(r)
	req := service.SearchRequest{
		Mode:       mode,
		Query:      params.Get("q"),
		Selections: service.SelectionsFromParams(mode, params),
		Sort:       sort,
		Limit:      page.Limit,
		Page:       page.Page,
		Facets:     true,
	}

	resp, err := h.service.Search(r.Context(), req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	h.service.ReportOutcome(r.Context(), SurfaceAPI, logger.ClientID(r.Context()), req, resp)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: SearchResult{
		SearchResponse: resp,
		TotalPages:     page.TotalPages(resp.Total),
	}})
}
