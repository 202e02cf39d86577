package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/marketsearch/internal/orchestrator"
	"github.com/utafrali/marketsearch/pkg/health"
	"github.com/utafrali/marketsearch/pkg/httputil"
	"github.com/utafrali/marketsearch/pkg/middleware"
)

// ServiceName labels HTTP metrics and spans.
const ServiceName = "marketsearch"

// RouterConfig carries the dependencies of the HTTP API.
type RouterConfig struct {
	Searcher orchestrator.Searcher
	Registry *orchestrator.Registry
	Health   *health.Handler
	Logger   *slog.Logger

	CORS           middleware.CORSConfig
	PprofCIDRs     []string
	RequestTimeout time.Duration
	// SearchCacheMaxAge is the max-age, in seconds, of one-shot search
	// responses. Zero disables caching.
	SearchCacheMaxAge int
	Heartbeat         time.Duration
	// RateLimitRPS and RateLimitBurst bound one-shot searches and session
	// creation per client. A zero RPS disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter creates a chi router with all search service routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	logger := cfg.Logger

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	if len(cfg.PprofCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)
	}

	searchHandler := NewSearchHandler(cfg.Searcher, logger)
	sessionHandler := NewSessionHandler(cfg.Registry, cfg.Heartbeat, logger)
	limit := middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(
			limit,
			chimw.Compress(5),
			chimw.Timeout(cfg.RequestTimeout),
			middleware.CacheControl(cfg.SearchCacheMaxAge),
		).Get("/search", searchHandler.Search)

		r.Route("/sessions", func(r chi.Router) {
			r.Use(middleware.NoStore)

			// Event streams outlive the request timeout and must not be
			// buffered by compression.
			r.Get("/{id}/events", sessionHandler.Events)

			r.Group(func(r chi.Router) {
				r.Use(chimw.Compress(5))
				r.Use(chimw.Timeout(cfg.RequestTimeout))
				r.Use(httputil.RequireJSON)
				r.With(limit).Post("/", sessionHandler.Create)
				r.Get("/{id}", sessionHandler.Get)
				r.Delete("/{id}", sessionHandler.Delete)
				r.Put("/{id}/query", sessionHandler.SetQuery)
				r.Post("/{id}/filters", sessionHandler.ToggleFilter)
				r.Delete("/{id}/filters", sessionHandler.ClearFilters)
				r.Put("/{id}/mode", sessionHandler.SetMode)
				r.Put("/{id}/sort", sessionHandler.SetSort)
				r.Put("/{id}/page", sessionHandler.SetPage)
				r.Post("/{id}/select", sessionHandler.Select)
			})
		})
	})

	return r
}
