package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
)

// Checker probes one dependency. A nil error means the dependency is usable.
type Checker func(ctx context.Context) error

// Status is the health of the service or of one dependency.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// DefaultTimeout bounds a full readiness probe.
const DefaultTimeout = 5 * time.Second

var dependencyUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "marketsearch_dependency_up",
	Help: "Result of the last readiness probe per dependency (1 up, 0 down).",
}, []string{"dependency"})

// Report is the body of the health endpoints.
type Report struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of one dependency probe.
type CheckResult struct {
	Status    Status `json:"status"`
	Critical  bool   `json:"critical"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type probe struct {
	name     string
	check    Checker
	critical bool
}

// Handler serves liveness and readiness. Readiness fails only when a
// critical dependency is down; a non-critical failure reports degraded.
type Handler struct {
	timeout time.Duration
	started time.Time
	now     func() time.Time

	mu     sync.RWMutex
	probes map[string]probe
}

// Option configures a Handler.
type Option func(*Handler)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// NewHandler creates a Handler with no dependencies.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		timeout: DefaultTimeout,
		now:     time.Now,
		probes:  make(map[string]probe),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.started = h.now()
	return h
}

// RegisterCritical adds a dependency the service cannot serve without.
// Registering a name twice replaces the earlier checker.
func (h *Handler) RegisterCritical(name string, check Checker) {
	h.add(probe{name: name, check: check, critical: true})
}

// RegisterNonCritical adds a dependency whose loss only degrades the service.
func (h *Handler) RegisterNonCritical(name string, check Checker) {
	h.add(probe{name: name, check: check})
}

func (h *Handler) add(p probe) {
	h.mu.Lock()
	h.probes[p.name] = p
	h.mu.Unlock()
}

func (h *Handler) snapshot() []probe {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]probe, 0, len(h.probes))
	for _, p := range h.probes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Check probes every dependency in parallel within the handler timeout.
func (h *Handler) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	probes := h.snapshot()
	results := make([]CheckResult, len(probes))

	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			start := h.now()
			err := p.check(ctx)
			res := CheckResult{
				Status:    StatusUp,
				Critical:  p.critical,
				LatencyMS: h.now().Sub(start).Milliseconds(),
			}
			if err != nil {
				res.Status = StatusDown
				res.Error = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Status:    StatusUp,
		Timestamp: h.now().UTC(),
		Uptime:    h.now().Sub(h.started).Round(time.Second).String(),
	}
	if len(probes) > 0 {
		report.Checks = make(map[string]CheckResult, len(probes))
	}
	for i, p := range probes {
		res := results[i]
		report.Checks[p.name] = res
		report.Status = worse(report.Status, res)
		if res.Status == StatusUp {
			dependencyUp.WithLabelValues(p.name).Set(1)
		} else {
			dependencyUp.WithLabelValues(p.name).Set(0)
		}
	}
	return report
}

func worse(overall Status, res CheckResult) Status {
	switch {
	case res.Status != StatusDown:
		return overall
	case res.Critical:
		return StatusDown
	case overall == StatusDown:
		return overall
	default:
		return StatusDegraded
	}
}

// LivenessHandler answers 200 while the process can serve HTTP at all.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeReport(w, http.StatusOK, Report{
			Status:    StatusUp,
			Timestamp: h.now().UTC(),
			Uptime:    h.now().Sub(h.started).Round(time.Second).String(),
		})
	}
}

// ReadinessHandler answers 503 when a critical dependency is down and 200
// otherwise, degraded included.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := h.Check(r.Context())
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeReport(w, status, report)
	}
}

func writeReport(w http.ResponseWriter, status int, report Report) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report)
}
