package httpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is wrapped by errors returned while the breaker rejects
// calls, in the open state or over the half-open quota.
var ErrCircuitOpen = errors.New("circuit open")

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "marketsearch_upstream_breaker_state",
		Help: "Circuit breaker state per upstream (0 closed, 1 half-open, 2 open).",
	}, []string{"client"})

	breakerRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketsearch_upstream_breaker_rejected_total",
		Help: "Upstream calls rejected without being attempted.",
	}, []string{"client"})
)

// BreakerPolicy configures when the breaker trips and how it recovers.
type BreakerPolicy struct {
	// HalfOpenRequests may probe the upstream while half-open.
	HalfOpenRequests uint32
	// Window clears the closed-state counts periodically; zero never clears.
	Window time.Duration
	// OpenFor is how long the breaker rejects before probing again.
	OpenFor time.Duration
	// FailureRatio trips the breaker once MinRequests have been counted.
	FailureRatio float64
	MinRequests  uint32
}

// upstreamFailure carries a 5xx response through the breaker so it counts
// as a failure while the caller still gets the response.
type upstreamFailure struct{ resp *http.Response }

func (f upstreamFailure) Error() string {
	return fmt.Sprintf("upstream status %d", f.resp.StatusCode)
}

// Breaker is an http.RoundTripper that fails fast while its upstream is
// unhealthy. Transport errors and 5xx responses count as failures.
type Breaker struct {
	name   string
	next   http.RoundTripper
	cb     *gobreaker.CircuitBreaker[*http.Response]
	logger *slog.Logger
}

// NewBreaker wraps next.
func NewBreaker(name string, next http.RoundTripper, policy BreakerPolicy, logger *slog.Logger) *Breaker {
	b := &Breaker{name: name, next: next, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: policy.HalfOpenRequests,
		Interval:    policy.Window,
		Timeout:     policy.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= policy.MinRequests &&
				float64(c.TotalFailures) >= policy.FailureRatio*float64(c.Requests)
		},
		OnStateChange: b.stateChanged,
	})
	breakerState.WithLabelValues(name).Set(stateValue(gobreaker.StateClosed))
	return b
}

func (b *Breaker) stateChanged(name string, from, to gobreaker.State) {
	breakerState.WithLabelValues(name).Set(stateValue(to))
	level := slog.LevelWarn
	if to == gobreaker.StateClosed {
		level = slog.LevelInfo
	}
	b.logger.Log(context.Background(), level, "upstream circuit breaker changed state",
		slog.String("client", name),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)
}

// RoundTrip implements http.RoundTripper.
func (b *Breaker) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := b.cb.Execute(func() (*http.Response, error) {
		resp, err := b.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, upstreamFailure{resp: resp}
		}
		return resp, nil
	})

	var failure upstreamFailure
	switch {
	case errors.As(err, &failure):
		return failure.resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		breakerRejected.WithLabelValues(b.name).Inc()
		return nil, fmt.Errorf("%s: %w: %w", b.name, ErrCircuitOpen, err)
	}
	return resp, err
}

// State reports the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Check fails while the breaker is open. It has the shape of a health
// checker; half-open counts as healthy since calls are getting through.
func (b *Breaker) Check(context.Context) error {
	if b.State() == gobreaker.StateOpen {
		return fmt.Errorf("%s: %w", b.name, ErrCircuitOpen)
	}
	return nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
