// Package httpclient builds the outbound HTTP clients used to reach search
// engines: pooled connections, bounded retries and a circuit breaker.
package httpclient

import (
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Options configures a client for one upstream.
type Options struct {
	// Name labels metrics and log lines, e.g. "meilisearch".
	Name            string
	Timeout         time.Duration
	MaxConnsPerHost int
	Retry           RetryPolicy
	Breaker         BreakerPolicy
}

// DefaultOptions returns the options used for search engine clients.
func DefaultOptions(name string) Options {
	return Options{
		Name:            name,
		Timeout:         5 * time.Second,
		MaxConnsPerHost: 64,
		Retry: RetryPolicy{
			MaxRetries: 2,
			MinWait:    100 * time.Millisecond,
			MaxWait:    2 * time.Second,
		},
		Breaker: BreakerPolicy{
			HalfOpenRequests: 1,
			Window:           time.Minute,
			OpenFor:          30 * time.Second,
			FailureRatio:     0.5,
			MinRequests:      5,
		},
	}
}

// New returns a client whose transport is breaker -> retry -> pool, so one
// logical call counts once against the breaker however often it is retried.
// The breaker is returned for state inspection.
func New(opts Options, logger *slog.Logger) (*http.Client, *Breaker) {
	retry := newRetryTransport(opts.Name, pooledTransport(opts.MaxConnsPerHost), opts.Retry)
	breaker := NewBreaker(opts.Name, retry, opts.Breaker, logger)
	return &http.Client{Transport: breaker, Timeout: opts.Timeout}, breaker
}

func pooledTransport(perHost int) *http.Transport {
	if perHost <= 0 {
		perHost = 64
	}
	dialer := &net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          2 * perHost,
		MaxIdleConnsPerHost:   perHost,
		MaxConnsPerHost:       perHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
}
