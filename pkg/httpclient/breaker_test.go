package httpclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// switchable serves 500 while failing is set and 200 otherwise.
func switchable(t *testing.T) (*httptest.Server, *atomic.Bool) {
	t.Helper()
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &failing
}

func tripFast(openFor time.Duration) BreakerPolicy {
	return BreakerPolicy{HalfOpenRequests: 1, OpenFor: openFor, FailureRatio: 0.5, MinRequests: 3}
}

func get(t *testing.T, b *Breaker, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := b.RoundTrip(req)
	if resp != nil {
		resp.Body.Close()
	}
	return resp, err
}

func TestBreaker_ServerErrorsReachCaller(t *testing.T) {
	srv, failing := switchable(t)
	failing.Store(true)
	b := NewBreaker("breaker-passthrough", http.DefaultTransport, tripFast(time.Minute), slog.New(slog.DiscardHandler))

	resp, err := get(t, b, srv.URL)

	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreaker_OpensAndRejects(t *testing.T) {
	srv, failing := switchable(t)
	failing.Store(true)
	b := NewBreaker("breaker-open", http.DefaultTransport, tripFast(time.Minute), slog.New(slog.DiscardHandler))

	for range 3 {
		_, err := get(t, b, srv.URL)
		require.NoError(t, err)
	}
	require.Equal(t, gobreaker.StateOpen, b.State())
	assert.Equal(t, 2.0, testutil.ToFloat64(breakerState.WithLabelValues("breaker-open")))

	failing.Store(false)
	resp, err := get(t, b, srv.URL)

	assert.Nil(t, resp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Contains(t, err.Error(), "breaker-open")
	assert.Equal(t, 1.0, testutil.ToFloat64(breakerRejected.WithLabelValues("breaker-open")))
}

func TestBreaker_RecoversThroughHalfOpen(t *testing.T) {
	srv, failing := switchable(t)
	failing.Store(true)
	b := NewBreaker("breaker-recover", http.DefaultTransport, tripFast(30*time.Millisecond), slog.New(slog.DiscardHandler))

	for range 3 {
		_, _ = get(t, b, srv.URL)
	}
	require.Equal(t, gobreaker.StateOpen, b.State())

	failing.Store(false)
	require.Eventually(t, func() bool {
		return b.State() == gobreaker.StateHalfOpen
	}, time.Second, 5*time.Millisecond)

	resp, err := get(t, b, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, 0.0, testutil.ToFloat64(breakerState.WithLabelValues("breaker-recover")))
}

func TestBreaker_Check(t *testing.T) {
	srv, failing := switchable(t)
	failing.Store(true)
	b := NewBreaker("breaker-check", http.DefaultTransport, tripFast(time.Minute), slog.New(slog.DiscardHandler))

	require.NoError(t, b.Check(context.Background()))
	for range 3 {
		_, _ = get(t, b, srv.URL)
	}
	require.Equal(t, gobreaker.StateOpen, b.State())

	err := b.Check(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "breaker-check")
}

func TestBreaker_BelowMinRequestsStaysClosed(t *testing.T) {
	srv, failing := switchable(t)
	failing.Store(true)
	b := NewBreaker("breaker-min", http.DefaultTransport, tripFast(time.Minute), slog.New(slog.DiscardHandler))

	for range 2 {
		_, _ = get(t, b, srv.URL)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestNew_ChainsBreakerOverRetry(t *testing.T) {
	opts := DefaultOptions("engine")
	client, breaker := New(opts, slog.New(slog.DiscardHandler))

	require.NotNil(t, breaker)
	assert.Same(t, breaker, client.Transport)
	assert.Equal(t, opts.Timeout, client.Timeout)

	retry, ok := breaker.next.(*retryTransport)
	require.True(t, ok)
	assert.Equal(t, opts.Retry, retry.policy)
	_, ok = retry.next.(*http.Transport)
	assert.True(t, ok)
}

func TestStateValue(t *testing.T) {
	assert.Equal(t, 0.0, stateValue(gobreaker.StateClosed))
	assert.Equal(t, 1.0, stateValue(gobreaker.StateHalfOpen))
	assert.Equal(t, 2.0, stateValue(gobreaker.StateOpen))
}
