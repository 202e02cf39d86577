package httpclient

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "marketsearch_upstream_retries_total",
	Help: "Retried upstream HTTP attempts by client and reason.",
}, []string{"client", "reason"})

// RetryPolicy bounds how transient upstream failures are retried.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// backoff returns the wait before the given retry (1-based): exponential
// growth from MinWait capped at MaxWait, with the upper half jittered.
func (p RetryPolicy) backoff(retry int) time.Duration {
	d := p.MinWait
	for i := 1; i < retry && d < p.MaxWait; i++ {
		d *= 2
	}
	if d <= 0 || d > p.MaxWait {
		d = p.MaxWait
	}
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + rand.N(d-half+1)
}

// retryAfter honours a delay-seconds Retry-After header, capped at MaxWait.
func (p RetryPolicy) retryAfter(resp *http.Response) (time.Duration, bool) {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0, false
	}
	d := time.Duration(secs) * time.Second
	if p.MaxWait > 0 && d > p.MaxWait {
		d = p.MaxWait
	}
	return d, true
}

type retryTransport struct {
	name   string
	next   http.RoundTripper
	policy RetryPolicy
}

func newRetryTransport(name string, next http.RoundTripper, policy RetryPolicy) *retryTransport {
	return &retryTransport{name: name, next: next, policy: policy}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	replayable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil

	for attempt := 0; ; attempt++ {
		resp, err := t.next.RoundTrip(req)
		last := !replayable || attempt >= t.policy.MaxRetries

		var wait time.Duration
		switch {
		case err != nil:
			if last || !transientError(err) {
				return nil, fmt.Errorf("%s: %d attempt(s): %w", t.name, attempt+1, err)
			}
			retriesTotal.WithLabelValues(t.name, "network").Inc()
			wait = t.policy.backoff(attempt + 1)

		case retryableStatus(resp.StatusCode) && !last:
			retriesTotal.WithLabelValues(t.name, strconv.Itoa(resp.StatusCode)).Inc()
			var ok bool
			if wait, ok = t.policy.retryAfter(resp); !ok {
				wait = t.policy.backoff(attempt + 1)
			}
			_ = resp.Body.Close()

		default:
			return resp, nil
		}

		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("%s: rewind request body: %w", t.name, err)
			}
			req = req.Clone(ctx)
			req.Body = body
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// transientError reports network failures worth another attempt. Caller
// cancellation and deadlines are final.
func transientError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
