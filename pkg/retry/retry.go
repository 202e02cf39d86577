// Package retry runs startup operations against dependencies that may not
// be reachable yet.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Policy is a jittered exponential backoff.
type Policy struct {
	// Attempts is the total number of calls, first one included.
	Attempts int
	BaseWait time.Duration
	// Jitter spreads each wait by up to ±Jitter of itself.
	Jitter float64
	// Retryable filters errors worth another attempt. Nil retries all.
	Retryable func(error) bool
}

// Startup waits 1s, 2s and 4s (±25%) across three attempts.
func Startup() Policy {
	return Policy{Attempts: 3, BaseWait: time.Second, Jitter: 0.25}
}

// Backoff returns the wait after the given failed attempt (0-based).
func (p Policy) Backoff(attempt int) time.Duration {
	base := p.BaseWait << max(attempt, 0)
	if p.Jitter <= 0 {
		return base
	}
	spread := float64(base) * p.Jitter * (2*rand.Float64() - 1) // #nosec G404 -- jitter only
	return base + time.Duration(spread)
}

// Do calls fn until it succeeds, the policy is exhausted or ctx ends. A
// rejected error is returned unwrapped; exhaustion wraps the last error.
func (p Policy) Do(ctx context.Context, op string, logger *slog.Logger, fn func(context.Context) error) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	attempts := max(p.Attempts, 1)

	var err error
	for attempt := range attempts {
		if err = fn(ctx); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		wait := p.Backoff(attempt)
		logger.WarnContext(ctx, op+" failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", attempts),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: context canceled during retry: %w", op, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", op, attempts, err)
}
