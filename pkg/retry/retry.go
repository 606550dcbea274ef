// Package retry implements the bounded retry-with-backoff helper shared by
// every outbound client: keep trying a request until it succeeds or a
// wall-clock deadline elapses, backing off on HTTP 429 as on any failure.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// ErrDeadlineExceeded is returned when the deadline elapses without a
// successful attempt. Callers treat it as "source unavailable" and must
// substitute a typed default rather than propagate it.
var ErrDeadlineExceeded = errors.New("retry: deadline exceeded")

const (
	// DefaultDeadline is 270s of a 300s tick.
	DefaultDeadline = 270 * time.Second
	// DefaultBackoff is the base backoff unit, scaled by attempt number.
	DefaultBackoff = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

// StatusError carries the HTTP status code of a non-2xx response so
// callers can detect rate limiting.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return http.StatusText(e.StatusCode)
}

// Options configures a Do call. Zero value uses the package defaults.
type Options struct {
	Deadline time.Duration
	Backoff  time.Duration
}

func (o Options) withDefaults() Options {
	if o.Deadline <= 0 {
		o.Deadline = DefaultDeadline
	}
	if o.Backoff <= 0 {
		o.Backoff = DefaultBackoff
	}
	return o
}

// Do calls fn repeatedly until it returns a nil error, the deadline
// elapses, or ctx is cancelled. On any error, including an HTTP 429
// (detected via StatusError and logged as rate limiting), it waits
// min(backoff*attempt, 30s, remaining) before retrying. It never
// returns fn's error directly on deadline exhaustion — it returns
// ErrDeadlineExceeded instead, matching the "never raise to caller"
// contract of the tick loop.
func Do(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	opts = opts.withDefaults()
	start := time.Now()
	attempt := 0
	var lastErr error
	for {
		attempt++
		elapsed := time.Since(start)
		if elapsed > opts.Deadline {
			if lastErr != nil {
				slog.ErrorContext(ctx, "retry deadline exceeded", slog.Int("attempt", attempt-1), slog.Any("last_error", lastErr))
			}
			return ErrDeadlineExceeded
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var statusErr *StatusError
		remaining := opts.Deadline - time.Since(start)
		if remaining <= 0 {
			slog.ErrorContext(ctx, "retry deadline exceeded", slog.Any("error", err))
			return ErrDeadlineExceeded
		}
		wait := scaledBackoff(opts.Backoff, attempt, maxBackoff)
		if wait > remaining {
			wait = remaining
		}
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
			slog.WarnContext(ctx, "rate limited, retrying", slog.Int("attempt", attempt), slog.Duration("wait", wait))
		} else {
			slog.WarnContext(ctx, "attempt failed, retrying", slog.Int("attempt", attempt), slog.Any("error", err), slog.Duration("wait", wait))
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func scaledBackoff(base time.Duration, attempt int, cap time.Duration) time.Duration {
	w := base * time.Duration(attempt)
	if w > cap {
		return cap
	}
	return w
}
