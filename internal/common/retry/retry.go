// Package retry implements the single backoff policy shared by upload
// retries, ingest polling, and render polling.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Policy computes exponential backoff delays and bounds the attempt budget.
type Policy struct {
	BaseDelay   time.Duration
	Factor      float64
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultPolicy mirrors the constants used across the network-facing loops.
// They are tuning parameters, not invariants.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   500 * time.Millisecond,
		Factor:      2,
		MaxDelay:    5 * time.Second,
		MaxAttempts: 3,
	}
}

// Delay returns min(BaseDelay * Factor^attempt, MaxDelay) for attempt >= 0.
// The sequence is non-decreasing and never exceeds MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := float64(p.BaseDelay)
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	d := base * math.Pow(factor, float64(attempt))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > float64(math.MaxInt64) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Stop wraps err so Do aborts immediately instead of retrying.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op up to MaxAttempts times, sleeping Delay(attempt) between
// attempts and honoring ctx cancellation. A Stop-wrapped error aborts
// immediately. After the budget is exhausted the last error is returned
// wrapped with the attempt count, so the operation fails rather than
// looping indefinitely.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.Delay(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
	}

	return fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}
