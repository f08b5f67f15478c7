package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

// Options controls the backoff schedule and the retry decision hooks.
type Options struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool
	JitterFactor      float64

	// IsRetryable decides whether an error is worth another attempt.
	// When nil every error is retryable.
	IsRetryable func(err error, attempt int) bool

	// OnRetry is invoked before each backoff sleep.
	OnRetry func(err error, attempt int, delay time.Duration)
}

// DefaultOptions returns the standard retry policy.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
		Jitter:            true,
		JitterFactor:      0.3,
	}
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// ExhaustedError reports that every attempt failed without an early return.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// -----------------------------------------------------------------------------
// Executor
// -----------------------------------------------------------------------------

// Do runs op until it succeeds, is judged non-retryable, or attempts run out.
// The backoff sleep honors ctx: cancellation during the sleep aborts with the
// context's error, not a retry error. The final attempt's error is returned
// unchanged.
func Do(ctx context.Context, op func(ctx context.Context) error, opts Options) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.BackoffMultiplier < 1 {
		opts.BackoffMultiplier = 1
	}

	var lastErr error

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == opts.MaxAttempts {
			return lastErr
		}
		if opts.IsRetryable != nil && !opts.IsRetryable(lastErr, attempt) {
			return lastErr
		}

		delay := DelayFor(attempt, opts)
		if opts.OnRetry != nil {
			opts.OnRetry(lastErr, attempt, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	// Unreachable through the loop above; kept so a broken schedule still
	// surfaces as a typed failure instead of a nil error.
	return &ExhaustedError{Attempts: opts.MaxAttempts, Last: lastErr}
}

// -----------------------------------------------------------------------------

// DelayFor computes the backoff delay for attempt n (1-based):
// min(initial * multiplier^(n-1), max), plus uniform jitter when enabled.
func DelayFor(attempt int, opts Options) time.Duration {
	base := float64(opts.InitialDelay) * math.Pow(opts.BackoffMultiplier, float64(attempt-1))
	if opts.MaxDelay > 0 && base > float64(opts.MaxDelay) {
		base = float64(opts.MaxDelay)
	}

	delay := base
	if opts.Jitter && opts.JitterFactor > 0 {
		delay += rand.Float64() * base * opts.JitterFactor
	}

	return time.Duration(int64(delay))
}
