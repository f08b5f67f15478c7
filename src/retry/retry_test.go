package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions() Options {
	return Options{
		MaxAttempts:       3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          10 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

// -----------------------------------------------------------------------------

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	}, fastOptions())

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, fastOptions())

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsOriginalErrorOnFinalAttempt(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	}, fastOptions())

	assert.Equal(t, 3, calls)
	assert.Same(t, boom, err)
}

func TestDoStopsWhenNotRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	opts := fastOptions()
	opts.IsRetryable = func(err error, attempt int) bool { return false }

	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fatal
	}, opts)

	assert.Equal(t, 1, calls)
	assert.Same(t, fatal, err)
}

func TestDoInvokesOnRetryHook(t *testing.T) {
	var attempts []int
	opts := fastOptions()
	opts.OnRetry = func(err error, attempt int, delay time.Duration) {
		attempts = append(attempts, attempt)
	}

	_ = Do(context.Background(), func(ctx context.Context) error {
		return errors.New("transient")
	}, opts)

	// Hook fires after every attempt except the final one.
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoCancelledDuringBackoff(t *testing.T) {
	opts := fastOptions()
	opts.InitialDelay = time.Minute
	opts.MaxDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	opts.OnRetry = func(err error, attempt int, delay time.Duration) {
		cancel()
	}

	start := time.Now()
	err := Do(ctx, func(ctx context.Context) error {
		return errors.New("transient")
	}, opts)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second, "cancellation must abort the sleep")
}

// -----------------------------------------------------------------------------

func TestDelayForBounds(t *testing.T) {
	opts := Options{
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2,
		Jitter:            true,
		JitterFactor:      0.5,
	}

	for attempt := 1; attempt <= 6; attempt++ {
		base := float64(opts.InitialDelay) * pow(opts.BackoffMultiplier, attempt-1)
		if base > float64(opts.MaxDelay) {
			base = float64(opts.MaxDelay)
		}

		for i := 0; i < 50; i++ {
			d := DelayFor(attempt, opts)
			assert.GreaterOrEqual(t, float64(d), base)
			assert.LessOrEqual(t, float64(d), base*(1+opts.JitterFactor))
		}
	}
}

func TestDelayForNoJitterIsDeterministic(t *testing.T) {
	opts := Options{
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2,
	}

	assert.Equal(t, 100*time.Millisecond, DelayFor(1, opts))
	assert.Equal(t, 200*time.Millisecond, DelayFor(2, opts))
	assert.Equal(t, 400*time.Millisecond, DelayFor(3, opts))
	assert.Equal(t, 800*time.Millisecond, DelayFor(4, opts))
	assert.Equal(t, time.Second, DelayFor(5, opts), "capped at max delay")
}

func pow(base float64, exp int) float64 {
	out := 1.0
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}
