package errors

import (
	"context"
	"math/rand/v2"
	"time"
)

// DelayStrategy computes the wait before a retry attempt. Attempt numbering
// starts at 1 for the delay following the first failure.
type DelayStrategy interface {
	Delay(attempt int) time.Duration
}

// FixedDelay waits the same duration between every attempt.
type FixedDelay time.Duration

// Delay implements DelayStrategy.
func (d FixedDelay) Delay(int) time.Duration {
	return time.Duration(d)
}

// ExponentialBackoff grows the delay multiplicatively with optional jitter.
type ExponentialBackoff struct {
	// Initial is the delay after the first failure.
	Initial time.Duration

	// Factor is the multiplier applied per attempt. Values <= 1 mean fixed.
	Factor float64

	// Max caps the delay. Zero means uncapped.
	Max time.Duration

	// Jitter is the random jitter factor (0.0-1.0).
	Jitter float64
}

// Delay implements DelayStrategy.
func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	d := float64(b.Initial)
	for i := 1; i < attempt; i++ {
		if b.Factor > 1 {
			d *= b.Factor
		}
	}
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d += d * b.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	MaxAttempts int

	// Strategy computes the delay between attempts.
	// Nil means no delay between attempts.
	Strategy DelayStrategy

	// RetryableFunc optionally overrides the default retryability check.
	RetryableFunc func(error) bool
}

// DefaultRetry is the standard retry configuration: three attempts with a
// fixed one-second delay.
var DefaultRetry = RetryConfig{
	MaxAttempts: 3,
	Strategy:    FixedDelay(1 * time.Second),
}

// NoRetry disables retries.
var NoRetry = RetryConfig{
	MaxAttempts: 1,
}

// Result contains the outcome of a retried operation.
type Result[T any] struct {
	// Value is the result if successful.
	Value T

	// Err is the final error if all attempts failed.
	Err error

	// Attempts is the number of attempts made.
	Attempts int

	// Duration is the total time spent including backoff waits.
	Duration time.Duration
}

// WithRetry executes a function with retries based on the configuration.
func WithRetry[T any](cfg RetryConfig, fn func() (T, error)) Result[T] {
	return WithRetryContext(context.Background(), cfg, func(_ context.Context) (T, error) {
		return fn()
	})
}

// WithRetryContext executes a function with retries, respecting context
// cancellation. The retry loop is a plain state machine over (attempt count,
// last error): handler errors are ordinary values, never re-raised.
func WithRetryContext[T any](
	ctx context.Context,
	cfg RetryConfig,
	fn func(context.Context) (T, error),
) Result[T] {
	start := time.Now()
	var lastErr error

	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	isRetryable := cfg.RetryableFunc
	if isRetryable == nil {
		isRetryable = IsRetryable
	}

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result[T]{
				Err:      &CategorizedError{Err: err, Category: CategoryPermanent, Context: "context cancelled"},
				Attempts: attempt - 1,
				Duration: time.Since(start),
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return Result[T]{
				Value:    result,
				Attempts: attempt,
				Duration: time.Since(start),
			}
		}

		lastErr = err

		if !isRetryable(err) {
			return Result[T]{
				Err: &CategorizedError{
					Err:      err,
					Category: Categorize(err),
					Attempts: attempt,
				},
				Attempts: attempt,
				Duration: time.Since(start),
			}
		}

		// Don't sleep after the last attempt.
		if attempt < cfg.MaxAttempts && cfg.Strategy != nil {
			select {
			case <-ctx.Done():
				return Result[T]{
					Err:      &CategorizedError{Err: ctx.Err(), Category: CategoryPermanent, Context: "context cancelled during backoff", Attempts: attempt},
					Attempts: attempt,
					Duration: time.Since(start),
				}
			case <-time.After(cfg.Strategy.Delay(attempt)):
			}
		}
	}

	return Result[T]{
		Err: &CategorizedError{
			Err:      lastErr,
			Category: Categorize(lastErr),
			Attempts: cfg.MaxAttempts,
			Context:  "max retries exceeded",
		},
		Attempts: cfg.MaxAttempts,
		Duration: time.Since(start),
	}
}
