package errors

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RetryConfig defines retry behavior configuration
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first one
	MaxAttempts int
	// BackoffBase is the unit of the exponential backoff
	BackoffBase time.Duration
	// MaxBackoff caps a single wait; zero means uncapped
	MaxBackoff time.Duration
	// Multiplier is the backoff multiplier for exponential backoff
	Multiplier float64
	// RetryableErrors is a function to determine if an error is retryable
	RetryableErrors func(error) bool
	// OnRetry is called before each backoff wait
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BackoffBase: 1 * time.Second,
		MaxBackoff:  0,
		Multiplier:  2.0,
		RetryableErrors: func(err error) bool {
			return IsRetryable(err)
		},
	}
}

// RetryWithBackoff runs fn until it succeeds, the attempt budget is spent,
// a non-retryable error occurs, or ctx is cancelled.
//
// fn receives the 1-based attempt number. After failed attempt n the wait is
// BackoffBase * Multiplier^n. When every attempt fails the last error is
// returned wrapped in an exhausted retries error.
func RetryWithBackoff(ctx context.Context, config RetryConfig, fn func(attempt int) error) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		}

		if config.RetryableErrors != nil && !config.RetryableErrors(err) {
			return fmt.Errorf("non-retryable error: %w", err)
		}

		// Don't sleep after the last attempt
		if attempt == config.MaxAttempts {
			break
		}

		backoff := calculateBackoff(attempt, config.BackoffBase, config.MaxBackoff, config.Multiplier)
		if config.OnRetry != nil {
			config.OnRetry(attempt, err, backoff)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}

	return NewExhaustedRetriesError(config.MaxAttempts, lastErr)
}

// calculateBackoff calculates the backoff duration for a given attempt
func calculateBackoff(attempt int, base, max time.Duration, multiplier float64) time.Duration {
	if multiplier <= 0 {
		multiplier = 2.0
	}

	backoff := float64(base) * math.Pow(multiplier, float64(attempt))

	if max > 0 && backoff > float64(max) {
		backoff = float64(max)
	}

	return time.Duration(backoff)
}
