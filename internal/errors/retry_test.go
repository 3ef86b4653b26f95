package errors

import (
	"context"
	stderrors "errors"
	"testing"
	"time"
)

func testRetryConfig(maxAttempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts: maxAttempts,
		BackoffBase: 5 * time.Millisecond,
		Multiplier:  2.0,
		RetryableErrors: func(err error) bool {
			return IsRetryable(err)
		},
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %v, want 3", config.MaxAttempts)
	}
	if config.BackoffBase != 1*time.Second {
		t.Errorf("BackoffBase = %v, want 1s", config.BackoffBase)
	}
	if config.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v, want 2.0", config.Multiplier)
	}
	if config.RetryableErrors == nil {
		t.Error("RetryableErrors function is nil")
	}
}

func TestRetryWithBackoff_SucceedsOnThirdAttempt(t *testing.T) {
	attemptCount := 0
	err := RetryWithBackoff(context.Background(), testRetryConfig(3), func(attempt int) error {
		attemptCount++
		if attempt != attemptCount {
			t.Errorf("attempt = %d, want %d", attempt, attemptCount)
		}
		if attemptCount < 3 {
			return NewTransferError("temporary failure", 503, nil)
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if attemptCount != 3 {
		t.Errorf("Expected 3 attempts, got %d", attemptCount)
	}
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	attemptCount := 0
	last := NewTransferError("persistent failure", 0, stderrors.New("connection reset"))
	err := RetryWithBackoff(context.Background(), testRetryConfig(3), func(int) error {
		attemptCount++
		return last
	})

	if attemptCount != 3 {
		t.Errorf("Expected 3 attempts, got %d", attemptCount)
	}
	if !IsExhaustedRetries(err) {
		t.Fatalf("Expected exhausted retries error, got %v", err)
	}
	if !stderrors.Is(err, last) {
		t.Error("Expected exhausted error to wrap the last transfer error")
	}
	if !IsTransfer(err) {
		t.Error("Expected transfer error in chain")
	}
}

func TestRetryWithBackoff_NonRetryableError(t *testing.T) {
	attemptCount := 0
	err := RetryWithBackoff(context.Background(), testRetryConfig(3), func(int) error {
		attemptCount++
		return NewTransferError("forbidden", 403, nil)
	})

	if err == nil {
		t.Error("Expected error, got nil")
	}
	if attemptCount != 1 {
		t.Errorf("Expected 1 attempt (no retries), got %d", attemptCount)
	}
	if IsExhaustedRetries(err) {
		t.Error("Non-retryable failure should not be reported as exhausted")
	}
}

func TestRetryWithBackoff_ContextCancellationSkipsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	config := testRetryConfig(3)
	config.BackoffBase = 10 * time.Second
	config.OnRetry = func(int, error, time.Duration) {
		cancel()
	}

	start := time.Now()
	attemptCount := 0
	err := RetryWithBackoff(ctx, config, func(int) error {
		attemptCount++
		return NewTransferError("failure", 0, nil)
	})

	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if attemptCount != 1 {
		t.Errorf("Expected 1 attempt, got %d", attemptCount)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Backoff was not skipped, took %v", elapsed)
	}
}

func TestRetryWithBackoff_OnRetryWaits(t *testing.T) {
	var waits []time.Duration
	config := testRetryConfig(3)
	config.OnRetry = func(attempt int, err error, wait time.Duration) {
		waits = append(waits, wait)
	}

	_ = RetryWithBackoff(context.Background(), config, func(int) error {
		return NewTransferError("failure", 500, nil)
	})

	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	if len(waits) != len(want) {
		t.Fatalf("got %d waits, want %d", len(waits), len(want))
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Errorf("wait[%d] = %v, want %v", i, waits[i], want[i])
		}
	}
}

func TestRetryWithBackoff_ImmediateSuccess(t *testing.T) {
	attemptCount := 0
	err := RetryWithBackoff(context.Background(), DefaultRetryConfig(), func(int) error {
		attemptCount++
		return nil
	})

	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if attemptCount != 1 {
		t.Errorf("Expected 1 attempt, got %d", attemptCount)
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		name       string
		attempt    int
		base       time.Duration
		max        time.Duration
		multiplier float64
		expected   time.Duration
	}{
		{"after first attempt", 1, 1 * time.Second, 0, 2.0, 2 * time.Second},
		{"after second attempt", 2, 1 * time.Second, 0, 2.0, 4 * time.Second},
		{"after third attempt", 3, 1 * time.Second, 0, 2.0, 8 * time.Second},
		{"capped at max", 10, 1 * time.Second, 30 * time.Second, 2.0, 30 * time.Second},
		{"zero multiplier falls back to doubling", 1, 1 * time.Second, 0, 0, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backoff := calculateBackoff(tt.attempt, tt.base, tt.max, tt.multiplier)
			if backoff != tt.expected {
				t.Errorf("calculateBackoff() = %v, want %v", backoff, tt.expected)
			}
		})
	}
}
