package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastRetry(n int) RetryConfig {
	return RetryConfig{
		MaxRetries:    n,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		Multiplier:    2.0,
		RetryableOnly: true,
	}
}

func TestRetry_SucceedsAfterTransientServiceError(t *testing.T) {
	// Given: a call that fails twice with a retryable error then succeeds
	attempts := 0
	fn := func() error {
		attempts++
		if attempts < 3 {
			return New(ErrCodeGenerationService, "timeout", nil)
		}
		return nil
	}

	// When: retrying
	err := Retry(context.Background(), fastRetry(3), fn)

	// Then: succeeds on the third attempt
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_StopsOnNonRetryableError(t *testing.T) {
	// Given: a call that fails with a precondition error
	attempts := 0
	fn := func() error {
		attempts++
		return New(ErrCodeEmptyIndex, "index is empty", nil)
	}

	// When: retrying
	err := Retry(context.Background(), fastRetry(3), fn)

	// Then: only one attempt is made and the code survives
	assert.Equal(t, 1, attempts)
	assert.True(t, errors.Is(err, ErrEmptyIndex))
}

func TestRetry_FailsAfterMaxRetries(t *testing.T) {
	// Given: an operation that always fails with a retryable error
	attempts := 0
	last := New(ErrCodeEmbeddingService, "quota", nil).WithSuggestion("wait and retry")
	fn := func() error {
		attempts++
		return last
	}

	// When: retrying twice
	err := Retry(context.Background(), fastRetry(2), fn)

	// Then: the last error comes back unchanged after three attempts
	assert.Equal(t, 3, attempts)
	assert.Same(t, last, err)
	assert.True(t, errors.Is(err, ErrEmbeddingService))
	assert.Contains(t, FormatForCLI(err), "Error: quota\n")
}

func TestRetry_RetriesPlainErrorsWhenNotRestricted(t *testing.T) {
	cfg := fastRetry(1)
	cfg.RetryableOnly = false
	attempts := 0

	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return errors.New("flaky")
	})

	assert.Error(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	// Given: a cancelled context
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// When: retrying
	called := false
	err := Retry(ctx, fastRetry(3), func() error {
		called = true
		return nil
	})

	// Then: the function never runs
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRetryWithResult_ReturnsValue(t *testing.T) {
	attempts := 0
	got, err := RetryWithResult(context.Background(), fastRetry(2), func() (string, error) {
		attempts++
		if attempts == 1 {
			return "", New(ErrCodeGenerationService, "503", nil)
		}
		return "answer", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "answer", got)
}

func TestRetryWithResult_ZeroRetriesReturnsErrorUnwrapped(t *testing.T) {
	want := New(ErrCodeGenerationService, "down", nil)

	_, err := RetryWithResult(context.Background(), fastRetry(0), func() (int, error) {
		return 0, want
	})

	assert.Equal(t, want, err)
}
