package collab

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWithRetry_SucceedsWithoutRetryingOnFirstTry(t *testing.T) {
	calls := 0
	result, err := WithRetry(context.Background(), RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, result)
	require.Equal(t, 1, calls)
}

func TestWithRetry_RetriesOnlyTransientErrors(t *testing.T) {
	structuredErr := errors.New("structured tool error")
	calls := 0
	_, err := WithRetry(context.Background(), RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		return 0, structuredErr
	})
	require.ErrorIs(t, err, structuredErr)
	require.Equal(t, 1, calls, "non-transient errors must not be retried")
}

func TestWithRetry_RetriesTransientErrorsUntilExhausted(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		return 0, Transient(errors.New("connection reset"))
	})
	require.Error(t, err)
	require.Equal(t, 4, calls, "MaxAttempts=3 means 4 total attempts (1 initial + 3 retries)")
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	result, err := WithRetry(context.Background(), RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, Transient(errors.New("connection reset"))
		}
		return 7, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, result)
	require.Equal(t, 3, calls)
}

func TestWithRetry_ContextCancellationStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := WithRetry(ctx, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}, func(ctx context.Context) (int, error) {
		calls++
		return 0, Transient(errors.New("connection reset"))
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestIsTransient_DistinguishesWrappedFromPlainErrors(t *testing.T) {
	require.True(t, IsTransient(Transient(errors.New("x"))))
	require.False(t, IsTransient(errors.New("x")))
}

func TestWithFallback_RunsFallbackOnlyWhenPrimaryFails(t *testing.T) {
	fallbackCalled := false
	result, err := WithFallback(context.Background(),
		func(ctx context.Context) (int, error) { return 1, nil },
		func(ctx context.Context) (int, error) { fallbackCalled = true; return 2, nil },
	)
	require.NoError(t, err)
	require.Equal(t, 1, result)
	require.False(t, fallbackCalled)
}

func TestWithFallback_RunsFallbackOnPrimaryError(t *testing.T) {
	result, err := WithFallback(context.Background(),
		func(ctx context.Context) (int, error) { return 0, errors.New("primary down") },
		func(ctx context.Context) (int, error) { return 9, nil },
	)
	require.NoError(t, err)
	require.Equal(t, 9, result)
}
