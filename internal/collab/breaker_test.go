package collab

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAfterFailureThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, OpenTimeout: time.Hour})
	failing := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return failing })
		require.ErrorIs(t, err, failing)
	}
	require.Equal(t, CircuitOpen, cb.State())

	// further calls are rejected outright without invoking fn
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.False(t, called)
}

func TestCircuitBreaker_HalfOpenProbeAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: time.Millisecond})
	boom := errors.New("boom")
	require.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	require.Equal(t, CircuitOpen, cb.State())

	time.Sleep(5 * time.Millisecond)

	// the next call is allowed through as a half-open probe and succeeds,
	// closing the circuit again since SuccessThreshold is 1.
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: time.Millisecond})
	cb.Execute(func() error { return errors.New("boom") })
	require.Equal(t, CircuitOpen, cb.State())

	time.Sleep(5 * time.Millisecond)

	err := cb.Execute(func() error { return errors.New("still broken") })
	require.Error(t, err)
	require.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_ClosedStateResetsFailureCountOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, OpenTimeout: time.Hour})
	cb.Execute(func() error { return errors.New("boom") })
	cb.Execute(func() error { return errors.New("boom") })
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.Equal(t, CircuitClosed, cb.State())

	// two more failures shouldn't open it since the counter reset
	cb.Execute(func() error { return errors.New("boom") })
	cb.Execute(func() error { return errors.New("boom") })
	require.Equal(t, CircuitClosed, cb.State())
}

func TestDefaultCircuitBreakerConfig_FillsZeroValues(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	require.Equal(t, CircuitClosed, cb.State())
	require.Equal(t, DefaultCircuitBreakerConfig(), cb.config)
}
