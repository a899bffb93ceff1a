package shutdown

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestStop_SetsFlagAndReason(t *testing.T) {
	c := New(nil)
	require.False(t, c.ShouldStop())

	c.RequestStop("test-reason")
	require.True(t, c.ShouldStop())
	require.Equal(t, "test-reason", c.Reason())
}

func TestRequestStop_OnlyInvokesCallbackOnce(t *testing.T) {
	calls := 0
	c := New(func(reason string) { calls++ })

	c.RequestStop("first")
	c.RequestStop("second")

	require.Equal(t, 1, calls)
	require.Equal(t, "first", c.Reason())
}

func TestStop_IsIdempotent(t *testing.T) {
	c := New(nil)
	c.Start()
	c.Stop()
	c.Stop()
}
