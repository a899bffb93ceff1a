package fixpass

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStepRunner_Run_AllStepsSucceedRecordsAllNames(t *testing.T) {
	r := &StepRunner{DefaultTimeout: time.Second}
	order := []string{}
	steps := []Step{
		{Name: "discover", Run: func(ctx context.Context) error { order = append(order, "discover"); return nil }},
		{Name: "classify", Run: func(ctx context.Context) error { order = append(order, "classify"); return nil }},
	}

	ok := r.Run(context.Background(), steps)
	require.True(t, ok)
	require.Equal(t, []string{"discover", "classify"}, r.Completed)
	require.Equal(t, []string{"discover", "classify"}, order)
	require.NoError(t, r.LastErr)
}

func TestStepRunner_Run_StopsAtFirstFailureAndRecordsPartialProgress(t *testing.T) {
	r := &StepRunner{DefaultTimeout: time.Second}
	steps := []Step{
		{Name: "discover", Run: func(ctx context.Context) error { return nil }},
		{Name: "generate", Run: func(ctx context.Context) error { return errors.New("boom") }},
		{Name: "apply", Run: func(ctx context.Context) error { t.Fatal("apply must not run after generate fails"); return nil }},
	}

	ok := r.Run(context.Background(), steps)
	require.False(t, ok)
	require.Equal(t, []string{"discover"}, r.Completed)
	require.Error(t, r.LastErr)
	require.Contains(t, r.LastErr.Error(), "step generate")
	require.Contains(t, r.LastErr.Error(), "boom")
}

func TestStepRunner_Run_PerStepTimeoutOverridesDefault(t *testing.T) {
	r := &StepRunner{DefaultTimeout: time.Hour}
	steps := []Step{
		{
			Name:    "verify",
			Timeout: 5 * time.Millisecond,
			Run: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
	}

	ok := r.Run(context.Background(), steps)
	require.False(t, ok)
	require.ErrorIs(t, r.LastErr, context.DeadlineExceeded)
}

func TestStepRunner_Run_ZeroTimeoutStepFallsBackToDefault(t *testing.T) {
	r := &StepRunner{DefaultTimeout: 5 * time.Millisecond}
	steps := []Step{
		{
			Name: "regress",
			Run: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
	}

	ok := r.Run(context.Background(), steps)
	require.False(t, ok)
	require.ErrorIs(t, r.LastErr, context.DeadlineExceeded)
}

func TestStepRunner_Run_EmptyStepsSucceedsTrivially(t *testing.T) {
	r := &StepRunner{}
	ok := r.Run(context.Background(), nil)
	require.True(t, ok)
	require.Empty(t, r.Completed)
	require.NoError(t, r.LastErr)
}

func TestStepRunner_Run_ParentCancellationPropagatesToStep(t *testing.T) {
	r := &StepRunner{DefaultTimeout: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	steps := []Step{
		{Name: "discover", Run: func(ctx context.Context) error { return ctx.Err() }},
	}

	ok := r.Run(ctx, steps)
	require.False(t, ok)
	require.ErrorIs(t, r.LastErr, context.Canceled)
}
