package cost

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

func TestCharge_AccumulatesTotalAndPerPhase(t *testing.T) {
	tr := New(nil)
	tr.Charge(pipeline.PhaseArchitectRunning, 1.5)
	tr.Charge(pipeline.PhaseArchitectRunning, 0.5)
	tr.Charge(pipeline.PhaseBuildersRunning, 2.0)

	total, perPhase := tr.Snapshot()
	require.Equal(t, 4.0, total)
	require.Equal(t, 2.0, perPhase[pipeline.PhaseArchitectRunning])
	require.Equal(t, 2.0, perPhase[pipeline.PhaseBuildersRunning])

	// total must always equal the sum of per-phase costs
	sum := 0.0
	for _, v := range perPhase {
		sum += v
	}
	require.Equal(t, total, sum)
}

func TestCheckBudget_NilBudgetNeverOver(t *testing.T) {
	tr := New(nil)
	tr.Charge(pipeline.PhaseArchitectRunning, 1_000_000)
	require.Equal(t, OK, tr.CheckBudget())
}

func TestCheckBudget_OverBudget(t *testing.T) {
	budget := 0.01
	tr := New(&budget)
	tr.Charge(pipeline.PhaseArchitectRunning, 0.02)
	require.Equal(t, OverBudget, tr.CheckBudget())
}

func TestCheckBudget_ExactlyAtBudgetIsNotOver(t *testing.T) {
	budget := 1.0
	tr := New(&budget)
	tr.Charge(pipeline.PhaseArchitectRunning, 1.0)
	require.Equal(t, OK, tr.CheckBudget())
}

func TestLoadFromState_SeedsFromResumedState(t *testing.T) {
	s := pipeline.NewPipelineState("run", "prd.md", "cfg.yaml")
	s.TotalCost = 3.0
	s.PhaseCosts = map[pipeline.Phase]float64{pipeline.PhaseArchitectRunning: 3.0}

	tr := LoadFromState(s)
	total, perPhase := tr.Snapshot()
	require.Equal(t, 3.0, total)
	require.Equal(t, 3.0, perPhase[pipeline.PhaseArchitectRunning])

	tr.Charge(pipeline.PhaseBuildersRunning, 1.0)
	tr.ApplyTo(s)
	require.Equal(t, 4.0, s.TotalCost)
}
