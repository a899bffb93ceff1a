/*
Package state implements the pipeline's phase transition machine as a
pure tagged-enum + guard table, rather than a class-hierarchy or
callback-driven framework. Single-threaded, one-trigger-at-a-time
semantics fall out naturally from the driver evaluating one trigger at
a time and never holding two in flight concurrently — see
internal/pipeline/driver.
*/
package state

import (
	"fmt"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

// Trigger names a transition between phases.
type Trigger string

const (
	TriggerStartArchitect      Trigger = "start_architect"
	TriggerArchitectDone       Trigger = "architect_done"
	TriggerApproveArchitect    Trigger = "approve_architect"
	TriggerContractsRegistered Trigger = "contracts_registered"
	TriggerBuildersDone        Trigger = "builders_done"
	TriggerStartIntegration    Trigger = "start_integration"
	TriggerIntegrationDone     Trigger = "integration_done"
	TriggerQualityPassed       Trigger = "quality_passed"
	TriggerQualityNeedsFix     Trigger = "quality_needs_fix"
	TriggerSkipToComplete      Trigger = "skip_to_complete"
	TriggerFixDone             Trigger = "fix_done"
	TriggerRetryArchitect      Trigger = "retry_architect"
	TriggerFail                Trigger = "fail"
)

// Guard evaluates whether a transition may fire against the current state.
type Guard func(*pipeline.PipelineState) bool

// transition is one row of the guard table.
type transition struct {
	trigger Trigger
	from    pipeline.Phase
	to      pipeline.Phase
	guard   Guard
}

// AlwaysAllow is a guard with no precondition beyond phase match.
func AlwaysAllow(*pipeline.PipelineState) bool { return true }

var nonTerminalPhases = []pipeline.Phase{
	pipeline.PhaseInit,
	pipeline.PhaseArchitectRunning,
	pipeline.PhaseArchitectReview,
	pipeline.PhaseContractsRegistering,
	pipeline.PhaseBuildersRunning,
	pipeline.PhaseBuildersComplete,
	pipeline.PhaseIntegrating,
	pipeline.PhaseQualityGate,
	pipeline.PhaseFixPass,
}

func buildTable() []transition {
	table := []transition{
		{TriggerStartArchitect, pipeline.PhaseInit, pipeline.PhaseArchitectRunning, GuardConfigured},
		{TriggerArchitectDone, pipeline.PhaseArchitectRunning, pipeline.PhaseArchitectReview, GuardHasServiceMap},
		{TriggerApproveArchitect, pipeline.PhaseArchitectReview, pipeline.PhaseContractsRegistering, GuardServiceMapValid},
		{TriggerContractsRegistered, pipeline.PhaseContractsRegistering, pipeline.PhaseBuildersRunning, GuardContractsValid},
		{TriggerBuildersDone, pipeline.PhaseBuildersRunning, pipeline.PhaseBuildersComplete, GuardHasBuilderResults},
		{TriggerStartIntegration, pipeline.PhaseBuildersComplete, pipeline.PhaseIntegrating, GuardAtLeastOneBuilderPassed},
		{TriggerIntegrationDone, pipeline.PhaseIntegrating, pipeline.PhaseQualityGate, GuardHasIntegrationReport},
		{TriggerQualityPassed, pipeline.PhaseQualityGate, pipeline.PhaseComplete, GuardGatePassed},
		{TriggerQualityNeedsFix, pipeline.PhaseQualityGate, pipeline.PhaseFixPass, GuardAttemptsRemaining},
		{TriggerSkipToComplete, pipeline.PhaseQualityGate, pipeline.PhaseComplete, GuardAdvisoryOnly},
		{TriggerFixDone, pipeline.PhaseFixPass, pipeline.PhaseBuildersRunning, GuardFixApplied},
		{TriggerRetryArchitect, pipeline.PhaseArchitectRunning, pipeline.PhaseArchitectRunning, GuardRetriesRemaining},
	}
	for _, p := range nonTerminalPhases {
		table = append(table, transition{TriggerFail, p, pipeline.PhaseFailed, AlwaysAllow})
	}
	return table
}

// Machine evaluates triggers against the transition table. It holds no
// mutable state of its own — all state lives in the PipelineState it is
// given — so a Machine value is safe to share and is inherently
// single-threaded from the driver's serialized-trigger-evaluation
// discipline, not from any internal locking.
type Machine struct {
	table []transition
}

// New returns a Machine configured with the full phase transition table.
func New() *Machine {
	return &Machine{table: buildTable()}
}

// InitialPhase is the phase every new PipelineState starts in.
const InitialPhase = pipeline.PhaseInit

// IsTerminal reports whether p is complete or failed.
func IsTerminal(p pipeline.Phase) bool {
	return p == pipeline.PhaseComplete || p == pipeline.PhaseFailed
}

// Fire attempts to apply trigger t to s. An invalid trigger (wrong
// source phase, or a guard that returns false) is ignored rather than
// raising: Fire returns false and leaves s untouched. The caller (the
// driver) is responsible for persisting state before firing — Fire
// itself only mutates CurrentPhase/PreviousPhase once the guard has
// already passed.
func (m *Machine) Fire(s *pipeline.PipelineState, t Trigger) bool {
	for _, row := range m.table {
		if row.trigger != t || row.from != s.CurrentPhase {
			continue
		}
		if !row.guard(s) {
			continue
		}
		s.PreviousPhase = s.CurrentPhase
		s.CurrentPhase = row.to
		return true
	}
	return false
}

// CanFire reports whether t would succeed against s without mutating it.
func (m *Machine) CanFire(s *pipeline.PipelineState, t Trigger) bool {
	for _, row := range m.table {
		if row.trigger == t && row.from == s.CurrentPhase && row.guard(s) {
			return true
		}
	}
	return false
}

// ValidDestination reports whether `to` appears in the table as a
// destination reachable from `from` by any trigger.
func (m *Machine) ValidDestination(from, to pipeline.Phase) bool {
	for _, row := range m.table {
		if row.from == from && row.to == to {
			return true
		}
	}
	return false
}

// ErrInvalidTrigger is returned by MustFire when a trigger is rejected.
type ErrInvalidTrigger struct {
	Trigger Trigger
	Phase   pipeline.Phase
}

func (e *ErrInvalidTrigger) Error() string {
	return fmt.Sprintf("trigger %q is not valid from phase %q", e.Trigger, e.Phase)
}

// MustFire is Fire but returns an error instead of a bool, for callers
// (like phase handlers) that want to treat a rejected trigger as a bug
// rather than a silent no-op.
func (m *Machine) MustFire(s *pipeline.PipelineState, t Trigger) error {
	phase := s.CurrentPhase
	if !m.Fire(s, t) {
		return &ErrInvalidTrigger{Trigger: t, Phase: phase}
	}
	return nil
}
