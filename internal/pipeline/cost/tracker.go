/*
Package cost accumulates per-phase monetary cost against an optional
budget ceiling.
*/
package cost

import (
	"sync"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

// Status is the result of a budget check.
type Status int

const (
	OK Status = iota
	OverBudget
)

// Tracker accumulates cost per phase and checks it against a budget.
//
// Tracker is safe for concurrent use: builder subprocesses and
// collaborator clients may all charge cost from different goroutines
// within the same phase.
type Tracker struct {
	mu        sync.Mutex
	total     float64
	perPhase  map[pipeline.Phase]float64
	budget    *float64
}

// New returns a Tracker with an optional budget ceiling. A nil budget
// means unlimited spend.
func New(budget *float64) *Tracker {
	return &Tracker{perPhase: map[pipeline.Phase]float64{}, budget: budget}
}

// Charge records amount spent during phase p.
func (t *Tracker) Charge(p pipeline.Phase, amount float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total += amount
	t.perPhase[p] += amount
}

// Snapshot returns the total cost and a copy of the per-phase map. The
// total always equals the sum of the per-phase map by construction:
// Charge updates both under the same lock.
func (t *Tracker) Snapshot() (float64, map[pipeline.Phase]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make(map[pipeline.Phase]float64, len(t.perPhase))
	for k, v := range t.perPhase {
		cp[k] = v
	}
	return t.total, cp
}

// CheckBudget reports OverBudget once total spend exceeds the ceiling.
func (t *Tracker) CheckBudget() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.budget == nil {
		return OK
	}
	if t.total > *t.budget {
		return OverBudget
	}
	return OK
}

// LoadFromState seeds a Tracker from a resumed PipelineState so that
// resume continues charging against the same running total instead of
// restarting at zero.
func LoadFromState(s *pipeline.PipelineState) *Tracker {
	t := New(s.BudgetLimit)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = s.TotalCost
	for p, v := range s.PhaseCosts {
		t.perPhase[p] = v
	}
	return t
}

// ApplyTo writes the tracker's current totals back into s, keeping the
// total/per-phase invariant intact after a charge made outside of a
// phase handler's own bookkeeping (e.g. a collaborator retry charged
// mid-phase).
func (t *Tracker) ApplyTo(s *pipeline.PipelineState) {
	total, perPhase := t.Snapshot()
	s.TotalCost = total
	s.PhaseCosts = perPhase
}
