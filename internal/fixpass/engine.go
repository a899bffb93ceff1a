package fixpass

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
	"github.com/pipelineforge/orchestrator/internal/quality"
)

// Deps are the collaborators one fix-pass cycle needs. ScanFn re-runs
// the quality gate and returns its violations as a flat list; ApplyFn
// re-invokes a single service's builder (the driver runs it through the
// scheduler at the scheduler's configured depth; no quick mode is
// selected);
// ContextFor returns the graph-RAG context block for a service.
type Deps struct {
	ScanFn      func(ctx context.Context) ([]pipeline.ScanViolation, error)
	ApplyFn     func(ctx context.Context, serviceID string) error
	ContextFor  func(ctx context.Context, serviceID string) string
	OutputDir   string
	GraphNodes  []quality.ServiceGraphNode
}

// RunPass executes one full DISCOVER/CLASSIFY/GENERATE/APPLY/VERIFY/REGRESS
// cycle and returns its result plus the convergence decision.
func RunPass(ctx context.Context, deps Deps, passNumber int, before pipeline.ViolationSnapshot, in ConvergenceInputs) (pipeline.FixPassResult, Decision) {
	result := pipeline.FixPassResult{PassNumber: passNumber}
	runner := &StepRunner{}

	var beforeSnapshot, afterSnapshot pipeline.ViolationSnapshot
	var classification map[pipeline.ViolationKey]pipeline.FixPriority
	var affectedServices []string

	steps := []Step{
		{Name: "DISCOVER", Run: func(ctx context.Context) error {
			violations, err := deps.ScanFn(ctx)
			if err != nil {
				return err
			}
			beforeSnapshot = snapshotOf(violations)
			return nil
		}},
		{Name: "CLASSIFY", Run: func(ctx context.Context) error {
			classification = ClassifyAll(beforeSnapshot, deps.GraphNodes)
			result.ViolationsBefore = Tally(classification)
			return nil
		}},
		{Name: "GENERATE", Run: func(ctx context.Context) error {
			affectedServices = servicesIn(beforeSnapshot)
			for _, serviceID := range affectedServices {
				instructions := renderInstructions(serviceID, beforeSnapshot, classification, deps.ContextFor(ctx, serviceID))
				path := filepath.Join(deps.OutputDir, serviceID, "FIX_INSTRUCTIONS.md")
				if err := os.WriteFile(path, []byte(instructions), 0o644); err != nil {
					return fmt.Errorf("write fix instructions for %s: %w", serviceID, err)
				}
				result.FixesGenerated++
			}
			return nil
		}},
		{Name: "APPLY", Run: func(ctx context.Context) error {
			for _, serviceID := range affectedServices {
				if err := deps.ApplyFn(ctx, serviceID); err != nil {
					continue // a single service's failed re-apply doesn't abort the pass
				}
				result.FixesApplied++
			}
			return nil
		}},
		{Name: "VERIFY", Run: func(ctx context.Context) error {
			violations, err := deps.ScanFn(ctx)
			if err != nil {
				return err
			}
			afterSnapshot = snapshotOf(violations)
			result.FixesVerified = result.FixesApplied
			return nil
		}},
		{Name: "REGRESS", Run: func(ctx context.Context) error {
			result.RegressionCount = countNew(beforeSnapshot, afterSnapshot)
			result.Effectiveness = effectiveness(beforeSnapshot, afterSnapshot)
			afterClassification := ClassifyAll(afterSnapshot, deps.GraphNodes)
			result.ViolationsAfter = Tally(afterClassification)
			return nil
		}},
	}

	ok := runner.Run(ctx, steps)
	result.StepsCompleted = runner.Completed
	if !ok {
		result.Status = "error: " + runner.LastErr.Error()
		return result, Decision{Stop: true, Reason: "fix-pass step failed: " + runner.LastErr.Error()}
	}

	in.Before = result.ViolationsBefore
	in.After = result.ViolationsAfter
	in.Effectiveness = result.Effectiveness
	if len(beforeSnapshot) > 0 {
		in.RegressionRate = float64(result.RegressionCount) / float64(len(beforeSnapshot))
	}
	result.BeforeSnapshot = beforeSnapshot
	result.AfterSnapshot = afterSnapshot

	// AggregateScore is the weighted convergence score expressed on a
	// 0-100 scale, the same quantity the four-condition rule's ">= 70"
	// threshold is checked against; it is deliberately a looser bar than
	// the standalone ">= 0.85" soft-convergence check above, since the
	// four-condition rule also requires P0=0, P1<=2, and two quiet
	// passes before it fires.
	in.AggregateScore = convergenceScore(in) * 100

	decision := Check(in)
	result.ConvergenceScore = convergenceScore(in)
	if decision.Stop {
		result.Status = "converged: " + decision.Reason
	} else {
		result.Status = "continuing"
	}
	return result, decision
}

func snapshotOf(violations []pipeline.ScanViolation) pipeline.ViolationSnapshot {
	snapshot := make(pipeline.ViolationSnapshot, len(violations))
	for _, v := range violations {
		snapshot[v.Key()] = v
	}
	return snapshot
}

func servicesIn(snapshot pipeline.ViolationSnapshot) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range snapshot {
		if v.Service == "" || seen[v.Service] {
			continue
		}
		seen[v.Service] = true
		out = append(out, v.Service)
	}
	return out
}

func countNew(before, after pipeline.ViolationSnapshot) int {
	count := 0
	for key := range after {
		if _, existed := before[key]; !existed {
			count++
		}
	}
	return count
}

// effectiveness is (before_total - after_total) / before_total. A pass
// that produces no diff (APPLY ran but nothing changed) yields 0, not a
// negative or undefined value, since after_total == before_total in
// that case.
func effectiveness(before, after pipeline.ViolationSnapshot) float64 {
	if len(before) == 0 {
		return 0
	}
	return float64(len(before)-len(after)) / float64(len(before))
}

func convergenceScore(in ConvergenceInputs) float64 {
	if in.InitialWeighted <= 0 {
		return 0
	}
	return 1 - weighted(in.After)/in.InitialWeighted
}

func renderInstructions(serviceID string, snapshot pipeline.ViolationSnapshot, classification map[pipeline.ViolationKey]pipeline.FixPriority, contextBlock string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Fix Instructions: %s\n\n", serviceID)
	for _, priority := range []pipeline.FixPriority{pipeline.PriorityP0, pipeline.PriorityP1, pipeline.PriorityP2, pipeline.PriorityP3} {
		fmt.Fprintf(&b, "## %s\n\n", priority)
		for key, v := range snapshot {
			if v.Service != serviceID || classification[key] != priority {
				continue
			}
			fmt.Fprintf(&b, "- [%s] %s:%d — %s\n", v.Code, v.File, v.Line, v.Message)
		}
		b.WriteString("\n")
	}
	b.WriteString("## Context\n\n")
	b.WriteString(contextBlock)
	return b.String()
}
