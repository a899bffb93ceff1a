package fixpass

import "github.com/pipelineforge/orchestrator/internal/pipeline"

// ConvergenceInputs carries everything the hard-stop and soft-convergence
// checks need from the current and prior passes.
type ConvergenceInputs struct {
	PassNumber         int
	MaxPasses          int
	RemainingBudget    float64
	BudgetLimited      bool
	Before             pipeline.PriorityCounts
	After              pipeline.PriorityCounts
	InitialWeighted    float64
	Effectiveness      float64
	RegressionRate     float64
	NewDefectsLastTwo  []int // count of new defects added on each of the last two passes
	AggregateScore     float64
}

// Decision is the converged-or-not outcome of one pass.
type Decision struct {
	Stop   bool
	Reason string
}

// weighted returns the 0.4*P0 + 0.3*P1 + 0.1*P2 score used by the
// convergence formula. P3 never contributes.
func weighted(c pipeline.PriorityCounts) float64 {
	return 0.4*float64(c.P0) + 0.3*float64(c.P1) + 0.1*float64(c.P2)
}

// Check runs the hard-stop checks first, in order, then the
// soft-convergence checks. The first true condition wins.
func Check(in ConvergenceInputs) Decision {
	if in.After.P0 == 0 && in.After.P1 == 0 {
		return Decision{Stop: true, Reason: "no P0 or P1 violations remain"}
	}
	if in.PassNumber >= in.MaxPasses {
		return Decision{Stop: true, Reason: "reached max fix passes"}
	}
	if in.BudgetLimited && in.RemainingBudget <= 0 {
		return Decision{Stop: true, Reason: "remaining budget exhausted"}
	}
	if in.Effectiveness < 0.30 {
		return Decision{Stop: true, Reason: "fixes not effective (effectiveness below 30%)"}
	}
	if in.RegressionRate > 0.25 {
		return Decision{Stop: true, Reason: "regression rate above 25%"}
	}

	if in.InitialWeighted > 0 {
		score := 1 - weighted(in.After)/in.InitialWeighted
		if score >= 0.85 {
			return Decision{Stop: true, Reason: "weighted convergence score reached 0.85"}
		}
	}

	if fourConditionRule(in) {
		return Decision{Stop: true, Reason: "four-condition convergence rule satisfied"}
	}

	return Decision{Stop: false}
}

func fourConditionRule(in ConvergenceInputs) bool {
	if in.After.P0 != 0 || in.After.P1 > 2 {
		return false
	}
	if len(in.NewDefectsLastTwo) < 2 {
		return false
	}
	for _, n := range in.NewDefectsLastTwo[len(in.NewDefectsLastTwo)-2:] {
		if n >= 3 {
			return false
		}
	}
	return in.AggregateScore >= 70
}
