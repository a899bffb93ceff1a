package quality

import "github.com/pipelineforge/orchestrator/internal/pipeline"

// Scanner inspects a deployed service's codebase directory for
// violations in one category.
type Scanner interface {
	Name() string
	Codes() []string
	Scan(dir string) ([]pipeline.ScanViolation, error)
}

// capViolations enforces MaxPerCategory per violation code (at most
// that many violations of each code are kept), keeping a scanner's output
// from ballooning a report when a codebase has many repeats of the
// same issue.
func capViolations(violations []pipeline.ScanViolation, maxPerCategory int) []pipeline.ScanViolation {
	if maxPerCategory <= 0 {
		return violations
	}
	counts := map[string]int{}
	capped := make([]pipeline.ScanViolation, 0, len(violations))
	for _, v := range violations {
		counts[v.Code]++
		if counts[v.Code] > maxPerCategory {
			continue
		}
		capped = append(capped, v)
	}
	return capped
}
