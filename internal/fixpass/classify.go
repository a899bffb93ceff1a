package fixpass

import (
	"strings"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
	"github.com/pipelineforge/orchestrator/internal/quality"
)

// fatalCodes are P0 regardless of their reported severity: the service
// cannot even start with these present.
var fatalCodes = map[string]bool{
	"BUILD001": true,
	"DOCKER001": true,
}

// primaryPathPhrases flag a message as affecting the primary use case
// (P1) when no fatal code classification already applies.
var primaryPathPhrases = []string{"500", "auth", "integration test", "contract"}

// Classify assigns a priority to one violation using a decision tree
// over its code, category, severity, and message text, then promotes it
// using graph neighbor counts when a knowledge-graph client is
// available: findings touching >= 10 neighbors become P0, >= 3 become
// P1.
func Classify(v pipeline.ScanViolation, neighbors int) pipeline.FixPriority {
	priority := classifyBase(v)
	switch {
	case neighbors >= 10:
		priority = pipeline.PriorityP0
	case neighbors >= 3 && priority != pipeline.PriorityP0:
		priority = pipeline.PriorityP1
	}
	return priority
}

func classifyBase(v pipeline.ScanViolation) pipeline.FixPriority {
	if fatalCodes[v.Code] {
		return pipeline.PriorityP0
	}
	if v.Severity == pipeline.SeverityError {
		lower := strings.ToLower(v.Message)
		for _, phrase := range primaryPathPhrases {
			if strings.Contains(lower, phrase) {
				return pipeline.PriorityP1
			}
		}
		return pipeline.PriorityP1
	}
	if v.Severity == pipeline.SeverityWarning {
		return pipeline.PriorityP2
	}
	return pipeline.PriorityP3
}

// ClassifyAll classifies every violation in a snapshot, consulting
// graph neighbor counts from nodes where available.
func ClassifyAll(snapshot pipeline.ViolationSnapshot, nodes []quality.ServiceGraphNode) map[pipeline.ViolationKey]pipeline.FixPriority {
	out := make(map[pipeline.ViolationKey]pipeline.FixPriority, len(snapshot))
	for key, v := range snapshot {
		neighbors := 0
		if v.Service != "" {
			neighbors = quality.Neighbors(nodes, v.Service)
		}
		out[key] = Classify(v, neighbors)
	}
	return out
}

// Tally counts a classification map into PriorityCounts.
func Tally(classification map[pipeline.ViolationKey]pipeline.FixPriority) pipeline.PriorityCounts {
	var counts pipeline.PriorityCounts
	for _, p := range classification {
		switch p {
		case pipeline.PriorityP0:
			counts.P0++
		case pipeline.PriorityP1:
			counts.P1++
		case pipeline.PriorityP2:
			counts.P2++
		case pipeline.PriorityP3:
			counts.P3++
		}
	}
	return counts
}
