package quality

import "github.com/pipelineforge/orchestrator/internal/pipeline"

// ServiceGraphNode mirrors the shape of a component dependency record
// (name, what it depends on, what consumes it) generalized here to a
// cross-service event/contract graph: one node per event or contract,
// with the services that publish and consume it.
type ServiceGraphNode struct {
	Name      string
	Publishers []string
	Consumers  []string
}

// RunLayer4 runs advisory analyses over the cross-service graph: dead
// event handlers (published, never consumed), dead contracts (provided,
// never consumed), and orphaned services (no publishers and no
// consumers at all). Its verdict is always forced to PASSED — these
// findings inform the fix-pass priority classifier but never block the
// gate on their own.
func RunLayer4(nodes []ServiceGraphNode, services map[string]pipeline.ServiceInfo) pipeline.LayerResult {
	layer := pipeline.LayerResult{LayerID: 4, Verdict: pipeline.VerdictPassed}

	referenced := map[string]bool{}
	for _, n := range nodes {
		if len(n.Publishers) > 0 && len(n.Consumers) == 0 {
			layer.Violations = append(layer.Violations, pipeline.ScanViolation{
				Code: "DEAD001", Severity: pipeline.SeverityInfo,
				Message: "event '" + n.Name + "' is published but never consumed",
			})
		}
		for _, p := range n.Publishers {
			referenced[p] = true
		}
		for _, c := range n.Consumers {
			referenced[c] = true
		}
	}

	for id := range services {
		if !referenced[id] {
			layer.Violations = append(layer.Violations, pipeline.ScanViolation{
				Code: "ORPHAN001", Severity: pipeline.SeverityInfo, Service: id,
				Message: "service has no recorded event or contract relationships to any other service",
			})
		}
	}

	layer.TotalChecks = len(nodes) + len(services)
	layer.PassedChecks = layer.TotalChecks - len(layer.Violations)
	return layer
}

// Neighbors returns the number of distinct services connected to name
// across every graph node that references it, used by the fix-pass
// classifier's graph-impact promotion rule.
func Neighbors(nodes []ServiceGraphNode, name string) int {
	seen := map[string]bool{}
	for _, n := range nodes {
		if n.Name != name {
			continue
		}
		for _, p := range n.Publishers {
			seen[p] = true
		}
		for _, c := range n.Consumers {
			seen[c] = true
		}
	}
	return len(seen)
}
