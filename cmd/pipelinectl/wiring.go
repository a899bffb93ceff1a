package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pipelineforge/orchestrator/internal/auditlog"
	"github.com/pipelineforge/orchestrator/internal/collab"
	"github.com/pipelineforge/orchestrator/internal/config"
	"github.com/pipelineforge/orchestrator/internal/integration"
	"github.com/pipelineforge/orchestrator/internal/metrics"
	"github.com/pipelineforge/orchestrator/internal/pipeline/driver"
	"github.com/pipelineforge/orchestrator/internal/pipeline/shutdown"
	"github.com/pipelineforge/orchestrator/internal/quality"
	"github.com/pipelineforge/orchestrator/internal/scheduler"
)

// toolCommand resolves a tool server's binary name from an environment
// override, falling back to a conventional name found on PATH. Every
// collaborator is launched this way rather than via a config field,
// since the tool servers are infrastructure (swappable per deployment),
// not part of a run's own configuration.
func toolCommand(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

// buildCollaborators wires every external adapter a Driver needs from
// cfg and outputDir. coordinator may be nil for commands (like `status`)
// that never drive the state machine.
func buildCollaborators(cfg config.Config, outputDir string, coordinator *shutdown.Coordinator) driver.Collaborators {
	env := collab.AllowedEnv(os.Getenv("PATH"), nil)

	contracts := collab.NewContractEngineClient(
		toolCommand("PIPELINECTL_CONTRACT_ENGINE_CMD", "contract-engine-tool"),
		env, outputDir+"/contracts",
	)
	graphRAG := collab.NewGraphRAGClient(toolCommand("PIPELINECTL_GRAPHRAG_CMD", "graphrag-tool"), env)
	architect := collab.NewArchitectClient(toolCommand("PIPELINECTL_ARCHITECT_CMD", "architect-tool"), env)
	codeIntel := collab.NewCodeIntelClient(toolCommand("PIPELINECTL_CODEINTEL_CMD", "codeintel-tool"), env)

	builderModule := scheduler.BuilderModule{
		Command: toolCommand("PIPELINECTL_BUILDER_CMD", "service-builder"),
		Depth:   cfg.Builder.Depth,
	}
	sched := scheduler.New(builderModule, cfg.Builder, outputDir, coordinator, contracts, graphRAG)

	gate := quality.New(cfg.QualityGate)

	composeRunner := integration.NewDockerComposeRunner(outputDir+"/compose", runProjectName(outputDir))
	harness := integration.New(composeRunner, cfg.Integration.TraefikImage, cfg.Integration.Timeout)

	return driver.Collaborators{
		Architect: architect,
		Contracts: contracts,
		GraphRAG:  graphRAG,
		CodeIntel: codeIntel,
		Scheduler: sched,
		Gate:      gate,
		Harness:   harness,
	}
}

// runProjectName derives a short, Compose-safe project name from the
// run's output directory so concurrent runs never collide on container
// or network names.
func runProjectName(outputDir string) string {
	h := fnv32a(outputDir)
	return fmt.Sprintf("pipelinectl-%08x", h)
}

func fnv32a(s string) uint32 {
	const offset32 = 2166136261
	const prime32 = 16777619
	hash := uint32(offset32)
	for i := 0; i < len(s); i++ {
		hash ^= uint32(s[i])
		hash *= prime32
	}
	return hash
}

func newMetricsRecorder() *metrics.Recorder {
	return metrics.New(prometheus.NewRegistry())
}

func newAuditLogger(outputDir string) *auditlog.Logger {
	logger, err := auditlog.New(outputDir + "/audit.log")
	if err != nil {
		return auditlog.NewNop()
	}
	return logger
}
