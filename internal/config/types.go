/*
Package config defines the configuration schema for pipelinectl and loads
it from a YAML document.

# Configuration File

The configuration is a YAML document, by default at ./pipeline.config.yaml
relative to the working directory. Unknown top-level and nested keys are
ignored silently, so older configs keep working as new sections are added.

# Example

	budget_limit: 10.00
	depth: standard
	mode: mcp
	architect:
	  max_retries: 3
	  timeout: 900s
	builder:
	  max_concurrent: 3
	  timeout_per_builder: 1800s
	quality_gate:
	  max_fix_retries: 5
	  blocking_severity: error
*/
package config

import "time"

// Depth selects how much effort a builder or fix pass invokes.
type Depth string

const (
	DepthStandard Depth = "standard"
	DepthThorough Depth = "thorough"
	DepthQuick    Depth = "quick"
)

// Mode selects how collaborator clients talk to their tool servers.
type Mode string

const (
	ModeDocker Mode = "docker"
	ModeMCP    Mode = "mcp"
	ModeAuto   Mode = "auto"
)

// ArchitectConfig configures the PRD-decomposition collaborator.
type ArchitectConfig struct {
	MaxRetries  int           `yaml:"max_retries"`
	Timeout     time.Duration `yaml:"timeout"`
	AutoApprove bool          `yaml:"auto_approve"`
}

// BuilderConfig configures the per-service builder scheduler.
type BuilderConfig struct {
	MaxConcurrent     int           `yaml:"max_concurrent"`
	TimeoutPerBuilder time.Duration `yaml:"timeout_per_builder"`
	Depth             Depth         `yaml:"depth"`
}

// IntegrationConfig configures the container integration harness.
type IntegrationConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	TraefikImage    string        `yaml:"traefik_image"`
	ComposeFile     string        `yaml:"compose_file"`
	TestComposeFile string        `yaml:"test_compose_file"`
}

// QualityGateConfig configures the four-layer quality gate.
type QualityGateConfig struct {
	MaxFixRetries           int      `yaml:"max_fix_retries"`
	Layer3Scanners          []string `yaml:"layer3_scanners"`
	Layer4Enabled           bool     `yaml:"layer4_enabled"`
	BlockingSeverity        string   `yaml:"blocking_severity"`
	MaxViolationsPerCategory int     `yaml:"max_violations_per_category"`
}

// GraphRAGConfig configures the optional cross-service knowledge graph.
type GraphRAGConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// PhaseTimeouts overrides the default per-phase timeout table.
type PhaseTimeouts struct {
	Architect             time.Duration `yaml:"architect"`
	ArchitectReview       time.Duration `yaml:"architect_review"`
	ContractRegistration  time.Duration `yaml:"contract_registration"`
	Builders              time.Duration `yaml:"builders"`
	Integration           time.Duration `yaml:"integration"`
	QualityGate           time.Duration `yaml:"quality_gate"`
	FixPass               time.Duration `yaml:"fix_pass"`
}

// DefaultPhaseTimeouts returns the default timeout for each phase.
func DefaultPhaseTimeouts() PhaseTimeouts {
	return PhaseTimeouts{
		Architect:            900 * time.Second,
		ArchitectReview:      300 * time.Second,
		ContractRegistration: 180 * time.Second,
		Builders:             3600 * time.Second,
		Integration:          600 * time.Second,
		QualityGate:          600 * time.Second,
		FixPass:              900 * time.Second,
	}
}

// Config is the top-level pipeline configuration document.
type Config struct {
	BudgetLimit   float64       `yaml:"budget_limit"`
	Depth         Depth         `yaml:"depth"`
	PhaseTimeouts PhaseTimeouts `yaml:"phase_timeouts"`
	Mode          Mode          `yaml:"mode"`
	OutputDir     string        `yaml:"output_dir"`

	Architect    ArchitectConfig    `yaml:"architect"`
	Builder      BuilderConfig      `yaml:"builder"`
	Integration  IntegrationConfig  `yaml:"integration"`
	QualityGate  QualityGateConfig  `yaml:"quality_gate"`
	GraphRAG     GraphRAGConfig     `yaml:"graph_rag"`
}

// Default returns the configuration written by `pipelinectl init`.
func Default() Config {
	return Config{
		Depth:         DepthStandard,
		PhaseTimeouts: DefaultPhaseTimeouts(),
		Mode:          ModeAuto,
		OutputDir:     "./pipeline-run",
		Architect: ArchitectConfig{
			MaxRetries: 3,
			Timeout:    900 * time.Second,
		},
		Builder: BuilderConfig{
			MaxConcurrent:     3,
			TimeoutPerBuilder: 1800 * time.Second,
			Depth:             DepthStandard,
		},
		Integration: IntegrationConfig{
			Timeout:         600 * time.Second,
			TraefikImage:    "traefik:v3.1",
			ComposeFile:     "docker-compose.yml",
			TestComposeFile: "docker-compose.test.yml",
		},
		QualityGate: QualityGateConfig{
			MaxFixRetries:            5,
			Layer3Scanners:           []string{"jwt", "cors", "secrets", "logging", "tracing", "health", "docker"},
			Layer4Enabled:            true,
			BlockingSeverity:         "error",
			MaxViolationsPerCategory: 200,
		},
		GraphRAG: GraphRAGConfig{
			Enabled: false,
		},
	}
}
