package quality

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

// secretPatterns reuses the shape of a log sanitizer: a named regex
// plus the code it flags, applied to source files instead of runtime
// logs.
var secretPatterns = []struct {
	code    string
	pattern *regexp.Regexp
}{
	{"SEC001", regexp.MustCompile(`(?i)(api[_\-]?key|apikey)\s*[:=]\s*["'][a-zA-Z0-9_\-]{16,}["']`)},
	{"SEC002", regexp.MustCompile(`(?i)://[^:\s]+:[^@\s]+@`)},
	{"SEC003", regexp.MustCompile(`-----BEGIN (RSA )?PRIVATE KEY-----`)},
	{"SEC005", regexp.MustCompile(`(?i)(AKIA|ASIA)[A-Z0-9]{16}`)},
}

// SecretsScanner flags hardcoded credentials and keys committed to a
// generated service's source tree.
type SecretsScanner struct{ MaxPerCategory int }

func (s SecretsScanner) Name() string    { return "secrets" }
func (s SecretsScanner) Codes() []string { return CodesFor(CategorySecrets) }

func (s SecretsScanner) Scan(dir string) ([]pipeline.ScanViolation, error) {
	var violations []pipeline.ScanViolation
	err := walkSource(dir, func(path string, content string) {
		lines := strings.Split(content, "\n")
		for i, line := range lines {
			for _, p := range secretPatterns {
				if p.pattern.MatchString(line) {
					violations = append(violations, pipeline.ScanViolation{
						Code: p.code, Severity: pipeline.SeverityError,
						File: path, Line: i + 1, Message: "possible hardcoded secret",
					})
				}
			}
		}
	})
	return capViolations(violations, s.MaxPerCategory), err
}

var logSecretPattern = regexp.MustCompile(`(?i)(log|print|fmt\.(Println|Printf))(\.\w+)?\([^)]*\b(password|authorization|token)\b`)

// LoggingScanner flags logging statements that may leak secrets or PII
// in plaintext, grounded on the same family of patterns the CLI's log
// sanitizer redacts at runtime.
type LoggingScanner struct{ MaxPerCategory int }

func (s LoggingScanner) Name() string    { return "logging" }
func (s LoggingScanner) Codes() []string { return CodesFor(CategoryLogging) }

func (s LoggingScanner) Scan(dir string) ([]pipeline.ScanViolation, error) {
	var violations []pipeline.ScanViolation
	err := walkSource(dir, func(path string, content string) {
		lines := strings.Split(content, "\n")
		for i, line := range lines {
			if logSecretPattern.MatchString(line) {
				violations = append(violations, pipeline.ScanViolation{
					Code: "LOG001", Severity: pipeline.SeverityError,
					File: path, Line: i + 1, Message: "sensitive value logged in plaintext",
				})
			}
		}
	})
	return capViolations(violations, s.MaxPerCategory), err
}

var jwtNoneAlgPattern = regexp.MustCompile(`(?i)alg.{0,10}none`)
var jwtHardcodedSecretPattern = regexp.MustCompile(`(?i)jwt.{0,20}secret\s*[:=]+\s*["'][^"']{1,40}["']`)

// JWTScanner flags common JWT misconfigurations.
type JWTScanner struct{ MaxPerCategory int }

func (s JWTScanner) Name() string    { return "jwt" }
func (s JWTScanner) Codes() []string { return CodesFor(CategoryJWT) }

func (s JWTScanner) Scan(dir string) ([]pipeline.ScanViolation, error) {
	var violations []pipeline.ScanViolation
	err := walkSource(dir, func(path string, content string) {
		if jwtNoneAlgPattern.MatchString(content) {
			violations = append(violations, pipeline.ScanViolation{Code: "JWT004", Severity: pipeline.SeverityError, File: path, Message: "JWT alg: none accepted"})
		}
		if jwtHardcodedSecretPattern.MatchString(content) {
			violations = append(violations, pipeline.ScanViolation{Code: "JWT001", Severity: pipeline.SeverityError, File: path, Message: "JWT secret is hardcoded"})
		}
	})
	return capViolations(violations, s.MaxPerCategory), err
}

var corsWildcardCredsPattern = regexp.MustCompile(`(?i)AllowOrigins?.{0,15}\*`)

// CORSScanner flags overly permissive cross-origin configuration.
type CORSScanner struct{ MaxPerCategory int }

func (s CORSScanner) Name() string    { return "cors" }
func (s CORSScanner) Codes() []string { return CodesFor(CategoryCORS) }

func (s CORSScanner) Scan(dir string) ([]pipeline.ScanViolation, error) {
	var violations []pipeline.ScanViolation
	err := walkSource(dir, func(path string, content string) {
		if corsWildcardCredsPattern.MatchString(content) {
			violations = append(violations, pipeline.ScanViolation{Code: "CORS002", Severity: pipeline.SeverityWarning, File: path, Message: "CORS allows wildcard origin"})
		}
	})
	return capViolations(violations, s.MaxPerCategory), err
}

var traceContextPattern = regexp.MustCompile(`context\.Context`)
var otelImportPattern = regexp.MustCompile(`go\.opentelemetry\.io`)

// TracingScanner flags handler files that take a context but never
// propagate it through an outbound call or tracer.
type TracingScanner struct{ MaxPerCategory int }

func (s TracingScanner) Name() string    { return "tracing" }
func (s TracingScanner) Codes() []string { return CodesFor(CategoryTracing) }

func (s TracingScanner) Scan(dir string) ([]pipeline.ScanViolation, error) {
	var violations []pipeline.ScanViolation
	err := walkSource(dir, func(path string, content string) {
		if traceContextPattern.MatchString(content) && !otelImportPattern.MatchString(content) {
			violations = append(violations, pipeline.ScanViolation{Code: "TRACE001", Severity: pipeline.SeverityInfo, File: path, Message: "no trace propagation on outbound call"})
		}
	})
	return capViolations(violations, s.MaxPerCategory), err
}

var healthEndpointPattern = regexp.MustCompile(`(?i)/(health|healthz|ready|live)\b`)

// HealthScanner flags a service tree with no health endpoint at all.
type HealthScanner struct{ MaxPerCategory int }

func (s HealthScanner) Name() string    { return "health" }
func (s HealthScanner) Codes() []string { return CodesFor(CategoryHealth) }

func (s HealthScanner) Scan(dir string) ([]pipeline.ScanViolation, error) {
	found := false
	err := walkSource(dir, func(path string, content string) {
		if healthEndpointPattern.MatchString(content) {
			found = true
		}
	})
	if err != nil {
		return nil, err
	}
	if found {
		return nil, nil
	}
	return []pipeline.ScanViolation{{Code: "HEALTH001", Severity: pipeline.SeverityError, Message: "no health endpoint defined"}}, nil
}

var dockerfileMutableTag = regexp.MustCompile(`(?i)^FROM\s+\S+:latest`)
var dockerfileRootUser = regexp.MustCompile(`(?i)^USER\s+root`)

// DockerScanner inspects a Dockerfile for image pinning and privilege
// hygiene, grounded on the CLI's own image-pinning validator logic
// applied to a generated service's Dockerfile instead of a running
// compose stack.
type DockerScanner struct{ MaxPerCategory int }

func (s DockerScanner) Name() string    { return "docker" }
func (s DockerScanner) Codes() []string { return CodesFor(CategoryDocker) }

func (s DockerScanner) Scan(dir string) ([]pipeline.ScanViolation, error) {
	var violations []pipeline.ScanViolation
	path := filepath.Join(dir, "Dockerfile")
	content, err := readFileIfExists(path)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, nil
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if dockerfileMutableTag.MatchString(line) {
			violations = append(violations, pipeline.ScanViolation{Code: "DOCKER008", Severity: pipeline.SeverityWarning, File: path, Line: i + 1, Message: "latest tag used for a dependency image"})
		}
		if dockerfileRootUser.MatchString(line) {
			violations = append(violations, pipeline.ScanViolation{Code: "DOCKER002", Severity: pipeline.SeverityError, File: path, Line: i + 1, Message: "container runs as root"})
		}
	}
	if !strings.Contains(content, "FROM") {
		violations = append(violations, pipeline.ScanViolation{Code: "DOCKER001", Severity: pipeline.SeverityError, File: path, Message: "base image not pinned"})
	}
	return capViolations(violations, s.MaxPerCategory), nil
}

// AllScanners returns one scanner per Layer 3 category, the default set
// named in the quality gate config's layer3_scanners list.
func AllScanners(maxPerCategory int) []Scanner {
	return []Scanner{
		JWTScanner{MaxPerCategory: maxPerCategory},
		CORSScanner{MaxPerCategory: maxPerCategory},
		SecretsScanner{MaxPerCategory: maxPerCategory},
		LoggingScanner{MaxPerCategory: maxPerCategory},
		TracingScanner{MaxPerCategory: maxPerCategory},
		HealthScanner{MaxPerCategory: maxPerCategory},
		DockerScanner{MaxPerCategory: maxPerCategory},
	}
}

func walkSource(dir string, visit func(path, content string)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !isSourceFile(path) {
			return nil
		}
		content, err := readFileIfExists(path)
		if err != nil || content == "" {
			return nil
		}
		visit(path, content)
		return nil
	})
}

func isSourceFile(path string) bool {
	switch filepath.Ext(path) {
	case ".go", ".ts", ".js", ".py", ".java":
		return true
	default:
		return false
	}
}
