package integration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/pipelineforge/orchestrator/internal/collab"
)

// DockerComposeRunner shells out to a `docker compose` binary the same
// way the scheduler launches builder subprocesses: CommandContext, an
// allow-listed environment, and a graceful-then-force-kill teardown if
// the context is canceled mid-command. It writes the layered Compose
// documents into workDir before invoking the binary so every `-f` flag
// points at a real file on disk.
type DockerComposeRunner struct {
	// Binary is the compose entrypoint, e.g. "docker" (invoked with a
	// leading "compose" subcommand) or a standalone "docker-compose".
	Binary string
	// WorkDir is where the rendered Compose documents are written
	// before each Up/Down, and the directory the subprocess runs in.
	WorkDir string
	// ProjectName sets `-p`, isolating this run's containers/networks
	// from any other run sharing the same Docker daemon.
	ProjectName string
	// CommandTimeout bounds a single `up`/`down` invocation.
	CommandTimeout time.Duration
}

// NewDockerComposeRunner builds a runner with the teacher's conventional
// fallback timeout when none is supplied.
func NewDockerComposeRunner(workDir, projectName string) *DockerComposeRunner {
	return &DockerComposeRunner{
		Binary:         "docker",
		WorkDir:        workDir,
		ProjectName:    projectName,
		CommandTimeout: 5 * time.Minute,
	}
}

// Up renders the layered Compose files to disk and runs `compose up -d`
// against all of them in one invocation, so Traefik's provider labels
// and each service's network attachment resolve across files.
func (r *DockerComposeRunner) Up(ctx context.Context, files ComposeFileSet) error {
	paths, err := r.writeFiles(files)
	if err != nil {
		return fmt.Errorf("write compose files: %w", err)
	}
	args := r.composeArgs(paths, "up", "-d", "--build", "--remove-orphans")
	return r.run(ctx, args)
}

// Down tears the stack down, removing volumes so a failed run never
// leaves stale state for the next one.
func (r *DockerComposeRunner) Down(ctx context.Context, files ComposeFileSet) error {
	paths, err := r.writeFiles(files)
	if err != nil {
		return fmt.Errorf("write compose files: %w", err)
	}
	args := r.composeArgs(paths, "down", "--volumes", "--remove-orphans")
	return r.run(ctx, args)
}

func (r *DockerComposeRunner) composeArgs(files []string, sub string, rest ...string) []string {
	args := []string{"compose"}
	if r.ProjectName != "" {
		args = append(args, "-p", r.ProjectName)
	}
	for _, f := range files {
		args = append(args, "-f", f)
	}
	args = append(args, sub)
	return append(args, rest...)
}

func (r *DockerComposeRunner) run(ctx context.Context, args []string) error {
	timeout := r.CommandTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.Binary, args...)
	cmd.Dir = r.WorkDir
	cmd.Env = collab.AllowedEnv(os.Getenv("PATH"), nil)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 5 * time.Second

	out, err := cmd.CombinedOutput()
	if err != nil {
		if runCtx.Err() != nil {
			return fmt.Errorf("compose %v timed out", args)
		}
		return fmt.Errorf("compose %v: %w: %s", args, err, out)
	}
	return nil
}

// writeFiles renders the ComposeFileSet's documents under WorkDir,
// returning a stable-ordered list of paths: base, one per service
// (sorted by id), reverse proxy, then overrides if present.
func (r *DockerComposeRunner) writeFiles(files ComposeFileSet) ([]string, error) {
	if err := os.MkdirAll(r.WorkDir, 0o755); err != nil {
		return nil, err
	}

	var paths []string
	write := func(name, content string) error {
		path := filepath.Join(r.WorkDir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
		paths = append(paths, path)
		return nil
	}

	if err := write("docker-compose.base.yml", files.Base); err != nil {
		return nil, err
	}
	for _, id := range sortedKeys(files.Services) {
		if err := write(fmt.Sprintf("docker-compose.%s.yml", id), files.Services[id]); err != nil {
			return nil, err
		}
	}
	if files.ReverseProxy != "" {
		if err := write("docker-compose.proxy.yml", files.ReverseProxy); err != nil {
			return nil, err
		}
	}
	if files.Overrides != "" {
		if err := write("docker-compose.override.yml", files.Overrides); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
