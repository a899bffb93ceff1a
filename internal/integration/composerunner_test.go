package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDockerComposeRunner_Up_WritesFilesAndInvokesBinary(t *testing.T) {
	dir := t.TempDir()
	r := &DockerComposeRunner{Binary: "true", WorkDir: dir, ProjectName: "test-run", CommandTimeout: time.Second}

	files := ComposeFileSet{
		Base:         "services: {}\n",
		Services:     map[string]string{"user-service": "services:\n  user-service: {}\n"},
		ReverseProxy: "services:\n  traefik: {}\n",
	}

	require.NoError(t, r.Up(context.Background(), files))
	require.FileExists(t, filepath.Join(dir, "docker-compose.base.yml"))
	require.FileExists(t, filepath.Join(dir, "docker-compose.user-service.yml"))
	require.FileExists(t, filepath.Join(dir, "docker-compose.proxy.yml"))
}

func TestDockerComposeRunner_Down_RunsEvenWithoutOverrides(t *testing.T) {
	dir := t.TempDir()
	r := &DockerComposeRunner{Binary: "true", WorkDir: dir, CommandTimeout: time.Second}

	err := r.Down(context.Background(), ComposeFileSet{Base: "services: {}\n"})
	require.NoError(t, err)
}

func TestDockerComposeRunner_Run_NonZeroExitReturnsError(t *testing.T) {
	dir := t.TempDir()
	r := &DockerComposeRunner{Binary: "false", WorkDir: dir, CommandTimeout: time.Second}

	err := r.Up(context.Background(), ComposeFileSet{Base: "services: {}\n"})
	require.Error(t, err)
}

func TestDockerComposeRunner_Run_MissingBinaryReturnsError(t *testing.T) {
	dir := t.TempDir()
	r := &DockerComposeRunner{Binary: "pipelinectl-nonexistent-binary-xyz", WorkDir: dir, CommandTimeout: time.Second}

	err := r.Up(context.Background(), ComposeFileSet{Base: "services: {}\n"})
	require.Error(t, err)
}

func TestDockerComposeRunner_Run_TimesOutOnSlowCommand(t *testing.T) {
	dir := t.TempDir()
	r := &DockerComposeRunner{Binary: "sleep", WorkDir: dir, CommandTimeout: 10 * time.Millisecond}

	err := r.run(context.Background(), []string{"1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "timed out")
}

func TestNewDockerComposeRunner_SetsConventionalDefaults(t *testing.T) {
	r := NewDockerComposeRunner("/tmp/work", "my-project")
	require.Equal(t, "docker", r.Binary)
	require.Equal(t, "my-project", r.ProjectName)
	require.Equal(t, 5*time.Minute, r.CommandTimeout)
}

func TestComposeArgs_IncludesProjectNameAndFilesInOrder(t *testing.T) {
	r := &DockerComposeRunner{ProjectName: "my-run"}
	args := r.composeArgs([]string{"a.yml", "b.yml"}, "up", "-d")
	require.Equal(t, []string{"compose", "-p", "my-run", "-f", "a.yml", "-f", "b.yml", "up", "-d"}, args)
}

func TestComposeArgs_OmitsProjectFlagWhenUnset(t *testing.T) {
	r := &DockerComposeRunner{}
	args := r.composeArgs([]string{"a.yml"}, "down")
	require.Equal(t, []string{"compose", "-f", "a.yml", "down"}, args)
}

func TestWriteFiles_CreatesWorkDirIfMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "workdir")
	r := &DockerComposeRunner{WorkDir: dir}

	paths, err := r.writeFiles(ComposeFileSet{Base: "services: {}\n"})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	_, statErr := os.Stat(dir)
	require.NoError(t, statErr)
}

func TestWriteFiles_ServicesAreSortedByID(t *testing.T) {
	dir := t.TempDir()
	r := &DockerComposeRunner{WorkDir: dir}

	paths, err := r.writeFiles(ComposeFileSet{
		Base: "services: {}\n",
		Services: map[string]string{
			"zeta-service":  "services:\n  zeta: {}\n",
			"alpha-service": "services:\n  alpha: {}\n",
		},
	})
	require.NoError(t, err)
	require.Len(t, paths, 3)
	require.Contains(t, paths[1], "alpha-service")
	require.Contains(t, paths[2], "zeta-service")
}
