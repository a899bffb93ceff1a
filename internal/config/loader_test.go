package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_OverlaysOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("budget_limit: 25.5\nbuilder:\n  max_concurrent: 8\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 25.5, cfg.BudgetLimit)
	require.Equal(t, 8, cfg.Builder.MaxConcurrent)
	// unset sections keep their defaults
	require.Equal(t, DepthStandard, cfg.Depth)
	require.Equal(t, 1800*time.Second, cfg.Builder.TimeoutPerBuilder)
}

func TestLoad_UnknownKeysAreIgnoredSilently(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("budget_limit: 1.0\nfuture_section:\n  some_key: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1.0, cfg.BudgetLimit)
}

func TestLoad_MalformedYAMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(": not valid yaml :::"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestWriteDefault_CreatesParentDirsAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pipeline.config.yaml")
	require.NoError(t, WriteDefault(path))
	require.FileExists(t, path)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestWriteDefault_RefusesToOverwriteExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.config.yaml")
	require.NoError(t, WriteDefault(path))
	err := WriteDefault(path)
	require.Error(t, err)
}
