package quality

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pipelineforge/orchestrator/internal/pipeline"
)

func TestCapViolations_EnforcesPerCategoryMax(t *testing.T) {
	violations := []pipeline.ScanViolation{
		{Code: "SEC001"}, {Code: "SEC001"}, {Code: "SEC001"},
		{Code: "JWT001"},
	}
	capped := capViolations(violations, 2)
	counts := map[string]int{}
	for _, v := range capped {
		counts[v.Code]++
	}
	require.Equal(t, 2, counts["SEC001"])
	require.Equal(t, 1, counts["JWT001"])
}

func TestCapViolations_ZeroOrNegativeMeansUncapped(t *testing.T) {
	violations := []pipeline.ScanViolation{{Code: "SEC001"}, {Code: "SEC001"}, {Code: "SEC001"}}
	require.Len(t, capViolations(violations, 0), 3)
	require.Len(t, capViolations(violations, -1), 3)
}

func TestReadFileIfExists_MissingFileReturnsEmptyNoError(t *testing.T) {
	content, err := readFileIfExists(filepath.Join(t.TempDir(), "missing.txt"))
	require.NoError(t, err)
	require.Empty(t, content)
}

func TestReadFileIfExists_ReturnsContentWhenPresent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "present.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	content, err := readFileIfExists(path)
	require.NoError(t, err)
	require.Equal(t, "hello", content)
}
