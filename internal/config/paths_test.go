package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePaths(t *testing.T) {
	base := t.TempDir()

	paths, err := ResolvePaths(PathsConfig{
		BaseDir:     base,
		DataDir:     "data",
		TestDataDir: "data/test",
		OutputDir:   "output",
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "data"), paths.DataDir)
	assert.Equal(t, filepath.Join(base, "data", "test"), paths.TestDataDir)
	assert.Equal(t, filepath.Join(base, "output"), paths.OutputDir)
}

func TestResolvePathsAbsoluteOverride(t *testing.T) {
	base := t.TempDir()
	abs := t.TempDir()

	paths, err := ResolvePaths(PathsConfig{BaseDir: base, OutputDir: abs})
	require.NoError(t, err)

	assert.Equal(t, abs, paths.OutputDir)
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()

	paths, err := ResolvePaths(PathsConfig{BaseDir: base})
	require.NoError(t, err)

	require.NoError(t, paths.EnsureDirectories())

	for _, dir := range []string{paths.DataDir, paths.TestDataDir, paths.OutputDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	// Second run must be a no-op on existing directories
	require.NoError(t, paths.EnsureDirectories())
}

func TestOutputFile(t *testing.T) {
	paths := &Paths{OutputDir: "/srv/output"}
	assert.Equal(t, filepath.Join("/srv/output", "report.csv"), paths.OutputFile("report.csv"))
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "probe")

	assert.False(t, FileExists(path))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	assert.True(t, FileExists(path))
}
