package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains all the application paths.
// This is the single source of truth for file locations: uploads land in
// the data directory, sample workbooks live under data/test, and every
// generated artifact (CSV output, logs) goes under the output directory.
type Paths struct {
	BaseDir     string
	DataDir     string
	TestDataDir string
	OutputDir   string
}

// ResolvePaths resolves all paths against the configured base directory.
// When no base directory is configured, paths are resolved against the
// current working directory so the layout matches the deployment root.
func ResolvePaths(cfg PathsConfig) (*Paths, error) {
	base := cfg.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}

	return &Paths{
		BaseDir:     base,
		DataDir:     resolve(base, cfg.DataDir, "data"),
		TestDataDir: resolve(base, cfg.TestDataDir, filepath.Join("data", "test")),
		OutputDir:   resolve(base, cfg.OutputDir, "output"),
	}, nil
}

func resolve(base, path, fallback string) string {
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// EnsureDirectories creates all required directories if they don't exist.
// Creation is idempotent: existing directories are left unchanged.
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.TestDataDir,
		p.OutputDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// LogPathResolution logs all resolved paths for startup debugging
func (p *Paths) LogPathResolution() {
	slog.Info("Resolved application paths",
		slog.String("base_dir", p.BaseDir),
		slog.String("data_dir", p.DataDir),
		slog.String("test_data_dir", p.TestDataDir),
		slog.String("output_dir", p.OutputDir))
}

// OutputFile returns the path of a file inside the output directory
func (p *Paths) OutputFile(name string) string {
	return filepath.Join(p.OutputDir, name)
}

// FileExists checks whether the given path exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
