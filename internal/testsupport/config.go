package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"kiln/internal/config"
)

// ConfigOption edits the generated test configuration.
type ConfigOption func(*testConfig)

type testConfig struct {
	t    testing.TB
	base string
	cfg  config.Config
}

// NewConfig returns the default configuration rooted in a fresh temp
// directory: content/ holds sources, cooked/ the output and logs/ the run
// log. The free space check is disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()
	tc := &testConfig{t: t, base: t.TempDir(), cfg: config.Default()}
	tc.cfg.Paths.SourceRoot = filepath.Join(tc.base, "content")
	tc.cfg.Paths.OutputRoot = filepath.Join(tc.base, "cooked")
	tc.cfg.Paths.LogDir = filepath.Join(tc.base, "logs")
	tc.cfg.Cooking.MinFreeSpaceMiB = 0
	if err := os.MkdirAll(tc.cfg.Paths.SourceRoot, 0o755); err != nil {
		t.Fatalf("mkdir source root: %v", err)
	}
	for _, opt := range opts {
		opt(tc)
	}
	return &tc.cfg
}

// BaseDir returns the temp directory holding a config made by NewConfig.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.SourceRoot)
}

// WithPackages edits the declared package lists.
func WithPackages(edit func(*config.Packages)) ConfigOption {
	return func(tc *testConfig) { edit(&tc.cfg.Packages) }
}

// WithCooking edits the run-wide cook settings.
func WithCooking(edit func(*config.Cooking)) ConfigOption {
	return func(tc *testConfig) { edit(&tc.cfg.Cooking) }
}

// WithPlatforms edits the per-target policy sections.
func WithPlatforms(edit func(*config.Platforms)) ConfigOption {
	return func(tc *testConfig) { edit(&tc.cfg.Platforms) }
}

// WithToolchains edits the per-target toolchain bindings.
func WithToolchains(edit func(*config.Toolchains)) ConfigOption {
	return func(tc *testConfig) { edit(&tc.cfg.Toolchain) }
}

// WithStubbedBinaries puts executables that exit 0 on PATH under names.
// Tests using it cannot run in parallel.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(tc *testConfig) {
		bin := filepath.Join(tc.base, "bin")
		if err := os.MkdirAll(bin, 0o755); err != nil {
			tc.t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				tc.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		tc.t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
