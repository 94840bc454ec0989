package preflight_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kiln/internal/config"
	"kiln/internal/platform"
	"kiln/internal/preflight"
	"kiln/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := preflight.CheckDirectoryAccess("test", dir, true)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := preflight.CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"), false)
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := preflight.CheckDirectoryAccess("test", f, false)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckOutputRootNotCreatedYet(t *testing.T) {
	base := t.TempDir()
	result := preflight.CheckOutputRoot("out", filepath.Join(base, "cooked", "nested"))
	if !result.Passed {
		t.Fatalf("expected pass under writable parent, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, base) {
		t.Fatalf("detail should name the existing parent: %s", result.Detail)
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if r := preflight.CheckFreeSpace("space", dir, 1); !r.Passed {
		t.Fatalf("expected 1 MiB to be available: %s", r.Detail)
	}
	if r := preflight.CheckFreeSpace("space", dir, 1<<40); r.Passed {
		t.Fatalf("expected an exbibyte requirement to fail: %s", r.Detail)
	}
}

func TestCheckToolchainBuiltins(t *testing.T) {
	cfg := config.Default()
	results := preflight.CheckToolchain(context.Background(), platform.PS3, cfg.ToolchainFor(platform.PS3))
	if failed := preflight.Failed(results); len(failed) != 0 {
		t.Fatalf("default ps3 toolchain should pass: %s", preflight.Summary(failed))
	}
}

func TestCheckToolchainMissingExec(t *testing.T) {
	tc := config.Toolchain{Sound: "exec:clearly-not-present-encoder --rate 44100"}
	results := preflight.CheckToolchain(context.Background(), platform.PC, tc)
	failed := preflight.Failed(results)
	if len(failed) != 2 {
		t.Fatalf("expected the binary and the binding to fail, got %+v", failed)
	}
	if !strings.Contains(failed[0].Detail, "clearly-not-present-encoder") {
		t.Fatalf("detail should name the program: %s", failed[0].Detail)
	}
}

func TestCheckToolchainStubbedExec(t *testing.T) {
	testsupport.NewConfig(t, testsupport.WithStubbedBinaries("kiln-sndenc"))
	tc := config.Toolchain{Sound: "exec:kiln-sndenc -q"}
	results := preflight.CheckToolchain(context.Background(), platform.PC, tc)
	if failed := preflight.Failed(results); len(failed) != 0 {
		t.Fatalf("stubbed encoder should resolve: %s", preflight.Summary(failed))
	}
}

func TestCheckToolchainRequiredUnbound(t *testing.T) {
	results := preflight.CheckToolchain(context.Background(), platform.Xenon, config.Toolchain{Sound: "builtin"})
	failed := preflight.Failed(results)
	if len(failed) == 0 || failed[0].Name != "xenon texture toolchain" {
		t.Fatalf("expected unbound texture toolchain to fail, got %+v", failed)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := preflight.RunAll(context.Background(), nil, platform.PC); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_TestConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCooking(func(c *config.Cooking) {
		c.MinFreeSpaceMiB = 1
	}))
	results := preflight.RunAll(context.Background(), cfg, platform.PC)
	if failed := preflight.Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %s", preflight.Summary(failed))
	}
	names := make(map[string]bool)
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{"Source root", "Output root", "Free space", "pc toolchain binding"} {
		if !names[want] {
			t.Fatalf("missing %q in %+v", want, results)
		}
	}
}
