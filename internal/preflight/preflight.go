package preflight

import (
	"context"
	"strings"

	"kiln/internal/config"
	"kiln/internal/platform"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check that applies to a cook of id.
func RunAll(ctx context.Context, cfg *config.Config, id platform.ID) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Source root", cfg.Paths.SourceRoot, false))
	results = append(results, CheckOutputRoot("Output root", cfg.Paths.OutputRoot))
	if cfg.Cooking.MinFreeSpaceMiB > 0 {
		results = append(results, CheckFreeSpace("Free space", cfg.Paths.OutputRoot, cfg.Cooking.MinFreeSpaceMiB))
	}
	results = append(results, CheckToolchain(ctx, id, cfg.ToolchainFor(id))...)
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// Summary joins failed results into one line for error messages.
func Summary(failed []Result) string {
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, r.Name+": "+r.Detail)
	}
	return strings.Join(parts, "; ")
}
