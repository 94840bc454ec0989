// Package runctx stamps cook run identifiers onto contexts so log lines can be
// correlated per run, package, and stage.
package runctx

import "context"

type contextKey string

const (
	runIDKey    contextKey = "run_id"
	packageKey  contextKey = "package"
	stageKey    contextKey = "stage"
	platformKey contextKey = "platform"
)

// WithRunID annotates context with the run correlation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPackage annotates context with the package currently being cooked.
func WithPackage(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, packageKey, name)
}

// PackageFromContext returns the package name if present.
func PackageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(packageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the writer stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPlatform annotates context with the cook target.
func WithPlatform(ctx context.Context, platform string) context.Context {
	if platform == "" {
		return ctx
	}
	return context.WithValue(ctx, platformKey, platform)
}

// PlatformFromContext returns the cook target if present.
func PlatformFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(platformKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
