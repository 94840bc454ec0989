package logging

import (
	"context"
	"log/slog"

	"kiln/internal/runctx"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldPackage is the standardized key for the package being cooked.
	FieldPackage = "package"
	// FieldStage is the standardized key for PackageWriter stages.
	FieldStage = "stage"
	// FieldRunID correlates every line of one cook run.
	FieldRunID = "run_id"
	// FieldPlatform is the cook target.
	FieldPlatform = "platform"
	// FieldEventType tags lines that mark a lifecycle event.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to do next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldDecisionType names the decision recorded by DecisionAttrs.
	FieldDecisionType = "decision_type"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := runctx.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if p, ok := runctx.PlatformFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPlatform, p))
	}
	if pkg, ok := runctx.PackageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPackage, pkg))
	}
	if stage, ok := runctx.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
