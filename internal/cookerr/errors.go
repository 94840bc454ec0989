package cookerr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFatal aborts the whole run. ErrRecoverable is handled where it is
// detected and the affected entry is skipped.
var (
	ErrFatal         = errors.New("fatal cook error")
	ErrRecoverable   = errors.New("recoverable cook error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrToolchain     = errors.New("toolchain error")
)

// Severity classifies an error against the run's error taxonomy.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityWarning
	SeverityRecoverable
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityWarning:
		return "warning"
	case SeverityRecoverable:
		return "recoverable"
	default:
		return "fatal"
	}
}

// Wrap builds an error message that carries stage context and tags it with
// marker. Pass ErrFatal or ErrRecoverable as marker to fix the severity; any
// other marker is classified by Classify.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrFatal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal is shorthand for Wrap(ErrFatal, ...).
func Fatal(stage, operation, message string, err error) error {
	return Wrap(ErrFatal, stage, operation, message, err)
}

// Recoverable is shorthand for Wrap(ErrRecoverable, ...).
func Recoverable(stage, operation, message string, err error) error {
	return Wrap(ErrRecoverable, stage, operation, message, err)
}

// Classify maps err to a severity. Unmarked errors are fatal: an unknown
// failure mid-package leaves an object graph that cannot be serialized safely.
func Classify(err error) Severity {
	switch {
	case err == nil:
		return SeverityNone
	case errors.Is(err, ErrFatal):
		return SeverityFatal
	case errors.Is(err, ErrRecoverable):
		return SeverityRecoverable
	default:
		return SeverityFatal
	}
}

// IsFatal reports whether err must terminate the run.
func IsFatal(err error) bool {
	return Classify(err) == SeverityFatal
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "cook failure"
	}
	return strings.Join(parts, ": ")
}
