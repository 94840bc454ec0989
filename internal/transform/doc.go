// Package transform holds the per-kind platform transforms.
//
// A Registry is built once per run from the bound toolchains and is
// stateless between calls: every method takes the object and the run's
// immutable platform.Policy and rewrites the object's kind data in place.
// Toolchain failures are wrapped with cookerr.ErrToolchain and abort the
// run; an unplayable movie is discarded with a recoverable error.
package transform
