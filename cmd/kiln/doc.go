// Package main hosts the kiln CLI entrypoint and command graph.
//
// The Cobra-based command tree runs cooks, prints cook plans, dumps the
// per-platform side index, checks the environment, and scaffolds
// configuration. cook and list take the original token syntax
// (platform=<id>, -full, root names) and parse it themselves; the other
// commands use ordinary flags.
//
// Keep this package lean: behavior lives in internal/cook and friends, and
// commands here only resolve configuration, call in, and render results.
package main
