// Package preflight checks the environment a cook depends on before any
// package is loaded.
//
// These checks run in two contexts:
//   - "kiln preflight --platform X" prints every result.
//   - "kiln cook" runs RunAll first and refuses to start when a check fails,
//     so a long cook does not die halfway on a full disk or a missing tool.
//
// Toolchain checks only look at exec bindings; builtin bindings always pass.
package preflight
