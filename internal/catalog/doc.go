// Package catalog enumerates source packages, classifies them, assigns their
// per-platform destinations, and orders the cook list.
//
// The cook list is grouped by classification (not-required, required, script,
// combined startup, standalone seek-free, maps, multiplayer maps). Script
// packages keep their declared order; every other group sorts by relative
// source path so repeated runs produce identical lists.
package catalog
