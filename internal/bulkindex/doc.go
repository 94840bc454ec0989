// Package bulkindex tracks where out-of-line bulk payloads were placed in
// written packages.
//
// Records live in a per-target SQLite side index next to the cooked output
// and are held in memory for the run. A record is immutable once written in
// a run: recording an identical tuple again is a no-op and recording a
// different one is fatal. Payload-only runs read records back and patch the
// referenced bytes without re-running the full package write.
package bulkindex
