// Package cookerr defines the error markers shared by every cook stage.
//
// Errors are tagged with one of the sentinel markers through Wrap so the run
// loop can decide between aborting (fatal) and skipping the affected entry
// (recoverable). Warning-only conditions are never returned as errors; they
// are logged where they are detected.
package cookerr
