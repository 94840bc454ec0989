// Package asset holds the in-memory object graph the cook operates on.
//
// A Universe is an arena: packages and objects are addressed by PackageID and
// ObjectID and never hold pointers to each other. Objects carry one-shot and
// per-package markers (Flags) that the writer sets and clears; each marker has
// exactly one writer per run:
//
//   - FlagCooked is set by the object cooker and never cleared.
//   - FlagForceExport and FlagSavedThisRun are set by the package writer and
//     cleared by it after every package write.
//   - FlagNoReexport is set by the writer at the first map and after startup
//     and native script packages are written; synthetic package assembly
//     clears it on constituents.
//
// Garbage collection is package-granular: a package survives when it is
// reachable from a root through object references.
package asset
