// Package writer turns cook list entries into cooked packages.
//
// Each package moves through Loading, GcChecked, Transformed and Written.
// Loading materializes the source package, or assembles a synthetic
// seek-free package from its constituents. GcChecked collects everything
// unreachable and verifies no stray world survived. Transformed selects the
// objects to save, forcing exports into seek-free packages, cooks them and
// places their bulk payloads. Written serializes the package, records the
// payload placements in the side index and resets the per-run markers.
//
// Marker ownership: the writer is the only writer of FlagForceExport,
// FlagSavedThisRun, PackageCooked and the rooting of combined startup
// constituents. FlagNoReexport is raised here and by run planning when it
// roots native script, and cleared only on synthetic package constituents.
// FlagCooked belongs to objcook.
package writer
