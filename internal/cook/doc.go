// Package cook runs a cook for one target.
//
// A run parses its tokens, binds the target toolchains, takes the cooked
// directory lock, opens the side index, plans the cook list and drives every
// stale entry through the writer. BuildPlan is shared with the list command:
// it roots native script, resolves the dependencies of the root packages and
// decides staleness per entry.
//
// With -payloadonly the run refreshes streaming payloads of an earlier cook
// in place, relying on the offsets recorded in the side index. With -sha it
// maintains Hashes.b3, a keyed BLAKE3 manifest of the fully compressed
// packages it wrote.
package cook
