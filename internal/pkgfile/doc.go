// Package pkgfile reads and writes cooked package files.
//
// A cooked package is a 64-byte header followed by the payload region and the
// export table. Every integer is written in the target platform's byte order
// and the header carries a byte-order mark so readers can tell which. A fully
// compressed package keeps the header plain and compresses everything after
// it as one block; payload offsets always refer to the uncompressed image, so
// the bulk payload index stays valid either way.
package pkgfile
