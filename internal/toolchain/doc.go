// Package toolchain defines the platform toolchain contracts the transforms
// call into and resolves them per run.
//
// A binding is either "builtin", an in-process implementation, or
// "exec:<command line>", an external program speaking a small stdin/stdout
// protocol:
//
//	<cmd> texture-describe <format> <w> <h> <mips> <flags>  -> CBOR {tail_base, mip_sizes}
//	<cmd> texture-mip <format> <w> <h> <level> <row_pitch> <dst_size>  stdin src -> stdout dst
//	<cmd> texture-tail <format> <w> <h> <tail_base>          stdin CBOR [mips] -> stdout tail
//	<cmd> mesh-optimize <triangles>                          stdin u16le indices -> stdout u16le indices
//	<cmd> sound-encode <platform>                            stdin wav -> stdout encoded
//
// Bindings are resolved once; the resulting Bindings value is threaded
// through the transforms with no package-level state.
package toolchain
