// Package reflection describes shader parameter layouts: the read-only oracle
// the binding engine consumes.
//
// A [TypeLayout] reports, for one type, its binding ranges, the descriptor
// ranges each binding range maps to, the sub-object ranges that hold nested
// objects (constant buffers, parameter blocks, existential values, structured
// buffer elements), and its ordinary data size. Offsets are relative to the
// enclosing value; existential fields additionally carry "pending" offsets
// that locate the data of their concrete type once specialized.
//
// Layouts come from two sources:
//
//   - [StructBuilder] and [ProgramBuilder] assemble them programmatically.
//   - [FromWGSL] derives them from WGSL source using naga.
//
// [Compiler] resolves existential parameters to concrete types, producing a
// specialized [Program] whose pending regions follow the primary data of
// each scope.
package reflection
