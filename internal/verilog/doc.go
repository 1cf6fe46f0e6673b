// Package verilog lowers a type-checked circuit into structural Verilog text.
//
// Output format is frozen; downstream tooling diffs it:
//   - one "module <id>( ... ); ... endmodule" block per module, in circuit
//     order, separated by one blank line
//   - ports one per line, joined by ",\n", no indentation
//   - declarations hoisted to the top of the body, in declaration order
//   - module-level lines unindented; lines inside always blocks indented
//     one tab per nesting level
//   - an optional trailing " // @[file:line:col]" on lines that come from a
//     statement carrying a position
//
// Binding rendering: width 1 is a bare scalar, width W>1 is "[W-1:0] name",
// width 0 is omitted with a logged warning. SInt bindings carry "signed".
//
// Primop and mux operands are always identifiers or literals. A nested
// result is bound to a "_T_<stmt>_<n>" net of its inferred width first, so
// Verilog's context-dependent sizing cannot change its value.
//
// Lowering never panics. Constructs without a lowering rule return
// *UnsupportedConstructError; a circuit that does not satisfy the checked
// precondition returns *FatalPreconditionError before any text is produced.
package verilog
