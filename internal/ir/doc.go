// Package ir provides the circuit intermediate representation for yinglong.
//
// This package contains the data model only: circuits, modules, ports,
// statements, expressions and their types, plus the primop width algebra that
// both the inference engine and the Verilog lowering engine consult. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - The tree is immutable once built; passes read it and return new values
//   - Statement and expression variants are sealed interfaces
//   - Ref expressions are name lookups, never structural back-references
//   - Position metadata (PosInfo) is opaque and passed through untouched
//   - One width table (InferPrimop) serves every pass
package ir
