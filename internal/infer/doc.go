// Package infer implements the type/width inference engine.
//
// Infer walks every module of a circuit exactly once, in declaration order,
// building an Environment that maps each declared name to its resolved type.
// Errors never stop the walk: every independently discoverable problem is
// recorded as a Diagnostic and returned together.
//
// Termination is linear by construction. There is no fixed-point solver;
// forward references are Undeclared and a use of a name whose width is still
// unknown is UnresolvedWidth.
//
// Modules are checked independently and may run in parallel (see pass.Map).
// Diagnostics are reassembled in module order so results are reproducible.
package infer
