// Package pass defines the contract shared by the inference and lowering
// engines: a pass is a pure function from a piece of IR to a derived value.
//
// Passes never mutate their input. Because of that, sibling subtrees
// (modules of a circuit, ports of a module, statements of a group) can be
// evaluated concurrently with Map, which reassembles results by original
// index so output never depends on scheduling.
package pass
