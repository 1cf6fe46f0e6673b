// Package store provides SQLite-backed storage for lowered Verilog and the
// history of pipeline runs.
//
// # Tables
//
//   - artifacts: Verilog text keyed by (circuit_hash, options_hash)
//   - runs: one row per check or lower invocation, with its diagnostics
//
// Both hashes are computed in internal/ir from RFC 8785 canonical JSON and
// SHA-256 with domain separation, so identical circuits lowered with
// identical options share one artifact.
//
// # Ordering
//
// Every row carries a logical seq INTEGER assigned at insert time. Queries
// order by seq ASC, id COLLATE BINARY ASC and never by timestamps, so
// listings are identical across machines.
//
// # Connections
//
// A Store holds a single SQLite connection in WAL mode with a 5 second
// busy timeout. Schema changes are numbered migrations tracked in
// PRAGMA user_version.
package store
