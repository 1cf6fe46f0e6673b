package ir

// Version constants for the IR document schema and toolchain.
const (
	// IRVersion is the circuit document schema version. It is stored with
	// every cached artifact; bumping it invalidates the cache.
	IRVersion = "1"

	// EngineVersion is the yinglong toolchain version.
	EngineVersion = "0.1.0"
)
