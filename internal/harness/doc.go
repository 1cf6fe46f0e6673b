// Package harness provides conformance testing for circuit documents.
//
// A scenario names a circuit document, the lowering settings to use and
// what the pipeline must produce. The harness loads the circuit, runs the
// full check-and-lower pipeline against a fresh in-memory artifact store and
// evaluates the expectations against the outcome.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: counter
//	description: "Register with synchronous reset lowers to an always block"
//	circuit: circuits/counter.yaml
//	lower:
//	  registers: true
//	expect:
//	  ok: true
//	  diagnostics: [W221]
//	  widths:
//	    counter.r: 8
//	  verilog_contains:
//	    - "always @(posedge clk) begin"
//	  deterministic: true
//	golden: true
//
// The circuit path is resolved relative to the scenario file. Unknown keys
// are rejected so that typos fail loudly.
//
// # Expectations
//
//   - ok: whether the pipeline must produce Verilog
//   - diagnostics: the exact ordered list of diagnostic codes
//   - widths: resolved widths keyed by "module.name"
//   - verilog_contains: substrings the Verilog text must contain
//   - unsupported: the construct the lowering engine must reject
//   - status: the run status recorded in the store
//   - deterministic: lowering with forced parallelism gives the same text
//
// # Golden Files
//
// When golden is set, RunWithGolden compares the Verilog text against
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
