// Package harness runs YAML conformance scenarios against the RCX engine.
//
// A scenario names one program (inline, as a hex container, or from a CUE
// file), the run limits and mutation schedule, and a list of assertions:
//
//	name: toggle_times_out
//	description: a Delta on byte 5 never settles
//	max_iterations: 5
//	program:
//	  rules:
//	    - {op: delta, addr: 5}
//	  poke:
//	    - {addr: 5, value: 0x10}
//	assertions:
//	  - {type: outcome, outcome: timed_out}
//	  - {type: iterations, count: 5}
//	  - {type: arena_byte, addr: 5, value: 0x15}
//
// Every scenario runs on a fresh engine with a fixed run id. The run is
// written to an in-memory run history, read back and replayed; a replay that
// differs from the original fails the scenario even if every assertion held.
//
// Golden files hold a canonical JSON snapshot of the result (see Snapshot)
// and are compared with goldie in tests and with CompareGolden from the CLI.
package harness
