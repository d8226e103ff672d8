// Package engine implements the byte-level RCX rewriting engine.
//
// An Engine owns one arena, one rule store, the dispatch table built from
// that store, and an append-only divergence log. It is a state machine,
// not a service:
//
//	Loaded -> Running -> {Converged, TimedOut}
//
// LoadFailed is reported by Load/Execute when the input container cannot be
// decoded or does not fit; no engine is ever started on a partial state.
//
// ITERATION:
//
// One iteration dispatches every rule in store order and then fingerprints
// the observation window [0, FingerprintWindow) of the arena. If the
// fingerprint equals the one taken before the pass, the engine has
// converged. Otherwise the new fingerprint becomes the baseline and the
// iteration counter advances; reaching MaxIterations ends the run as
// TimedOut, which is an outcome, not an error.
//
// Fingerprint equality over a bounded window is an approximation of "no
// further change". Writes outside the window are invisible to the main
// loop, and the per-address Fix primitive uses its own 8-byte window. The
// two notions of convergence do not agree in general; the main loop is
// authoritative for the terminal state.
//
// OUT OF BOUNDS:
//
// Primitives never fail. Reads outside the arena yield 0, writes and
// Delta are dropped, Fix reports "not converged" without recording a
// baseline, and dispatching a missing rule index does nothing.
//
// CONCURRENCY:
//
// An Engine is single-threaded and must not be shared. Parallelism is only
// ever across independent Engine instances.
package engine
