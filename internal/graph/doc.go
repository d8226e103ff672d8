// Package graph implements the motif/projection/closure model of RCX.
//
// A Registry holds three insertion-ordered tables:
//   - Motifs: deduplicated atomic units identified by label
//   - Projections: directed rewrite edges (source motif -> target motif), not deduplicated
//   - Closures: named references to exactly one projection
//
// Activation applies one closure to one motif, rewriting it when the motif is
// the closure's projection source. Evolution repeats activation across all
// closures in registration order until a full pass changes nothing.
//
// Tie-breaking is deterministic: when several closures could match, the
// earliest-registered one wins for that pass.
//
// Every table is capacity-bounded. A full table is reported as
// *ir.CapacityError and never panics.
package graph
