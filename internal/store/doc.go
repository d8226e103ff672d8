// Package store provides SQLite-backed run history for the RCX engine.
//
// Three append-only tables:
//   - runs: one row per engine run (input, output, outcome, parameters)
//   - passes: the fingerprint and Fix counts of every pass of a run
//   - divergences: every rule rewrite applied during a run
//
// A run and all of its passes and divergences are written in a single
// transaction, so a crash leaves either the whole run or nothing.
//
// # Determinism
//
//   - Runs are stamped with a logical seq, never a timestamp
//   - Every multi-row query orders by seq ASC, id ASC (or by iteration)
//   - Writes use ON CONFLICT DO NOTHING, so recording a run twice is a no-op
//
// ReplayRun hands back the stored input together with the mutation schedule
// rebuilt from the divergence log, which is everything needed to re-execute
// the run and compare.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
