// Package ir provides the shared data model for the RCX rewriting engine.
//
// This package contains value types only. All other internal packages
// import ir; ir imports nothing internal. This keeps the data model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Rules are fixed 5-byte records: 1-byte opcode + 4-byte little-endian address
//   - Fingerprints are used for equality comparison only, never as a security boundary
//   - Logical counters (iteration, seq) only, never wall-clock timestamps
//   - All JSON tags use snake_case
package ir
