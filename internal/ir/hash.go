package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for fingerprints and content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainState     = "rcx/state/v1"
	DomainProbe     = "rcx/probe/v1"
	DomainContainer = "rcx/container/v1"
)

// Fingerprint is a deterministic digest of a memory window.
//
// Fingerprints are compared for equality only. They approximate "no change"
// over a bounded window; they do not prove full-state equality.
type Fingerprint [sha256.Size]byte

// String returns the lowercase hex form.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short returns the first 12 hex characters, for logs.
func (f Fingerprint) Short() string {
	return f.String()[:12]
}

// IsZero reports whether f is the zero value (never computed).
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// MarshalJSON encodes the fingerprint as a hex string.
func (f Fingerprint) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON decodes a hex string fingerprint.
func (f *Fingerprint) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseFingerprint(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFingerprint decodes a hex fingerprint as produced by String.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	raw, err := hex.DecodeString(s)
	if err != nil {
		return f, fmt.Errorf("parse fingerprint: %w", err)
	}
	if len(raw) != len(f) {
		return f, fmt.Errorf("parse fingerprint: want %d bytes, got %d", len(f), len(raw))
	}
	copy(f[:], raw)
	return f, nil
}

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) Fingerprint {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	var f Fingerprint
	copy(f[:], h.Sum(nil))
	return f
}

// StateFingerprint digests the main-loop observation window of the arena.
func StateFingerprint(window []byte) Fingerprint {
	return hashWithDomain(DomainState, window)
}

// ProbeFingerprint digests the small window examined by a Fix probe.
func ProbeFingerprint(window []byte) Fingerprint {
	return hashWithDomain(DomainProbe, window)
}

// ContainerHash computes the content-addressed identity of an encoded
// container. Identical inputs always hash identically, which replay relies on.
func ContainerHash(container []byte) string {
	return hashWithDomain(DomainContainer, container).String()
}
