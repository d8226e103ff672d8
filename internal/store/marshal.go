package store

import (
	"fmt"

	"github.com/roach88/rcx/internal/ir"
)

// Fingerprints are stored as lowercase hex; the zero fingerprint (a run that
// never completed a pass) is stored as the empty string.
func marshalFingerprint(f ir.Fingerprint) string {
	if f.IsZero() {
		return ""
	}
	return f.String()
}

func unmarshalFingerprint(s string) (ir.Fingerprint, error) {
	if s == "" {
		return ir.Fingerprint{}, nil
	}
	return ir.ParseFingerprint(s)
}

func unmarshalRuleBytes(b []byte) ([ir.RuleSize]byte, error) {
	var out [ir.RuleSize]byte
	if len(b) != ir.RuleSize {
		return out, fmt.Errorf("rule record: want %d bytes, got %d", ir.RuleSize, len(b))
	}
	copy(out[:], b)
	return out, nil
}

// nonNil keeps NOT NULL BLOB columns satisfied for empty payloads.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
