package ir

import (
	"crypto/sha256"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashWithDomain_Format(t *testing.T) {
	data := []byte{1, 2, 3}
	want := sha256.Sum256(append([]byte(DomainState+"\x00"), data...))
	assert.Equal(t, Fingerprint(want), StateFingerprint(data))
}

func TestFingerprint_DomainSeparation(t *testing.T) {
	window := make([]byte, 8)
	assert.NotEqual(t, StateFingerprint(window), ProbeFingerprint(window),
		"same bytes under different domains must not collide")
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := StateFingerprint([]byte("abc"))
	b := StateFingerprint([]byte("abc"))
	c := StateFingerprint([]byte("abd"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestFingerprint_JSONRoundTrip(t *testing.T) {
	f := ProbeFingerprint([]byte{0xFF})
	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Equal(t, `"`+f.String()+`"`, string(data))

	var back Fingerprint
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, f, back)
}

func TestParseFingerprint_Invalid(t *testing.T) {
	_, err := ParseFingerprint("zz")
	assert.Error(t, err)
	_, err = ParseFingerprint("abcd")
	assert.Error(t, err)
}

func TestFingerprint_ZeroAndShort(t *testing.T) {
	var zero Fingerprint
	assert.True(t, zero.IsZero())
	f := StateFingerprint(nil)
	assert.False(t, f.IsZero())
	assert.Len(t, f.Short(), 12)
}

func TestContainerHash_Stable(t *testing.T) {
	a := ContainerHash([]byte("RCX\x00"))
	assert.Equal(t, a, ContainerHash([]byte("RCX\x00")))
	assert.Len(t, a, 64)
}
