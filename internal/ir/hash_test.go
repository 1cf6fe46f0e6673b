package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitHashDeterminism(t *testing.T) {
	h1, err := CircuitHash(sampleCircuit())
	require.NoError(t, err)
	h2, err := CircuitHash(sampleCircuit())
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "CircuitHash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestCircuitHashChangesWithContent(t *testing.T) {
	base := MustCircuitHash(sampleCircuit())

	widened := sampleCircuit()
	widened.Modules[0].Ports[0].Bind.Type = UInt(33)
	assert.NotEqual(t, base, MustCircuitHash(widened), "port width is part of identity")

	moved := sampleCircuit()
	moved.Modules[0].Body[0].Pos.Line = 5
	assert.NotEqual(t, base, MustCircuitHash(moved), "position is part of identity")
}

func TestCircuitHashNil(t *testing.T) {
	_, err := CircuitHash(nil)
	assert.Error(t, err)
	assert.Panics(t, func() { MustCircuitHash(nil) })
}

func TestDomainSeparation(t *testing.T) {
	v := map[string]any{"workers": 1}

	h1, err := HashCanonical(DomainCircuit, v)
	require.NoError(t, err)
	h2, err := HashCanonical(DomainOptions, v)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2, "same data under different domains must differ")
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	// "ab" + 0x00 + "c" must differ from "a" + 0x00 + "bc"
	assert.NotEqual(t, hashWithDomain("ab", []byte("c")), hashWithDomain("a", []byte("bc")))
}

func TestHashCanonicalRejectsFloat(t *testing.T) {
	_, err := HashCanonical(DomainOptions, map[string]any{"x": 0.5})
	assert.Error(t, err)
}
