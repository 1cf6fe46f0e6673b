package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainCircuit = "yinglong/circuit/v1"
	DomainOptions = "yinglong/options/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // Null separator - CRITICAL for security
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CircuitHash computes the content-addressed identity of a circuit.
// Two circuits with the same canonical form hash identically, including
// position metadata.
func CircuitHash(c *Circuit) (string, error) {
	if c == nil {
		return "", fmt.Errorf("CircuitHash: nil circuit")
	}
	return HashCanonical(DomainCircuit, Canonical(c))
}

// HashCanonical hashes any value accepted by MarshalCanonical under domain.
func HashCanonical(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("HashCanonical: failed to marshal: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// MustCircuitHash is like CircuitHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustCircuitHash(c *Circuit) string {
	h, err := CircuitHash(c)
	if err != nil {
		panic(err)
	}
	return h
}
