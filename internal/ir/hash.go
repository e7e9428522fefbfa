package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed hashes. The version suffix allows
// the hashed layout to change without colliding with older hashes.
const (
	DomainProgram = "bsync/program/v1"
	DomainTrace   = "bsync/trace/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The null byte keeps
// the domain and data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProgramHash identifies a compiled program. Recorded runs store it so a
// replay can refuse to run against a different program.
func ProgramHash(p ProgramSpec) (string, error) {
	canonical, err := MarshalCanonical(p.ToIR())
	if err != nil {
		return "", fmt.Errorf("ProgramHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProgram, canonical), nil
}

// TraceHash summarizes a selected-event sequence. Two runs with equal
// traces have equal hashes.
func TraceHash(events []string) (string, error) {
	canonical, err := MarshalCanonical(stringsToIR(events))
	if err != nil {
		return "", fmt.Errorf("TraceHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// MustProgramHash is like ProgramHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustProgramHash(p ProgramSpec) string {
	h, err := ProgramHash(p)
	if err != nil {
		panic(err)
	}
	return h
}
