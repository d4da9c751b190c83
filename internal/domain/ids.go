// Package domain contains pure business logic and types.
// No external dependencies allowed beyond identifiers and logging contracts -
// this is the innermost ring of the architecture.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// SessionID is a value object representing a unique session identifier.
// Always valid in memory - use NewSessionID to construct.
type SessionID struct {
	value string
}

// NewSessionID creates a SessionID from a raw string, validating it is a valid UUID.
func NewSessionID(raw string) (SessionID, error) {
	if raw == "" {
		return SessionID{}, ErrEmptyID
	}
	if _, err := uuid.Parse(raw); err != nil {
		return SessionID{}, fmt.Errorf("invalid session ID %q: %w", raw, ErrInvalidID)
	}
	return SessionID{value: raw}, nil
}

// MustSessionID creates a SessionID, panicking on invalid input. Use only in tests.
func MustSessionID(raw string) SessionID {
	id, err := NewSessionID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// GenerateSessionID creates a new random SessionID.
func GenerateSessionID() SessionID {
	return SessionID{value: uuid.NewString()}
}

func (id SessionID) String() string { return id.value }
func (id SessionID) IsZero() bool   { return id.value == "" }

// FingerprintID is a value object representing a unique device fingerprint
// record identifier.
type FingerprintID struct {
	value string
}

// NewFingerprintID creates a FingerprintID from a raw string, validating it is
// a valid UUID.
func NewFingerprintID(raw string) (FingerprintID, error) {
	if raw == "" {
		return FingerprintID{}, ErrEmptyID
	}
	if _, err := uuid.Parse(raw); err != nil {
		return FingerprintID{}, fmt.Errorf("invalid fingerprint ID %q: %w", raw, ErrInvalidID)
	}
	return FingerprintID{value: raw}, nil
}

// MustFingerprintID creates a FingerprintID, panicking on invalid input.
// Use only in tests.
func MustFingerprintID(raw string) FingerprintID {
	id, err := NewFingerprintID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// GenerateFingerprintID creates a new random FingerprintID.
func GenerateFingerprintID() FingerprintID {
	return FingerprintID{value: uuid.NewString()}
}

func (id FingerprintID) String() string { return id.value }
func (id FingerprintID) IsZero() bool   { return id.value == "" }
