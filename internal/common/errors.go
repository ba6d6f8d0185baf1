// Package common defines shared constants and sentinel errors used across
// the agent and server layers of edgemed. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrIntegrity indicates an AEAD open failure: the ciphertext was
	// tampered with or the associated data does not match what was used
	// at encryption time.
	ErrIntegrity = errors.New("integrity check failed")

	// Queue state machine errors.
	ErrInvalidTransition = errors.New("invalid status transition")

	// Service-level errors.
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
