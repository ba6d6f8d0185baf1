// Package cryptox implements the authenticated-encryption primitive that
// protects queue payloads at rest. Ciphertexts are bound to the note id via
// AEAD associated data, so a ciphertext cannot be silently relabeled onto a
// different queue item.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/edgemed/edgemed/internal/common"
)

// KeySize is the AES key length in bytes (AES-128).
const KeySize = 16

// AEAD wraps an AES-GCM primitive bound to a single key.
type AEAD struct {
	aead cipher.AEAD
}

// New returns an AEAD for the given key. The key must be a valid AES key
// length (16, 24, or 32 bytes).
func New(key []byte) (*AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &AEAD{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce, binding associatedData
// into the authentication tag. The nonce is prepended to the returned
// ciphertext so that Decrypt needs no extra bookkeeping.
//
// For queue payloads associatedData must be the note id bytes.
func (a *AEAD) Encrypt(plaintext, associatedData []byte) ([]byte, error) {
	nonce := make([]byte, a.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return a.aead.Seal(nonce, nonce, plaintext, associatedData), nil
}

// Decrypt opens a ciphertext produced by Encrypt. It returns
// common.ErrIntegrity (wrapped) when the ciphertext was tampered with or
// associatedData does not match what was used at encryption time.
func (a *AEAD) Decrypt(ciphertext, associatedData []byte) ([]byte, error) {
	ns := a.aead.NonceSize()
	if len(ciphertext) < ns {
		return nil, fmt.Errorf("ciphertext too short: %w", common.ErrIntegrity)
	}
	nonce, sealed := ciphertext[:ns], ciphertext[ns:]
	plaintext, err := a.aead.Open(nil, nonce, sealed, associatedData)
	if err != nil {
		return nil, fmt.Errorf("aead open: %w", common.ErrIntegrity)
	}
	return plaintext, nil
}
