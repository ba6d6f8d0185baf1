package cryptox

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"

	"github.com/edgemed/edgemed/internal/filex"
	"golang.org/x/crypto/argon2"
)

// keysetFile is the on-disk keyset format. Random-key mode persists the key
// material itself; passphrase mode persists only the argon2 salt and derives
// the key on every start.
type keysetFile struct {
	Version int    `json:"version"`
	Key     []byte `json:"key,omitempty"`
	Salt    []byte `json:"salt,omitempty"`
}

// DeriveKey derives a KeySize-byte AES key from a passphrase and salt using
// argon2id. Same inputs always produce the same key.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

// LoadOrCreateKeyset loads the AES key from path, generating and persisting
// a fresh random key on first start.
//
// Losing the keyset file makes every queued-but-not-synced item permanently
// unrecoverable; callers must surface per-item decryption failures instead
// of aborting whole queue reads.
func LoadOrCreateKeyset(path string) ([]byte, error) {
	ks, err := readKeyset(path)
	if err == nil {
		if len(ks.Key) != KeySize {
			return nil, fmt.Errorf("keyset %s: unexpected key length %d", path, len(ks.Key))
		}
		return ks.Key, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := writeKeyset(path, &keysetFile{Version: 1, Key: key}); err != nil {
		return nil, err
	}
	return key, nil
}

// LoadOrCreateKeysetWithPassphrase derives the AES key from the passphrase
// and a persisted random salt. Only the salt is written to disk, so the
// keyset file alone is not sufficient to decrypt the queue.
func LoadOrCreateKeysetWithPassphrase(path string, passphrase []byte) ([]byte, error) {
	ks, err := readKeyset(path)
	if err == nil {
		if len(ks.Salt) == 0 {
			return nil, fmt.Errorf("keyset %s: missing salt, not a passphrase keyset", path)
		}
		return DeriveKey(passphrase, ks.Salt), nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if err := writeKeyset(path, &keysetFile{Version: 1, Salt: salt}); err != nil {
		return nil, err
	}
	return DeriveKey(passphrase, salt), nil
}

func readKeyset(path string) (*keysetFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ks keysetFile
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, fmt.Errorf("parse keyset %s: %w", path, err)
	}
	return &ks, nil
}

func writeKeyset(path string, ks *keysetFile) error {
	if _, err := filex.EnsureParentDir(path); err != nil {
		return err
	}
	data, err := json.Marshal(ks)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write keyset %s: %w", path, err)
	}
	return nil
}
