package snapshot

import (
	"fmt"
	"os"

	"golang.org/x/crypto/argon2"
)

// Key is a raw AES-256 key. The codec only consumes keys; where a passphrase
// or key file comes from belongs to the caller.
type Key [32]byte

// Argon2id parameters. Changing these breaks passphrase-derived decryption
// of existing archives, so they are fixed.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// DeriveKey stretches a passphrase into an AES-256 key with argon2id using
// the archive's salt.
func DeriveKey(passphrase string, salt []byte) Key {
	var key Key
	derived := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, 32)
	copy(key[:], derived)
	return key
}

// LoadKeyFile reads a raw 32-byte key from a locally-held key file.
func LoadKeyFile(path string) (Key, error) {
	var key Key

	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return key, fmt.Errorf("failed to read key file: %w", err)
	}
	if len(data) != len(key) {
		return key, fmt.Errorf("key file must hold exactly %d bytes, got %d", len(key), len(data))
	}

	copy(key[:], data)
	return key, nil
}
