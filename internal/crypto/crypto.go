// Package crypto derives the storage encryption key from the master secret.
// The database key is derived with HKDF-SHA256 using a domain-separated info
// string, so rotating the version yields an unrelated key.
package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the size of the derived database key in bytes (256 bits).
const KeySize = 32

// DeriveStorageKey derives the SQLCipher database key from the master key.
//
// Parameters:
//   - masterKey: the root secret (high-entropy, at least 32 bytes recommended)
//   - version: key version, for rotation support
//
// Returns a 32-byte key derived deterministically from the inputs.
func DeriveStorageKey(masterKey []byte, version int) []byte {
	info := fmt.Sprintf("page-notes:storage:v%d", version)

	hkdfReader := hkdf.New(sha256.New, masterKey, nil, []byte(info))

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		// HKDF cannot fail to produce 32 bytes for valid inputs.
		panic(fmt.Sprintf("HKDF failed: %v", err))
	}

	return key
}
