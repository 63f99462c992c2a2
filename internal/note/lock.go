package note

import (
	"encoding/base64"
	"sync"
)

// EncodePassword produces the stored obfuscated form of a password.
// This is reversible base64 of the UTF-8 bytes, NOT a hash: it gates access
// in the UI but provides no confidentiality against anyone who can read the
// persisted blob. Changing it to a one-way hash would break verification of
// passwords already stored by existing collections, so the encoding is kept;
// at-rest protection comes from the encrypted storage layer instead.
func EncodePassword(password string) string {
	return base64.StdEncoding.EncodeToString([]byte(password))
}

// DecodePassword reverses EncodePassword. A malformed stored value decodes
// to "", which can never match a valid supplied password.
func DecodePassword(encoded string) string {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ""
	}
	return string(raw)
}

// LockManager owns the session-scoped unlocked-set. Membership is additive
// only through successful verification and is cleared when the process ends;
// it is never persisted.
type LockManager struct {
	mu       sync.Mutex
	unlocked map[string]struct{}
}

// NewLockManager creates a lock manager with an empty unlocked-set.
func NewLockManager() *LockManager {
	return &LockManager{unlocked: make(map[string]struct{})}
}

// IsUnlocked reports whether the note identified by id with the given stored
// password is readable: true when the note has no password, or when id is in
// the unlocked-set.
func (m *LockManager) IsUnlocked(id, encoded string) bool {
	if encoded == "" {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.unlocked[id]
	return ok
}

// Verify compares supplied against the decoded stored password. On match the
// id joins the unlocked-set (idempotent); otherwise ErrLockMismatch. A note
// without a password verifies trivially.
func (m *LockManager) Verify(id, encoded, supplied string) error {
	if encoded == "" {
		return nil
	}
	if supplied != DecodePassword(encoded) {
		return ErrLockMismatch
	}
	m.mu.Lock()
	m.unlocked[id] = struct{}{}
	m.mu.Unlock()
	return nil
}

// Lock removes id from the unlocked-set. Used on explicit re-lock (leaving
// edit mode) and on the cancel paths of gated dialog flows.
func (m *LockManager) Lock(id string) {
	m.mu.Lock()
	delete(m.unlocked, id)
	m.mu.Unlock()
}

// NextPassword validates a password change request against the stored
// encoded password and returns the new encoded value. The state machine:
//
//	Unset        -- set non-empty new --> Gated
//	Gated        -- correct current, both fields empty --> Unset
//	Gated        -- correct current, new+confirm --> Gated (new password)
//
// An empty return with nil error means the password was removed.
func (m *LockManager) NextPassword(encoded, current, newPassword, confirmPassword string) (string, error) {
	if encoded != "" {
		if current != DecodePassword(encoded) {
			return "", ErrWrongCurrentPassword
		}
		if newPassword == "" && confirmPassword == "" {
			return "", nil
		}
	}
	if len([]rune(newPassword)) < 4 {
		return "", ErrPasswordTooShort
	}
	if newPassword != confirmPassword {
		return "", ErrPasswordConfirmMismatch
	}
	return EncodePassword(newPassword), nil
}
