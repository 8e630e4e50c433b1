package auth

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt silently caps input at 72 bytes. Longer passwords are condensed to a
// lowercase hex SHA-256 digest first so no bytes are dropped.
const maxBcryptBytes = 72

func bcryptInput(pw string) []byte {
	b := []byte(pw)
	if len(b) <= maxBcryptBytes {
		return b
	}
	sum := sha256.Sum256(b)
	return []byte(hex.EncodeToString(sum[:]))
}

// HashPassword hashes a plaintext password using bcrypt with DefaultCost.
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword(bcryptInput(pw), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPassword reports whether the candidate plaintext matches the stored
// hash. Malformed hashes count as a mismatch, never an error.
func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(pw)) == nil
}
