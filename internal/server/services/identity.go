package services

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashIdentity returns a salted SHA-256 of a client address for audit rows.
// An empty identity hashes to "".
func HashIdentity(salt, identity string) string {
	if identity == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(salt + "|" + identity))
	return hex.EncodeToString(sum[:])
}
