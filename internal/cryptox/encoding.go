package cryptox

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/manylla-sync/internal/common"
)

// EncodeBase64 encodes an envelope for the encrypted_blob wire field.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBase64 decodes an encrypted_blob wire field.
func DecodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed base64", common.ErrValidation)
	}
	return b, nil
}

// EncodeKey renders a key for a URL fragment using the unpadded URL-safe
// alphabet.
func EncodeKey(key []byte) string {
	return base64.RawURLEncoding.EncodeToString(key)
}

// DecodeKey parses a key from a URL fragment. Keys minted by older clients
// in the standard alphabet, padded or not, are accepted as well.
func DecodeKey(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)

	key, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed key", common.ErrValidation)
	}
	if len(key) != common.KeyLength {
		return nil, fmt.Errorf("%w: key must be %d bytes", common.ErrValidation, common.KeyLength)
	}
	return key, nil
}
