package cryptox

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/manylla-sync/internal/common"
	"golang.org/x/crypto/argon2"
)

// credentialSalt is fixed so that every device derives the same sync group
// from the same phrase. The phrase itself carries the 128 bits of entropy.
var credentialSalt = []byte("manylla-sync/recovery-phrase/v1")

// Credentials are the sync group coordinates derived from a recovery phrase.
type Credentials struct {
	SyncID string
	Key    []byte
}

// GenerateRecoveryPhrase returns a new 32-character lowercase hex phrase.
func GenerateRecoveryPhrase() (string, error) {
	return common.MakeRandHexString(16)
}

// NormalizePhrase lowercases the phrase and strips separators users tend to
// type (spaces and dashes).
func NormalizePhrase(phrase string) string {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	return strings.NewReplacer(" ", "", "-", "").Replace(phrase)
}

// DeriveCredentials stretches phrase with Argon2id into a sync id and an
// envelope key. The sync id is not derivable from the key or vice versa.
func DeriveCredentials(phrase string) (*Credentials, error) {
	phrase = NormalizePhrase(phrase)
	if !common.IsValidID(phrase) {
		return nil, fmt.Errorf("%w: recovery phrase must be 32 hex characters", common.ErrValidation)
	}

	material := argon2.IDKey([]byte(phrase), credentialSalt, 1, 64*1024, 4, 16+common.KeyLength)

	return &Credentials{
		SyncID: hex.EncodeToString(material[:16]),
		Key:    material[16:],
	}, nil
}
