// Package cryptox implements the client-side encryption envelope: JSON
// payloads sealed with NaCl secretbox under a 32-byte key, plus key and
// recovery phrase helpers. The server never calls into this package.
package cryptox

import (
	"bytes"
	"compress/flate"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dmitrijs2005/manylla-sync/internal/common"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// FormatV2 tags envelopes produced by Encrypt. Any other leading byte is
	// rejected, so legacy content must be told apart by the caller, never by
	// attempting a decrypt.
	FormatV2 byte = 0x02

	// NonceSize is the secretbox nonce length.
	NonceSize = 24

	headerSize = 2

	flagCompressed byte = 1 << 0

	compressionThreshold = 1024
)

// maxPlaintextSize bounds what a compressed payload may inflate to.
var maxPlaintextSize int64 = 8 * common.DefaultMaxBlobSize

// Overhead is the number of bytes an envelope adds to its (possibly
// compressed) payload.
const Overhead = headerSize + NonceSize + headerSize + secretbox.Overhead

// Encrypt serializes v to JSON and seals it under key.
//
// Layout: format(1) || flags(1) || nonce(24) || secretbox(format || flags || payload).
// The header is repeated inside the box so that flipping a header bit is
// detected after Open instead of changing how the payload is interpreted.
func Encrypt(v any, key []byte) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return Seal(plaintext, key)
}

// Seal encrypts raw bytes under key using the versioned envelope.
func Seal(plaintext, key []byte) ([]byte, error) {
	k, err := toKey(key)
	if err != nil {
		return nil, err
	}

	payload, flags := maybeCompress(plaintext)

	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	header := []byte{FormatV2, flags}
	inner := make([]byte, 0, headerSize+len(payload))
	inner = append(inner, header...)
	inner = append(inner, payload...)

	out := make([]byte, 0, headerSize+NonceSize+len(inner)+secretbox.Overhead)
	out = append(out, header...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, inner, &nonce, k), nil
}

// Decrypt opens envelope with key and unmarshals the JSON payload into v.
// Every failure to authenticate or decode the envelope is reported as
// common.ErrAuthentication.
func Decrypt(envelope, key []byte, v any) error {
	plaintext, err := Open(envelope, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("%w: payload is not valid JSON", common.ErrAuthentication)
	}
	return nil
}

// Open authenticates and decrypts a versioned envelope.
func Open(envelope, key []byte) ([]byte, error) {
	k, err := toKey(key)
	if err != nil {
		return nil, err
	}
	if len(envelope) < headerSize+NonceSize+secretbox.Overhead || envelope[0] != FormatV2 {
		return nil, common.ErrAuthentication
	}

	var nonce [NonceSize]byte
	copy(nonce[:], envelope[headerSize:headerSize+NonceSize])

	inner, ok := secretbox.Open(nil, envelope[headerSize+NonceSize:], &nonce, k)
	if !ok || len(inner) < headerSize || !bytes.Equal(inner[:headerSize], envelope[:headerSize]) {
		return nil, common.ErrAuthentication
	}

	payload := inner[headerSize:]
	if envelope[1]&flagCompressed != 0 {
		payload, err = decompress(payload)
		if err != nil {
			return nil, common.ErrAuthentication
		}
	}
	return payload, nil
}

// GenerateKey returns a fresh random 32-byte key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, common.KeyLength)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

func toKey(key []byte) (*[common.KeyLength]byte, error) {
	if len(key) != common.KeyLength {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrValidation, common.KeyLength, len(key))
	}
	var k [common.KeyLength]byte
	copy(k[:], key)
	return &k, nil
}

// maybeCompress deflates payloads above the threshold when that saves at
// least 10%.
func maybeCompress(plaintext []byte) ([]byte, byte) {
	if len(plaintext) <= compressionThreshold {
		return plaintext, 0
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return plaintext, 0
	}
	if _, err := w.Write(plaintext); err != nil {
		return plaintext, 0
	}
	if err := w.Close(); err != nil {
		return plaintext, 0
	}

	if buf.Len() >= len(plaintext)*9/10 {
		return plaintext, 0
	}
	return buf.Bytes(), flagCompressed
}

func decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, maxPlaintextSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > maxPlaintextSize {
		return nil, fmt.Errorf("payload inflates past %d bytes", maxPlaintextSize)
	}
	return out, nil
}
