package cryptox

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dmitrijs2005/manylla-sync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name    string            `json:"name"`
	Entries []string          `json:"entries"`
	Meta    map[string]string `json:"meta"`
	Count   int               `json:"count"`
}

func mustKey(t *testing.T) []byte {
	t.Helper()
	k, err := GenerateKey()
	require.NoError(t, err)
	require.Len(t, k, common.KeyLength)
	return k
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := mustKey(t)

	tests := []struct {
		name string
		in   payload
	}{
		{"empty", payload{}},
		{"small", payload{Name: "Ellie", Entries: []string{"loves trains"}, Count: 3}},
		{"unicode", payload{Name: "Zoë 🚂", Meta: map[string]string{"ключ": "значение"}}},
		{"large compressible", payload{Name: strings.Repeat("sensory needs ", 500)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Encrypt(tt.in, key)
			require.NoError(t, err)
			assert.Equal(t, FormatV2, env[0])

			var out payload
			require.NoError(t, Decrypt(env, key, &out))
			assert.Equal(t, tt.in, out)
		})
	}
}

func TestEncrypt_CompressesLargePayloads(t *testing.T) {
	key := mustKey(t)
	big := payload{Name: strings.Repeat("a", 10_000)}

	env, err := Encrypt(big, key)
	require.NoError(t, err)

	assert.Equal(t, flagCompressed, env[1]&flagCompressed)
	assert.Less(t, len(env), 2_000)
}

func TestDecrypt_RejectsOversizedInflation(t *testing.T) {
	key := mustKey(t)
	bomb, err := Seal(bytes.Repeat([]byte{0}, 64*1024), key)
	require.NoError(t, err)
	require.Equal(t, flagCompressed, bomb[1]&flagCompressed)

	old := maxPlaintextSize
	maxPlaintextSize = 32 * 1024
	t.Cleanup(func() { maxPlaintextSize = old })

	_, err = Open(bomb, key)
	require.ErrorIs(t, err, common.ErrAuthentication)

	// exactly at the cap still opens
	maxPlaintextSize = 64 * 1024
	out, err := Open(bomb, key)
	require.NoError(t, err)
	assert.Len(t, out, 64*1024)
}

func TestEncrypt_SmallPayloadsStayUncompressed(t *testing.T) {
	env, err := Encrypt(payload{Name: "x"}, mustKey(t))
	require.NoError(t, err)
	assert.Zero(t, env[1]&flagCompressed)
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	key := mustKey(t)
	in := payload{Name: "same"}

	a, err := Encrypt(in, key)
	require.NoError(t, err)
	b, err := Encrypt(in, key)
	require.NoError(t, err)

	assert.False(t, bytes.Equal(a, b), "envelopes must differ")
	assert.False(t, bytes.Equal(a[headerSize:headerSize+NonceSize], b[headerSize:headerSize+NonceSize]), "nonces must differ")

	var outA, outB payload
	require.NoError(t, Decrypt(a, key, &outA))
	require.NoError(t, Decrypt(b, key, &outB))
	assert.Equal(t, in, outA)
	assert.Equal(t, in, outB)
}

func TestDecrypt_DetectsEverySingleByteFlip(t *testing.T) {
	key := mustKey(t)
	env, err := Encrypt(payload{Name: "tamper me", Count: 7}, key)
	require.NoError(t, err)

	for i := range env {
		tampered := bytes.Clone(env)
		tampered[i] ^= 0x01

		var out payload
		err := Decrypt(tampered, key, &out)
		require.ErrorIs(t, err, common.ErrAuthentication, "byte %d", i)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	env, err := Encrypt(payload{Name: "secret"}, mustKey(t))
	require.NoError(t, err)

	var out payload
	assert.ErrorIs(t, Decrypt(env, mustKey(t), &out), common.ErrAuthentication)
}

func TestDecrypt_TruncatedAndForeignInput(t *testing.T) {
	key := mustKey(t)
	env, err := Encrypt(payload{Name: "x"}, key)
	require.NoError(t, err)

	inputs := map[string][]byte{
		"nil":             nil,
		"header only":     env[:2],
		"no box":          env[:headerSize+NonceSize],
		"one byte short":  env[:len(env)-1],
		"plaintext json":  []byte(`{"name":"legacy plaintext profile"}`),
		"unknown version": append([]byte{0x01}, env[1:]...),
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			var out payload
			assert.ErrorIs(t, Decrypt(in, key, &out), common.ErrAuthentication)
		})
	}
}

func TestEncrypt_RejectsBadKeyLength(t *testing.T) {
	_, err := Encrypt(payload{}, []byte("short"))
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = Open(make([]byte, 64), make([]byte, 16))
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestEnvelopeOverhead(t *testing.T) {
	key := mustKey(t)
	raw := []byte(`{"a":1}`)

	env, err := Seal(raw, key)
	require.NoError(t, err)
	assert.Equal(t, len(raw)+Overhead, len(env))

	out, err := Open(env, key)
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}
