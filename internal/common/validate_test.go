package common

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSyncID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		ok   bool
	}{
		{"valid", strings.Repeat("a", 32), true},
		{"valid mixed digits", "0123456789abcdef0123456789abcdef", true},
		{"31 chars", strings.Repeat("a", 31), false},
		{"33 chars", strings.Repeat("a", 33), false},
		{"uppercase", strings.Repeat("A", 32), false},
		{"non hex", strings.Repeat("g", 32), false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSyncID(tt.id)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "sync_id", ve.Field)
		})
	}
}

func TestValidateBlob(t *testing.T) {
	good := base64.StdEncoding.EncodeToString([]byte("ciphertext bytes"))

	assert.NoError(t, ValidateBlob(good, 1024))
	assert.ErrorIs(t, ValidateBlob("", 1024), ErrValidation)
	assert.ErrorIs(t, ValidateBlob("not-valid-base64!@#$", 1024), ErrValidation)
	assert.ErrorIs(t, ValidateBlob("abc", 1024), ErrValidation, "unpadded length")
	assert.ErrorIs(t, ValidateBlob(good, 4), ErrValidation, "oversized")
	assert.NoError(t, ValidateBlob(good, 0), "zero disables the size check")
}

func TestValidateDeviceName(t *testing.T) {
	assert.NoError(t, ValidateDeviceName(""))
	assert.NoError(t, ValidateDeviceName("Test Device JS"))
	assert.NoError(t, ValidateDeviceName("pixel_7-pro"))
	assert.ErrorIs(t, ValidateDeviceName("<script>"), ErrValidation)
	assert.ErrorIs(t, ValidateDeviceName(strings.Repeat("x", MaxDeviceNameLength+1)), ErrValidation)
}

func TestValidateSyncType(t *testing.T) {
	assert.NoError(t, ValidateSyncType(""))
	assert.NoError(t, ValidateSyncType(SyncTypeFull))
	assert.NoError(t, ValidateSyncType(SyncTypeIncremental))
	assert.ErrorIs(t, ValidateSyncType("delta"), ErrValidation)
}

func TestShareErrorsWrapForbidden(t *testing.T) {
	assert.ErrorIs(t, ErrShareExpired, ErrForbidden)
	assert.ErrorIs(t, ErrShareExhausted, ErrForbidden)
	assert.NotErrorIs(t, ErrShareExpired, ErrShareExhausted)
}
