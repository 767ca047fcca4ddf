package common

import (
	"encoding/base64"
	"fmt"
	"regexp"
)

var (
	idPattern         = regexp.MustCompile(`^[a-f0-9]{32}$`)
	base64Pattern     = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)
	deviceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9\s\-_]+$`)
)

// IsValidID reports whether s is exactly 32 lowercase hex characters.
func IsValidID(s string) bool {
	return idPattern.MatchString(s)
}

// ValidateSyncID returns a ValidationError unless id is a well-formed sync id.
func ValidateSyncID(id string) error {
	if !IsValidID(id) {
		return NewValidationError("sync_id", "must be 32 lowercase hex characters")
	}
	return nil
}

// ValidateDeviceID returns a ValidationError unless id is a well-formed device id.
func ValidateDeviceID(id string) error {
	if !IsValidID(id) {
		return NewValidationError("device_id", "must be 32 lowercase hex characters")
	}
	return nil
}

// ValidateBlob checks that blob is non-empty standard base64 of at most
// maxSize characters. The content is never decrypted or parsed.
func ValidateBlob(blob string, maxSize int) error {
	if blob == "" {
		return NewValidationError("encrypted_blob", "must not be empty")
	}
	if maxSize > 0 && len(blob) > maxSize {
		return NewValidationError("encrypted_blob", fmt.Sprintf("exceeds %d bytes", maxSize))
	}
	if !base64Pattern.MatchString(blob) {
		return NewValidationError("encrypted_blob", "must be base64")
	}
	if _, err := base64.StdEncoding.DecodeString(blob); err != nil {
		return NewValidationError("encrypted_blob", "must be base64")
	}
	return nil
}

// ValidateDeviceName accepts an empty name or up to MaxDeviceNameLength
// letters, digits, spaces, hyphens and underscores.
func ValidateDeviceName(name string) error {
	if name == "" {
		return nil
	}
	if len(name) > MaxDeviceNameLength || !deviceNamePattern.MatchString(name) {
		return NewValidationError("device_name", "invalid format")
	}
	return nil
}

// ValidateSyncType accepts an empty value, "full" or "incremental".
func ValidateSyncType(t string) error {
	switch t {
	case "", SyncTypeFull, SyncTypeIncremental:
		return nil
	}
	return NewValidationError("sync_type", "must be full or incremental")
}
