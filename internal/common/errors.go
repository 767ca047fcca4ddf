// Package common defines shared constants, validation helpers and sentinel
// errors used across client and server layers. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed identifiers or payloads (HTTP 400).
	ErrValidation = errors.New("validation error")

	// ErrConflict is returned when creating a sync group whose id already exists (HTTP 409).
	ErrConflict = errors.New("already exists")

	// ErrNotFound is returned for unknown ids and, at the store layer, for shares
	// that can no longer be read (HTTP 404).
	ErrNotFound = errors.New("not found")

	// ErrForbidden marks a share denied by access policy (HTTP 403).
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited is returned when the caller exhausted its request budget (HTTP 429).
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrAuthentication is returned when an envelope fails to decrypt: wrong key,
	// tampered or truncated data. The causes are deliberately indistinguishable.
	ErrAuthentication = errors.New("authentication failed")

	// ErrUnauthorized is returned for missing or invalid admin credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidToken marks a token that failed signature or claim checks.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired marks a token past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

var (
	// ErrShareExpired is an ErrForbidden raised when the share passed its expiry.
	ErrShareExpired = fmt.Errorf("%w: share has expired", ErrForbidden)

	// ErrShareExhausted is an ErrForbidden raised when the view budget is used up.
	ErrShareExhausted = fmt.Errorf("%w: share view limit reached", ErrForbidden)
)

// ValidationError describes which field failed validation. It matches
// ErrValidation with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
