package application

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist or is hidden from the caller.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute such as a username or program name is taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned for unknown users, wrong passwords and malformed tokens.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when an inactive account tries to authenticate.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrAccountLocked is returned once the failed attempt threshold is reached.
	ErrAccountLocked = errors.New("application: account locked")
	// ErrSessionExpired is returned for tokens past their expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned for blacklisted tokens and tokens replaced by a newer login.
	ErrSessionRevoked = errors.New("application: session revoked")
	// ErrIdentityMismatch is returned when a request claims a different user than its token.
	ErrIdentityMismatch = errors.New("application: identity mismatch")
)

// IdentityMismatchError records the two accounts involved in a mismatch. Both
// have been deactivated by the time it is returned.
type IdentityMismatchError struct {
	ClaimedID  int64
	VerifiedID int64
}

func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf("application: identity mismatch: claimed user %d, token user %d", e.ClaimedID, e.VerifiedID)
}

func (e *IdentityMismatchError) Is(target error) bool {
	return target == ErrIdentityMismatch
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// unauthorized wraps ErrUnauthorized with the rule that rejected the caller.
func unauthorized(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}
