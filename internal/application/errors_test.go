package application

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"field": "invalid"}}
	if got := withFields.Error(); got != "validation failed" {
		t.Fatalf("expected consistent message for populated error, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	if err := (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors(); !err {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}

	other := &ValidationError{FieldErrors: map[string]string{"second": "another"}}
	base.merge(other)
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestIdentityMismatchError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("update user: %w", &IdentityMismatchError{ClaimedID: 3, VerifiedID: 8})
	if !errors.Is(err, ErrIdentityMismatch) {
		t.Fatalf("expected errors.Is to match ErrIdentityMismatch")
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Fatalf("identity mismatch must not look like a plain authorization failure")
	}
	var mErr *IdentityMismatchError
	if !errors.As(err, &mErr) || mErr.ClaimedID != 3 || mErr.VerifiedID != 8 {
		t.Fatalf("expected mismatch detail, got %v", err)
	}

	if got := unauthorized("only %s", "admins"); !errors.Is(got, ErrUnauthorized) {
		t.Fatalf("expected unauthorized helper to wrap ErrUnauthorized, got %v", got)
	}
}
