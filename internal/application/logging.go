package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/festival-programs/internal/festival"
	"github.com/example/festival-programs/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	return logging.Component(ctx, base, "service", serviceName, operation, attrs...)
}

// ErrorKind maps sentinel, domain and validation errors to a stable logging label.
// The HTTP layer derives status codes from the same labels.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrIdentityMismatch):
		return "identity_mismatch"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountDisabled):
		return "account_disabled"
	case errors.Is(err, ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrSessionRevoked):
		return "session_revoked"
	case errors.Is(err, festival.ErrAlreadyMember):
		return "already_member"
	case errors.Is(err, festival.ErrConflict):
		return "conflict"
	case errors.Is(err, festival.ErrNotMember):
		return "not_member"
	case errors.Is(err, festival.ErrInvariant):
		return "invariant"
	case errors.Is(err, festival.ErrForbiddenTransition):
		return "forbidden_transition"
	case errors.Is(err, festival.ErrState):
		return "state"
	case errors.Is(err, festival.ErrValidation):
		return "validation"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}
