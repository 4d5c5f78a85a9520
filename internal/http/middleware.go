package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/festival-programs/internal/application"
)

// TokenValidator resolves a bearer token to the principal it was issued for.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (application.Principal, error)
}

// RequireToken rejects requests without a valid session token and attaches
// the resolved principal to the request context.
func RequireToken(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return tokenMiddleware(validator, logger, true)
}

// OptionalToken serves public reads. A request without a token continues
// as anonymous with the zero principal. A presented token must still be
// valid: expired, revoked or forged tokens get the same error response as
// under RequireToken.
func OptionalToken(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return tokenMiddleware(validator, logger, false)
}

func tokenMiddleware(validator TokenValidator, logger *slog.Logger, required bool) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractTokenFromRequest(r)
			if token == "" {
				if !required {
					next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), application.Principal{})))
					return
				}
				responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
					ErrorCode: "INVALID_CREDENTIALS",
					Message:   errMissingToken.Error(),
				})
				return
			}

			principal, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				responder.loggerFor(r.Context()).WarnContext(r.Context(), "token rejected", "error", err, "error_kind", application.ErrorKind(err))
				responder.handleServiceError(r.Context(), w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
		})
	}
}

// RequestLogger attaches a request scoped logger and logs completion with
// the response status. It reads the id set by chi's RequestID middleware.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	base = defaultLogger(base)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := requestLogger(base, r)

			ctx := ContextWithLogger(r.Context(), logger)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(ww, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed",
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
