package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/festival-programs/internal/application"
	"github.com/example/festival-programs/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	return logging.Component(ctx, fallback, "handler", handlerName, operation, attrs...)
}

// requestLogger tags base with the chi request id and the request line.
func requestLogger(base *slog.Logger, r *http.Request) *slog.Logger {
	return base.With(
		"request_id", middleware.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)
}

// withPrincipal attaches an authenticated principal to ctx and tags the
// request logger with it. Anonymous requests carry no principal, so
// PrincipalFromContext reports false for them.
func withPrincipal(ctx context.Context, principal application.Principal) context.Context {
	if !principal.Authenticated() {
		return logging.WithPrincipal(ctx, 0, "")
	}
	ctx = ContextWithPrincipal(ctx, principal)
	return logging.WithPrincipal(ctx, principal.UserID, principal.Role.String())
}
