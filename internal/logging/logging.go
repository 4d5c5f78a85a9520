package logging

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// ContextWithLogger returns a derived context that carries the provided logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts a logger previously attached to the context.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(contextKey{}).(*slog.Logger)
	return logger
}

// Or returns the request logger from ctx, then fallback, then slog.Default.
func Or(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger := FromContext(ctx); logger != nil {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}

// WithPrincipal tags the request logger with the acting user. Anonymous
// callers (id 0) are tagged as such so festival reads without a session can
// be told apart in the logs. A context without a logger is returned as is.
func WithPrincipal(ctx context.Context, userID int64, role string) context.Context {
	logger := FromContext(ctx)
	if logger == nil {
		return ctx
	}
	if userID <= 0 {
		return ContextWithLogger(ctx, logger.With("principal", "anonymous"))
	}
	return ContextWithLogger(ctx, logger.With("principal_id", userID, "principal_role", role))
}

// Component derives the logger for one layer of the service. kind names the
// layer ("service", "handler") and name the component within it.
func Component(ctx context.Context, fallback *slog.Logger, kind, name, operation string, attrs ...any) *slog.Logger {
	pairs := make([]any, 0, 4+len(attrs))
	pairs = append(pairs, kind, name)
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	pairs = append(pairs, attrs...)
	return Or(ctx, fallback).With(pairs...)
}
