package token

import (
	"context"
	"log/slog"
	"time"
)

// Purger is implemented by blacklists that need expired entries removed
// explicitly.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// RunPurger calls p.Purge every interval until ctx is cancelled.
func RunPurger(ctx context.Context, p Purger, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "token_purger")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := p.Purge(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "failed to purge revoked tokens", "error", err)
				continue
			}
			if removed > 0 {
				logger.InfoContext(ctx, "purged revoked tokens", "removed", removed)
			}
		}
	}
}
