package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// AuditRepository persists the append-only audit log.
type AuditRepository interface {
	AppendAudit(ctx context.Context, entry AuditEntry) (AuditEntry, error)
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}

// AuditService records security relevant actions. Recording is best effort:
// failures are logged and never fail the calling operation.
type AuditService struct {
	entries AuditRepository
	now     func() time.Time
	logger  *slog.Logger
}

// NewAuditService constructs an AuditService with the provided dependencies.
func NewAuditService(entries AuditRepository, now func() time.Time) *AuditService {
	return NewAuditServiceWithLogger(entries, now, nil)
}

// NewAuditServiceWithLogger constructs an AuditService with a specified logger.
func NewAuditServiceWithLogger(entries AuditRepository, now func() time.Time, logger *slog.Logger) *AuditService {
	if now == nil {
		now = time.Now
	}
	return &AuditService{entries: entries, now: now, logger: defaultLogger(logger)}
}

func (s *AuditService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuditService", operation, attrs...)
}

// Record appends an entry. A nil service or repository makes it a no-op.
func (s *AuditService) Record(ctx context.Context, actorID int64, action, target string) {
	if s == nil || s.entries == nil {
		return
	}
	entry := AuditEntry{ActorID: actorID, Action: action, Target: target, CreatedAt: s.now()}
	if _, err := s.entries.AppendAudit(ctx, entry); err != nil {
		s.loggerWith(ctx, "Record", "action", action, "target", target).
			ErrorContext(ctx, "failed to record audit entry", "error", err, "error_kind", ErrorKind(err))
	}
}

// ListRecent returns the newest entries first. Administrators only.
func (s *AuditService) ListRecent(ctx context.Context, principal Principal, limit int) (entries []AuditEntry, err error) {
	if s == nil {
		err = fmt.Errorf("AuditService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListRecent", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list audit entries", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	if s.entries == nil {
		return nil, nil
	}

	_, limit = clampPage(0, limit)
	entries, err = s.entries.ListAudit(ctx, limit)
	return
}

func programTarget(id int64) string   { return fmt.Sprintf("program:%d", id) }
func screeningTarget(id int64) string { return fmt.Sprintf("screening:%d", id) }
func userTarget(id int64) string      { return fmt.Sprintf("user:%d", id) }
