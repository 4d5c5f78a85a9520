package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/festival-programs/internal/persistence"
)

// AuditRepository implements persistence.AuditRepository using SQLite.
// Rows are only ever appended.
type AuditRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewAuditRepository creates a new SQLite audit repository
func NewAuditRepository(pool *ConnectionPool) *AuditRepository {
	return &AuditRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// AppendAudit stores record and returns it with its assigned ID.
func (r *AuditRepository) AppendAudit(ctx context.Context, record persistence.AuditRecord) (persistence.AuditRecord, error) {
	if strings.TrimSpace(record.Action) == "" {
		return persistence.AuditRecord{}, persistence.ErrConstraintViolation
	}

	const query = `INSERT INTO audit_log (actor_id, action, target, created_at) VALUES (?, ?, ?, ?)`
	err := r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, query,
			record.ActorID,
			record.Action,
			record.Target,
			formatTime(record.CreatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if record.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read audit id: %w", err)
		}
		return nil
	})
	if err != nil {
		return persistence.AuditRecord{}, err
	}
	record.CreatedAt = record.CreatedAt.UTC()
	return record, nil
}

// ListAudit returns at most limit records, newest first. A non-positive
// limit returns everything.
func (r *AuditRepository) ListAudit(ctx context.Context, limit int) ([]persistence.AuditRecord, error) {
	query := `SELECT id, actor_id, action, target, created_at FROM audit_log ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var records []persistence.AuditRecord
	for rows.Next() {
		var (
			record    persistence.AuditRecord
			createdAt string
		)
		if err := rows.Scan(&record.ID, &record.ActorID, &record.Action, &record.Target, &createdAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if record.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return records, nil
}
