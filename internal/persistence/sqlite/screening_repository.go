package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/festival-programs/internal/persistence"
)

const screeningColumns = `id, program_id, submitter_id, handler_id, title, genre, description, room, scheduled_at,
	state, score, comments, rejection_reason, created_at, submitted_at, reviewed_at, finalized_at, updated_at`

// ScreeningRepository implements persistence.ScreeningRepository using SQLite
type ScreeningRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewScreeningRepository creates a new SQLite screening repository
func NewScreeningRepository(pool *ConnectionPool) *ScreeningRepository {
	return &ScreeningRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateScreening inserts a screening and returns it with its assigned ID.
// A missing program or submitter surfaces as ErrConstraintViolation.
func (r *ScreeningRepository) CreateScreening(ctx context.Context, screening persistence.Screening) (persistence.Screening, error) {
	if screening.ID != 0 || screening.ProgramID <= 0 || screening.SubmitterID <= 0 {
		return persistence.Screening{}, persistence.ErrConstraintViolation
	}

	const query = `
		INSERT INTO screenings (program_id, submitter_id, handler_id, title, genre, description, room, scheduled_at,
			state, score, comments, rejection_reason, created_at, submitted_at, reviewed_at, finalized_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.helper.Exec(ctx, query,
		screening.ProgramID,
		screening.SubmitterID,
		nullInt64(screening.HandlerID),
		screening.Title,
		screening.Genre,
		screening.Description,
		screening.Room,
		formatTimePtr(screening.ScheduledAt),
		screening.State,
		nullInt(screening.Score),
		screening.Comments,
		screening.RejectionReason,
		formatTime(screening.CreatedAt),
		formatTimePtr(screening.SubmittedAt),
		formatTimePtr(screening.ReviewedAt),
		formatTimePtr(screening.FinalizedAt),
		formatTime(screening.UpdatedAt),
	)
	if err != nil {
		return persistence.Screening{}, r.mapper.MapError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return persistence.Screening{}, fmt.Errorf("failed to read screening id: %w", err)
	}
	return r.GetScreening(ctx, id)
}

// UpdateScreening overwrites every mutable column of an existing screening.
func (r *ScreeningRepository) UpdateScreening(ctx context.Context, screening persistence.Screening) (persistence.Screening, error) {
	if screening.ID <= 0 {
		return persistence.Screening{}, persistence.ErrNotFound
	}

	const query = `
		UPDATE screenings
		SET handler_id = ?, title = ?, genre = ?, description = ?, room = ?, scheduled_at = ?, state = ?,
			score = ?, comments = ?, rejection_reason = ?, submitted_at = ?, reviewed_at = ?, finalized_at = ?,
			updated_at = ?
		WHERE id = ?
	`
	result, err := r.helper.Exec(ctx, query,
		nullInt64(screening.HandlerID),
		screening.Title,
		screening.Genre,
		screening.Description,
		screening.Room,
		formatTimePtr(screening.ScheduledAt),
		screening.State,
		nullInt(screening.Score),
		screening.Comments,
		screening.RejectionReason,
		formatTimePtr(screening.SubmittedAt),
		formatTimePtr(screening.ReviewedAt),
		formatTimePtr(screening.FinalizedAt),
		formatTime(screening.UpdatedAt),
		screening.ID,
	)
	if err != nil {
		return persistence.Screening{}, r.mapper.MapError(err)
	}
	if err := requireAffected(result); err != nil {
		return persistence.Screening{}, err
	}
	return r.GetScreening(ctx, screening.ID)
}

// GetScreening retrieves a screening by ID
func (r *ScreeningRepository) GetScreening(ctx context.Context, id int64) (persistence.Screening, error) {
	if id <= 0 {
		return persistence.Screening{}, persistence.ErrNotFound
	}
	return r.scanScreening(r.helper.QueryRow(ctx, `SELECT `+screeningColumns+` FROM screenings WHERE id = ?`, id))
}

// ListScreenings returns screenings matching filter ordered by id. A
// positive Limit pages the result.
func (r *ScreeningRepository) ListScreenings(ctx context.Context, filter persistence.ScreeningFilter) ([]persistence.Screening, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.ProgramID > 0 {
		clauses = append(clauses, `program_id = ?`)
		args = append(args, filter.ProgramID)
	}
	if filter.SubmitterID > 0 {
		clauses = append(clauses, `submitter_id = ?`)
		args = append(args, filter.SubmitterID)
	}
	if filter.HandlerID > 0 {
		clauses = append(clauses, `handler_id = ?`)
		args = append(args, filter.HandlerID)
	}
	if filter.State != "" {
		clauses = append(clauses, `state = ?`)
		args = append(args, filter.State)
	}

	query := `SELECT ` + screeningColumns + ` FROM screenings`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, max(filter.Offset, 0))
	}

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var screenings []persistence.Screening
	for rows.Next() {
		screening, err := r.scanScreening(rows)
		if err != nil {
			return nil, err
		}
		screenings = append(screenings, screening)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return screenings, nil
}

// HasSubmissions reports whether userID submitted any screening to programID.
func (r *ScreeningRepository) HasSubmissions(ctx context.Context, programID, userID int64) (bool, error) {
	var exists int
	err := r.helper.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM screenings WHERE program_id = ? AND submitter_id = ?)`,
		programID, userID,
	).Scan(&exists)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	return exists == 1, nil
}

// DeleteScreening removes a screening by ID
func (r *ScreeningRepository) DeleteScreening(ctx context.Context, id int64) error {
	if id <= 0 {
		return persistence.ErrNotFound
	}
	result, err := r.helper.Exec(ctx, `DELETE FROM screenings WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

func (r *ScreeningRepository) scanScreening(row rowScanner) (persistence.Screening, error) {
	var (
		screening                            persistence.Screening
		handlerID, score                     sql.NullInt64
		scheduledAt                          sql.NullString
		submittedAt, reviewedAt, finalizedAt sql.NullString
		createdAtStr, updatedAtStr           string
	)
	err := row.Scan(
		&screening.ID,
		&screening.ProgramID,
		&screening.SubmitterID,
		&handlerID,
		&screening.Title,
		&screening.Genre,
		&screening.Description,
		&screening.Room,
		&scheduledAt,
		&screening.State,
		&score,
		&screening.Comments,
		&screening.RejectionReason,
		&createdAtStr,
		&submittedAt,
		&reviewedAt,
		&finalizedAt,
		&updatedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Screening{}, persistence.ErrNotFound
		}
		return persistence.Screening{}, r.mapper.MapError(err)
	}

	if handlerID.Valid {
		id := handlerID.Int64
		screening.HandlerID = &id
	}
	if score.Valid {
		value := int(score.Int64)
		screening.Score = &value
	}
	if screening.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
		return persistence.Screening{}, err
	}
	if screening.UpdatedAt, err = parseTime("updated_at", updatedAtStr); err != nil {
		return persistence.Screening{}, err
	}
	if screening.ScheduledAt, err = parseTimePtr("scheduled_at", scheduledAt); err != nil {
		return persistence.Screening{}, err
	}
	if screening.SubmittedAt, err = parseTimePtr("submitted_at", submittedAt); err != nil {
		return persistence.Screening{}, err
	}
	if screening.ReviewedAt, err = parseTimePtr("reviewed_at", reviewedAt); err != nil {
		return persistence.Screening{}, err
	}
	if screening.FinalizedAt, err = parseTimePtr("finalized_at", finalizedAt); err != nil {
		return persistence.Screening{}, err
	}
	return screening, nil
}

func nullInt64(value *int64) sql.NullInt64 {
	if value == nil || *value == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}

func nullInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}
