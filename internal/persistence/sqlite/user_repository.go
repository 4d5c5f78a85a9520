package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/festival-programs/internal/persistence"
)

const userColumns = `id, username, full_name, password_hash, role, active, failed_attempts,
	current_token_id, last_login_at, created_at, updated_at`

// UserRepository implements persistence.UserRepository using SQLite
type UserRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewUserRepository creates a new SQLite user repository
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateUser inserts a new user and returns it with the assigned id.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) (persistence.User, error) {
	if user.ID != 0 || strings.TrimSpace(user.Username) == "" || user.PasswordHash == "" {
		return persistence.User{}, persistence.ErrConstraintViolation
	}

	const query = `
		INSERT INTO users (username, full_name, password_hash, role, active, failed_attempts,
			current_token_id, last_login_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.helper.Exec(ctx, query,
		strings.TrimSpace(user.Username),
		user.FullName,
		user.PasswordHash,
		user.Role,
		user.Active,
		user.FailedAttempts,
		user.CurrentTokenID,
		formatTimePtr(user.LastLoginAt),
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return persistence.User{}, fmt.Errorf("failed to read user id: %w", err)
	}
	user.ID = id
	return user, nil
}

// UpdateUser overwrites every mutable column of an existing user.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) (persistence.User, error) {
	if user.ID <= 0 {
		return persistence.User{}, persistence.ErrNotFound
	}
	if user.PasswordHash == "" {
		return persistence.User{}, persistence.ErrConstraintViolation
	}

	const query = `
		UPDATE users
		SET username = ?, full_name = ?, password_hash = ?, role = ?, active = ?, failed_attempts = ?,
			current_token_id = ?, last_login_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.helper.Exec(ctx, query,
		strings.TrimSpace(user.Username),
		user.FullName,
		user.PasswordHash,
		user.Role,
		user.Active,
		user.FailedAttempts,
		user.CurrentTokenID,
		formatTimePtr(user.LastLoginAt),
		formatTime(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}
	if err := requireAffected(result); err != nil {
		return persistence.User{}, err
	}
	return r.GetUser(ctx, user.ID)
}

// GetUser retrieves a user by ID from the database
func (r *UserRepository) GetUser(ctx context.Context, id int64) (persistence.User, error) {
	if id <= 0 {
		return persistence.User{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return r.scanUser(row)
}

// GetUserByUsername looks a user up case-insensitively.
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (persistence.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return r.scanUser(row)
}

// UsernameExists reports whether another account already uses username.
func (r *UserRepository) UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error) {
	var exists int
	err := r.helper.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = ? AND id <> ?)`,
		strings.TrimSpace(username), excludeID,
	).Scan(&exists)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	return exists == 1, nil
}

// ListUsers returns all users ordered by username.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := r.helper.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username ASC, id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return users, nil
}

// DeleteUser removes a user. Accounts that created programs or submitted
// screenings are kept and ErrForeignKeyViolation is returned; memberships are
// removed and handler assignments cleared by the schema.
func (r *UserRepository) DeleteUser(ctx context.Context, id int64) error {
	if id <= 0 {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var owned int
		err := tx.QueryRowContext(ctx, `
			SELECT (SELECT COUNT(*) FROM programs WHERE creator_id = ?)
			     + (SELECT COUNT(*) FROM screenings WHERE submitter_id = ?)
		`, id, id).Scan(&owned)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if owned > 0 {
			return persistence.ErrForeignKeyViolation
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return requireAffected(result)
	})
}

func (r *UserRepository) scanUser(row rowScanner) (persistence.User, error) {
	var (
		user                     persistence.User
		lastLogin                sql.NullString
		createdAtStr, updatedStr string
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.FullName,
		&user.PasswordHash,
		&user.Role,
		&user.Active,
		&user.FailedAttempts,
		&user.CurrentTokenID,
		&lastLogin,
		&createdAtStr,
		&updatedStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.User{}, persistence.ErrNotFound
		}
		return persistence.User{}, r.mapper.MapError(err)
	}

	if user.LastLoginAt, err = parseTimePtr("last_login_at", lastLogin); err != nil {
		return persistence.User{}, err
	}
	if user.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime("updated_at", updatedStr); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
