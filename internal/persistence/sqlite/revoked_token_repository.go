package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/example/festival-programs/internal/persistence"
)

// RevokedTokenRepository implements persistence.RevokedTokenRepository using
// SQLite. Writes go through the retry helper since logout races with
// concurrent session writes on the same database file.
type RevokedTokenRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewRevokedTokenRepository creates a new SQLite token blacklist repository
func NewRevokedTokenRepository(pool *ConnectionPool) *RevokedTokenRepository {
	return &RevokedTokenRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// RevokeToken stores the token digest. Revoking the same token twice keeps
// the latest expiry.
func (r *RevokedTokenRepository) RevokeToken(ctx context.Context, token persistence.RevokedToken) error {
	if strings.TrimSpace(token.TokenHash) == "" {
		return persistence.ErrConstraintViolation
	}

	const query = `
		INSERT INTO revoked_tokens (token_hash, expires_at, revoked_at)
		VALUES (?, ?, ?)
		ON CONFLICT (token_hash) DO UPDATE SET expires_at = excluded.expires_at, revoked_at = excluded.revoked_at
	`
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, query,
			token.TokenHash,
			formatTime(token.ExpiresAt),
			formatTime(token.RevokedAt),
		)
		return r.mapper.MapError(err)
	})
}

// IsTokenRevoked reports whether the digest is blacklisted and its entry has
// not expired at reference.
func (r *RevokedTokenRepository) IsTokenRevoked(ctx context.Context, tokenHash string, reference time.Time) (bool, error) {
	if strings.TrimSpace(tokenHash) == "" {
		return false, nil
	}
	var exists int
	err := r.helper.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_hash = ? AND expires_at > ?)`,
		tokenHash, formatTime(reference),
	).Scan(&exists)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	return exists == 1, nil
}

// DeleteExpiredTokens purges entries whose token can no longer validate.
func (r *RevokedTokenRepository) DeleteExpiredTokens(ctx context.Context, reference time.Time) (int64, error) {
	var removed int64
	err := r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= ?`, formatTime(reference))
		if err != nil {
			return r.mapper.MapError(err)
		}
		removed, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
