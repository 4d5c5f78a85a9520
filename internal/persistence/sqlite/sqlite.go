package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/festival-programs/internal/persistence/sqlite/migration"
)

// Storage bundles the SQLite repositories over one connection pool.
type Storage struct {
	Users         *UserRepository
	Programs      *ProgramRepository
	Screenings    *ScreeningRepository
	RevokedTokens *RevokedTokenRepository
	Audit         *AuditRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

// Open opens the database file at dsn with the production defaults.
func Open(dsn string) (*Storage, error) {
	return OpenWithConfig(migration.DefaultSQLiteConfig(dsn), nil)
}

// OpenWithConfig opens a storage using config. A nil logger falls back to
// slog.Default.
func OpenWithConfig(config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return &Storage{
		Users:         NewUserRepository(pool),
		Programs:      NewProgramRepository(pool),
		Screenings:    NewScreeningRepository(pool),
		RevokedTokens: NewRevokedTokenRepository(pool),
		Audit:         NewAuditRepository(pool),
		pool:          pool,
		logger:        logger,
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("sqlite: storage is not open")
	}
	return migration.NewManager(s.pool.DB(), migration.Files(), s.logger).Run(ctx)
}

// WithinTransaction runs fn as one unit of work across every repository of
// the storage.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("sqlite: storage is not open")
	}
	return s.pool.InTransaction(ctx, fn)
}

// Ping checks that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("sqlite: storage is not open")
	}
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}
