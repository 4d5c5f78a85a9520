package migration

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"time"
)

// Manager orchestrates scanning, validation and execution of migrations.
type Manager struct {
	scanner  *Scanner
	executor Executor
	logger   *slog.Logger
}

// NewManager creates a Manager that applies the migrations in source to db.
func NewManager(db *sql.DB, source fs.FS, logger *slog.Logger) *Manager {
	return NewManagerWithExecutor(NewScanner(source), NewSQLiteExecutor(db), logger)
}

// NewManagerWithExecutor creates a Manager with explicit collaborators.
func NewManagerWithExecutor(scanner *Scanner, executor Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		scanner:  scanner,
		executor: executor,
		logger:   logger.With("component", "migration"),
	}
}

// Run executes all pending migrations in version order. It stops at the first
// failure; migrations applied before it stay applied.
func (m *Manager) Run(ctx context.Context) error {
	started := time.Now()

	pending, err := m.Pending(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to determine pending migrations", "error", err)
		return err
	}
	if len(pending) == 0 {
		m.logger.InfoContext(ctx, "database schema up to date")
		return nil
	}

	for i, migration := range pending {
		logger := m.logger.With(
			"version", migration.Version,
			"description", migration.Description,
			"position", fmt.Sprintf("%d/%d", i+1, len(pending)),
		)
		logger.InfoContext(ctx, "applying migration")

		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			logger.ErrorContext(ctx, "migration failed", "error", err)
			return NewMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}
	}

	m.logger.InfoContext(ctx, "migrations applied",
		"count", len(pending),
		"current_version", pending[len(pending)-1].Version,
		"duration", time.Since(started))
	return nil
}

// Pending returns the migrations that still need to be applied. It also
// verifies that the sequence has no gaps, that every applied version still has
// a file and that applied files were not edited.
func (m *Manager) Pending(ctx context.Context) ([]Migration, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}

	available, err := m.scanner.ScanMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}

	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}

	if err := validateSequence(available, applied); err != nil {
		return nil, fmt.Errorf("migration sequence validation failed: %w", err)
	}

	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	for _, a := range applied {
		appliedByVersion[versionNumber(a.Version)] = a
	}

	var pending []Migration
	for _, migration := range available {
		record, ok := appliedByVersion[versionNumber(migration.Version)]
		if !ok {
			pending = append(pending, migration)
			continue
		}
		if record.Checksum != "" && record.Checksum != migration.Checksum {
			return nil, NewMigrationError(migration.Version, migration.FilePath, "verify checksum",
				fmt.Errorf("%w: file changed after it was applied", ErrChecksumMismatch))
		}
	}
	return pending, nil
}

// Status returns status information about migrations
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	pending, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}
	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	status := &Status{
		AppliedMigrations: applied,
		PendingMigrations: pending,
	}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	return status, nil
}

// validateSequence ensures there are no gaps in migration version numbers
// and that no applied migration is missing from the available files.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	present := make(map[int]bool, len(available))
	for i, migration := range available {
		version := versionNumber(migration.Version)
		present[version] = true
		if i > 0 {
			previous := versionNumber(available[i-1].Version)
			if version != previous+1 {
				return fmt.Errorf("%w: missing migration version %03d in sequence", ErrVersionConflict, previous+1)
			}
		}
	}

	for _, a := range applied {
		if !present[versionNumber(a.Version)] {
			return fmt.Errorf("%w: applied migration %s not found in available migrations", ErrVersionConflict, a.Version)
		}
	}
	return nil
}

func sortApplied(applied []AppliedMigration) {
	sort.Slice(applied, func(i, j int) bool {
		return versionNumber(applied[i].Version) < versionNumber(applied[j].Version)
	})
}
