package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/festival-programs/internal/persistence"
	"github.com/example/festival-programs/internal/persistence/sqlite"
	"github.com/example/festival-programs/internal/persistence/sqlite/migration"
)

// SQLiteHarness provides repository access backed by a temporary SQLite storage
// instance for integration-style persistence tests.
type SQLiteHarness struct {
	Users         persistence.UserRepository
	Programs      persistence.ProgramRepository
	Screenings    persistence.ScreeningRepository
	RevokedTokens persistence.RevokedTokenRepository
	Audit         persistence.AuditRepository

	Storage *sqlite.Storage

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "festival.db")

	storage, err := sqlite.OpenWithConfig(migration.TempFileTestSQLiteConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Users:         storage.Users,
		Programs:      storage.Programs,
		Screenings:    storage.Screenings,
		RevokedTokens: storage.RevokedTokens,
		Audit:         storage.Audit,
		Storage:       storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedUser inserts the fixture and returns the stored user.
func (h *SQLiteHarness) SeedUser(tb testing.TB, fixture UserFixture) persistence.User {
	tb.Helper()
	user, err := h.Users.CreateUser(context.Background(), fixture.Persistence())
	if err != nil {
		tb.Fatalf("failed to seed user %s: %v", fixture.Username, err)
	}
	return user
}

// SeedProgram inserts the fixture and returns the stored program.
func (h *SQLiteHarness) SeedProgram(tb testing.TB, fixture ProgramFixture) persistence.Program {
	tb.Helper()
	program, err := h.Programs.CreateProgram(context.Background(), fixture.Persistence())
	if err != nil {
		tb.Fatalf("failed to seed program %s: %v", fixture.Name, err)
	}
	return program
}

// SeedScreening inserts the fixture and returns the stored screening.
func (h *SQLiteHarness) SeedScreening(tb testing.TB, fixture ScreeningFixture) persistence.Screening {
	tb.Helper()
	screening, err := h.Screenings.CreateScreening(context.Background(), fixture.Persistence())
	if err != nil {
		tb.Fatalf("failed to seed screening %s: %v", fixture.Title, err)
	}
	return screening
}
