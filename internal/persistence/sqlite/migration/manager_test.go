package migration

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "migrate.db")))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManager_RunEmbedded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	manager := NewManager(db, Files(), quietLogger())

	if err := manager.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := manager.Run(ctx); err != nil {
		t.Fatalf("second Run should be a no-op, got %v", err)
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.CurrentVersion != "001" || len(status.PendingMigrations) != 0 {
		t.Fatalf("unexpected status %+v", status)
	}

	for _, table := range []string{"users", "programs", "program_members", "screenings", "revoked_tokens", "audit_log"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Fatalf("expected table %s: %v", table, err)
		}
	}
}

func TestManager_AppliesIncrementally(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	files := fstest.MapFS{
		"001_init.sql": {Data: []byte("CREATE TABLE a (id INTEGER PRIMARY KEY);")},
	}
	if err := NewManager(db, files, quietLogger()).Run(ctx); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	files["002_more.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE b (id INTEGER PRIMARY KEY);")}
	manager := NewManager(db, files, quietLogger())
	pending, err := manager.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Version != "002" {
		t.Fatalf("expected only 002 pending, got %+v", pending)
	}
	if err := manager.Run(ctx); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
}

func TestManager_Failures(t *testing.T) {
	t.Parallel()

	t.Run("failed migration is rolled back", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		db := openTestDB(t)
		files := fstest.MapFS{
			"001_init.sql":   {Data: []byte("CREATE TABLE a (id INTEGER PRIMARY KEY);")},
			"002_broken.sql": {Data: []byte("CREATE TABLE b (id INTEGER PRIMARY KEY); INSERT INTO missing VALUES (1);")},
		}
		err := NewManager(db, files, quietLogger()).Run(ctx)
		if !errors.Is(err, ErrMigrationFailed) {
			t.Fatalf("expected ErrMigrationFailed, got %v", err)
		}
		var count int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE name = 'b'").Scan(&count); err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if count != 0 {
			t.Fatalf("expected table b to be rolled back")
		}
		applied, err := NewSQLiteExecutor(db).AppliedMigrations(ctx)
		if err != nil || len(applied) != 1 {
			t.Fatalf("expected only 001 recorded, got %+v err=%v", applied, err)
		}
	})

	t.Run("gap in sequence", func(t *testing.T) {
		t.Parallel()
		files := fstest.MapFS{
			"001_init.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")},
			"003_skip.sql": {Data: []byte("CREATE TABLE c (id INTEGER);")},
		}
		err := NewManager(openTestDB(t), files, quietLogger()).Run(context.Background())
		if !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
	})

	t.Run("edited migration", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		db := openTestDB(t)
		files := fstest.MapFS{"001_init.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")}}
		if err := NewManager(db, files, quietLogger()).Run(ctx); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		files["001_init.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE a (id INTEGER, extra TEXT);")}
		if err := NewManager(db, files, quietLogger()).Run(ctx); !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("expected ErrChecksumMismatch, got %v", err)
		}
	})

	t.Run("applied version without file", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		db := openTestDB(t)
		files := fstest.MapFS{
			"001_init.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")},
			"002_next.sql": {Data: []byte("CREATE TABLE b (id INTEGER);")},
		}
		if err := NewManager(db, files, quietLogger()).Run(ctx); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		delete(files, "002_next.sql")
		if _, err := NewManager(db, files, quietLogger()).Pending(ctx); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
	})
}

func TestSQLiteConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := DefaultSQLiteConfig("data/festival.db")
	if err := valid.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}

	cases := map[string]func(*SQLiteConfig){
		"empty dsn":      func(c *SQLiteConfig) { c.DSN = " " },
		"query in dsn":   func(c *SQLiteConfig) { c.DSN = "x.db?_pragma=foo" },
		"journal mode":   func(c *SQLiteConfig) { c.JournalMode = "FAST" },
		"synchronous":    func(c *SQLiteConfig) { c.Synchronous = "SOMETIMES" },
		"negative conns": func(c *SQLiteConfig) { c.MaxOpenConns = -1 },
	}
	for name, mutate := range cases {
		cfg := valid
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
