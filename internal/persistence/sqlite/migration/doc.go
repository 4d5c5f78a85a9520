// Package migration applies versioned SQL migrations to a SQLite database.
//
// Migrations are read from an fs.FS, normally the files embedded under sql/,
// and must be named {version}_{description}.sql (for example
// "001_init.sql"). Applied versions and their checksums are tracked in the
// schema_migrations table; each migration runs in its own transaction
// together with its bookkeeping row.
//
// Example usage:
//
//	manager := migration.NewManager(db, migration.Files(), logger)
//	if err := manager.Run(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
