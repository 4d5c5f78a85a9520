package migration

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func TestScanner_ScanMigrations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		files         fstest.MapFS
		expectedOrder []string
		expectErr     error
		errorContains string
	}{
		{
			name: "sorts by numeric version",
			files: fstest.MapFS{
				"010_indexes.sql": {Data: []byte("CREATE INDEX idx ON t (a);")},
				"002_more.sql":    {Data: []byte("CREATE TABLE u (id INTEGER);")},
				"001_init.sql":    {Data: []byte("CREATE TABLE t (id INTEGER);")},
			},
			expectedOrder: []string{"001", "002", "010"},
		},
		{
			name: "ignores other files and directories",
			files: fstest.MapFS{
				"001_init.sql":     {Data: []byte("CREATE TABLE t (id INTEGER);")},
				"README.md":        {Data: []byte("# notes")},
				"old/002_x.sql":    {Data: []byte("CREATE TABLE x (id INTEGER);")},
				"config.json":      {Data: []byte(`{"v": 1}`)},
				"002_add_more.sql": {Data: []byte("CREATE TABLE u (id INTEGER);")},
			},
			expectedOrder: []string{"001", "002"},
		},
		{
			name:          "empty source",
			files:         fstest.MapFS{},
			expectedOrder: nil,
		},
		{
			name: "invalid filename",
			files: fstest.MapFS{
				"invalid_name.sql": {Data: []byte("CREATE TABLE t (id INTEGER);")},
			},
			expectErr:     ErrInvalidMigrationFile,
			errorContains: "does not match pattern",
		},
		{
			name: "duplicate version",
			files: fstest.MapFS{
				"001_init.sql":  {Data: []byte("CREATE TABLE t (id INTEGER);")},
				"0001_copy.sql": {Data: []byte("CREATE TABLE u (id INTEGER);")},
			},
			expectErr: ErrDuplicateVersion,
		},
		{
			name: "empty file",
			files: fstest.MapFS{
				"001_init.sql": {Data: []byte("   \n")},
			},
			expectErr: ErrInvalidMigrationFile,
		},
		{
			name: "unbalanced parentheses",
			files: fstest.MapFS{
				"001_init.sql": {Data: []byte("CREATE TABLE t (id INTEGER;")},
			},
			expectErr:     ErrInvalidMigrationFile,
			errorContains: "parenthesis",
		},
		{
			name: "unterminated string",
			files: fstest.MapFS{
				"001_init.sql": {Data: []byte("INSERT INTO t VALUES ('open);")},
			},
			expectErr:     ErrInvalidMigrationFile,
			errorContains: "unterminated",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			migrations, err := NewScanner(tc.files).ScanMigrations()
			if tc.expectErr != nil {
				if !errors.Is(err, tc.expectErr) {
					t.Fatalf("expected %v, got %v", tc.expectErr, err)
				}
				if tc.errorContains != "" && !strings.Contains(err.Error(), tc.errorContains) {
					t.Fatalf("expected error containing %q, got %v", tc.errorContains, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ScanMigrations returned error: %v", err)
			}
			if len(migrations) != len(tc.expectedOrder) {
				t.Fatalf("expected %d migrations, got %d", len(tc.expectedOrder), len(migrations))
			}
			for i, version := range tc.expectedOrder {
				if migrations[i].Version != version {
					t.Fatalf("position %d: expected version %s, got %s", i, version, migrations[i].Version)
				}
				if migrations[i].Checksum == "" {
					t.Fatalf("expected checksum for %s", version)
				}
			}
		})
	}
}

func TestScanner_Description(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{
		"001_create_things.sql": {Data: []byte("-- Migration: 001\n-- Description: first tables\nCREATE TABLE t (id INTEGER);")},
		"002_add_index.sql":     {Data: []byte("CREATE INDEX idx ON t (id);")},
	}
	migrations, err := NewScanner(files).ScanMigrations()
	if err != nil {
		t.Fatalf("ScanMigrations returned error: %v", err)
	}
	if migrations[0].Description != "first tables" {
		t.Fatalf("expected description from header, got %q", migrations[0].Description)
	}
	if migrations[1].Description != "add index" {
		t.Fatalf("expected description from filename, got %q", migrations[1].Description)
	}
}

func TestEmbeddedMigrationsParse(t *testing.T) {
	t.Parallel()

	migrations, err := NewScanner(Files()).ScanMigrations()
	if err != nil {
		t.Fatalf("embedded migrations do not parse: %v", err)
	}
	if len(migrations) == 0 || migrations[0].Version != "001" {
		t.Fatalf("expected embedded migrations starting at 001, got %+v", migrations)
	}
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	sql := "-- header only\nCREATE TABLE a (id INTEGER);\n\n-- comment\nCREATE TABLE b (id INTEGER);\n;"
	statements := splitStatements(sql)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
	if strings.Contains(statements[1], "--") {
		t.Fatalf("expected comments to be stripped, got %q", statements[1])
	}
}
