package sqlitemigrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := sqlDB.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
	})
	return sqlDB
}

func TestApplyMigrationsRunsInOrder(t *testing.T) {
	t.Parallel()

	migrationFS := fstest.MapFS{
		"001_create.sql": &fstest.MapFile{Data: []byte(`
-- +migrate Up
CREATE TABLE widgets (id TEXT PRIMARY KEY, size INTEGER NOT NULL);
-- +migrate Down
DROP TABLE widgets;
`)},
		"002_add_column.sql": &fstest.MapFile{Data: []byte(`
-- +migrate Up
ALTER TABLE widgets ADD COLUMN color TEXT;
`)},
	}

	sqlDB := openTestDB(t)
	if err := ApplyMigrations(sqlDB, migrationFS, ""); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if _, err := sqlDB.Exec("INSERT INTO widgets (id, size, color) VALUES ('w1', 2, 'red')"); err != nil {
		t.Fatalf("expected migrated schema usable: %v", err)
	}

	var count int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count applied: %v", err)
	}
	if count != 2 {
		t.Fatalf("applied migrations = %d, want 2", count)
	}
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	t.Parallel()

	migrationFS := fstest.MapFS{
		"001_create.sql": &fstest.MapFile{Data: []byte(`
-- +migrate Up
CREATE TABLE gadgets (id TEXT PRIMARY KEY);
`)},
	}

	sqlDB := openTestDB(t)
	for i := 0; i < 2; i++ {
		if err := ApplyMigrations(sqlDB, migrationFS, ""); err != nil {
			t.Fatalf("apply migrations pass %d: %v", i+1, err)
		}
	}

	var count int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count applied: %v", err)
	}
	if count != 1 {
		t.Fatalf("applied migrations = %d, want 1", count)
	}
}

func TestExtractUpSection(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "no markers returns content",
			content: "CREATE TABLE t (id TEXT);",
			want:    "CREATE TABLE t (id TEXT);",
		},
		{
			name:    "up only",
			content: "-- +migrate Up\nCREATE TABLE t (id TEXT);",
			want:    "\nCREATE TABLE t (id TEXT);",
		},
		{
			name:    "up and down",
			content: "-- +migrate Up\nCREATE TABLE t (id TEXT);\n-- +migrate Down\nDROP TABLE t;",
			want:    "\nCREATE TABLE t (id TEXT);\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractUpSection(tc.content); got != tc.want {
				t.Fatalf("extractUpSection = %q, want %q", got, tc.want)
			}
		})
	}
}
