package db

import (
	"path/filepath"
	"strings"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "dbh.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func tableExists(t *testing.T, database *DB, name string) bool {
	t.Helper()
	var n int
	err := database.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return n > 0
}

func TestOpen_AppliesMigrations(t *testing.T) {
	database := openTestDB(t)

	if !tableExists(t, database, "dbh_measurements") {
		t.Fatal("dbh_measurements table missing after Open")
	}

	latest, err := LatestMigrationVersion(MigrationsFS())
	if err != nil {
		t.Fatalf("LatestMigrationVersion failed: %v", err)
	}
	version, dirty, err := database.MigrateVersion(MigrationsFS())
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != latest || dirty {
		t.Errorf("version = %d (dirty=%v), want %d clean", version, dirty, latest)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dbh.db")
	for i := 0; i < 2; i++ {
		database, err := Open(path)
		if err != nil {
			t.Fatalf("Open #%d failed: %v", i+1, err)
		}
		database.Close()
	}
}

func TestOpenDB_Pragmas(t *testing.T) {
	database := openTestDB(t)

	var mode string
	if err := database.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var fk int
	if err := database.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("read foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestMigrateDown(t *testing.T) {
	database := openTestDB(t)

	if err := database.MigrateDown(MigrationsFS()); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	if tableExists(t, database, "dbh_measurements") {
		t.Error("dbh_measurements should be dropped after MigrateDown")
	}
	version, _, err := database.MigrateVersion(MigrationsFS())
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 0 {
		t.Errorf("version after down = %d, want 0", version)
	}

	if err := database.MigrateUp(MigrationsFS()); err != nil {
		t.Fatalf("MigrateUp after down failed: %v", err)
	}
	if !tableExists(t, database, "dbh_measurements") {
		t.Error("dbh_measurements missing after re-applying migrations")
	}
}

func TestOpenDB_BadPath(t *testing.T) {
	_, err := OpenDB(filepath.Join(t.TempDir(), "missing", "dir", "dbh.db"))
	if err == nil {
		t.Fatal("expected error opening database in a missing directory")
	}
}
