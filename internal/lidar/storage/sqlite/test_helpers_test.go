package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/banshee-data/dbh.report/internal/db"
)

// setupMeasurementTestDB opens a fresh database migrated to the latest
// schema.
func setupMeasurementTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	return database.DB, func() { database.Close() }
}
