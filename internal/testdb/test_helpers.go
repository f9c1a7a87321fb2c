package testdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/archivist/pkg/database"
)

// Now is the fixed clock used across archival tests.
var Now = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// Clock returns Now.
func Clock() time.Time {
	return Now
}

// DaysAgo returns Now minus n days.
func DaysAgo(n int) time.Time {
	return Now.AddDate(0, 0, -n)
}

// OpenSQLite opens a file-backed sqlite3 database in the test's temp dir.
func OpenSQLite(t *testing.T, name string) *database.DB {
	t.Helper()
	db, err := database.Open(context.Background(), database.Config{
		Name:   name,
		Driver: database.DriverSQLite3,
		DSN:    filepath.Join(t.TempDir(), name+".db") + "?_busy_timeout=5000",
	})
	if err != nil {
		t.Fatalf("failed to open %s database: %v", name, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Exec runs a statement and fails the test on error.
func Exec(t *testing.T, db *database.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

// CreateEvents creates events in source and events_archive in archive.
func CreateEvents(t *testing.T, source, archive *database.DB) {
	t.Helper()
	Exec(t, source, `CREATE TABLE events (id INTEGER PRIMARY KEY, payload TEXT, created_at TIMESTAMP)`)
	Exec(t, archive, `CREATE TABLE events_archive (id INTEGER PRIMARY KEY, payload TEXT, created_at TIMESTAMP)`)
}

// InsertEvent adds one row to an events-shaped table.
func InsertEvent(t *testing.T, db *database.DB, table string, id int64, payload string, createdAt time.Time) {
	t.Helper()
	Exec(t, db, `INSERT INTO `+table+` (id, payload, created_at) VALUES (?, ?, ?)`, id, payload, createdAt)
}

// Count returns the number of rows in table.
func Count(t *testing.T, db *database.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

// IDs returns the id column of table in ascending order.
func IDs(t *testing.T, db *database.DB, table string) []int64 {
	t.Helper()
	rows, err := db.Query(`SELECT id FROM ` + table + ` ORDER BY id`)
	if err != nil {
		t.Fatalf("select ids from %s: %v", table, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scan id: %v", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate ids: %v", err)
	}
	return ids
}
