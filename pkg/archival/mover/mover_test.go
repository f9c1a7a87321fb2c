package mover

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"mercator-hq/archivist/internal/testdb"
	"mercator-hq/archivist/pkg/archival"
	"mercator-hq/archivist/pkg/archival/schema"
	"mercator-hq/archivist/pkg/database"
)

func newTestMover(t *testing.T, opts ...Option) (*Mover, *database.DB, *database.DB) {
	t.Helper()
	source := testdb.OpenSQLite(t, "source")
	archive := testdb.OpenSQLite(t, "archive")
	opts = append([]Option{WithClock(testdb.Clock)}, opts...)
	return New(source, archive, schema.NewIntrospector(schema.Options{}), opts...), source, archive
}

func TestMoveAgingRows_Events(t *testing.T) {
	m, source, archive := newTestMover(t)
	testdb.CreateEvents(t, source, archive)

	testdb.InsertEvent(t, source, "events", 1, "a", testdb.DaysAgo(10))
	testdb.InsertEvent(t, source, "events", 2, "b", testdb.DaysAgo(9))
	testdb.InsertEvent(t, source, "events", 3, "c", testdb.DaysAgo(8))
	testdb.InsertEvent(t, source, "events", 4, "d", testdb.DaysAgo(3))
	testdb.InsertEvent(t, source, "events", 5, "e", testdb.DaysAgo(1))

	res, err := m.MoveAgingRows(context.Background(), "events", 7, archival.Days, "created_at")
	if err != nil {
		t.Fatalf("MoveAgingRows() error = %v", err)
	}

	if res.Inserted != 3 {
		t.Errorf("Inserted = %d, want 3", res.Inserted)
	}
	if res.Deleted != 3 {
		t.Errorf("Deleted = %d, want 3", res.Deleted)
	}
	if res.Scope != ScopePrimaryKey {
		t.Errorf("Scope = %q, want %q", res.Scope, ScopePrimaryKey)
	}
	if res.Mismatch() {
		t.Error("Mismatch() = true, want false")
	}
	if got, want := testdb.IDs(t, source, "events"), []int64{4, 5}; !reflect.DeepEqual(got, want) {
		t.Errorf("source ids = %v, want %v", got, want)
	}
	if got, want := testdb.IDs(t, archive, "events_archive"), []int64{1, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("archive ids = %v, want %v", got, want)
	}
}

func TestMoveAgingRows_ZonedClock(t *testing.T) {
	zone := time.FixedZone("+05:00", 5*3600)
	m, source, archive := newTestMover(t, WithClock(func() time.Time { return testdb.Now.In(zone) }))
	testdb.CreateEvents(t, source, archive)

	cutoff := testdb.DaysAgo(7)
	testdb.InsertEvent(t, source, "events", 1, "a", cutoff.Add(-time.Hour))
	testdb.InsertEvent(t, source, "events", 2, "b", cutoff.Add(time.Hour))

	res, err := m.MoveAgingRows(context.Background(), "events", 7, archival.Days, "created_at")
	if err != nil {
		t.Fatalf("MoveAgingRows() error = %v", err)
	}
	if !res.Threshold.Equal(cutoff) || res.Threshold.Location() != time.UTC {
		t.Errorf("Threshold = %v, want %v in UTC", res.Threshold, cutoff)
	}
	if got, want := testdb.IDs(t, archive, "events_archive"), []int64{1}; !reflect.DeepEqual(got, want) {
		t.Errorf("archive ids = %v, want %v", got, want)
	}
	if got, want := testdb.IDs(t, source, "events"), []int64{2}; !reflect.DeepEqual(got, want) {
		t.Errorf("source ids = %v, want %v", got, want)
	}
}

func TestMoveAgingRows_Idempotent(t *testing.T) {
	m, source, archive := newTestMover(t)
	testdb.CreateEvents(t, source, archive)
	testdb.InsertEvent(t, source, "events", 1, "a", testdb.DaysAgo(30))
	testdb.InsertEvent(t, source, "events", 2, "b", testdb.DaysAgo(1))

	ctx := context.Background()
	first, err := m.MoveAgingRows(ctx, "events", 7, archival.Days, "created_at")
	if err != nil {
		t.Fatalf("first MoveAgingRows() error = %v", err)
	}
	if first.Inserted != 1 {
		t.Fatalf("first Inserted = %d, want 1", first.Inserted)
	}

	second, err := m.MoveAgingRows(ctx, "events", 7, archival.Days, "created_at")
	if err != nil {
		t.Fatalf("second MoveAgingRows() error = %v", err)
	}
	if second.Inserted != 0 || second.Deleted != 0 {
		t.Errorf("second run = %+v, want no changes", second)
	}
	if testdb.Count(t, archive, "events_archive") != 1 {
		t.Errorf("archive count = %d, want 1", testdb.Count(t, archive, "events_archive"))
	}
}

func TestMoveAgingRows_PreservesValues(t *testing.T) {
	m, source, archive := newTestMover(t)
	testdb.Exec(t, source, `CREATE TABLE readings (id INTEGER PRIMARY KEY, sensor TEXT, value REAL, raw BLOB, note TEXT, created_at TIMESTAMP)`)
	testdb.Exec(t, archive, `CREATE TABLE readings_archive (id INTEGER PRIMARY KEY, sensor TEXT, value REAL, raw BLOB, note TEXT, created_at TIMESTAMP, archived_by TEXT)`)

	created := testdb.DaysAgo(40)
	testdb.Exec(t, source, `INSERT INTO readings VALUES (?, ?, ?, ?, ?, ?)`, 7, "t-1", 21.5, []byte{0x01, 0xff}, nil, created)

	res, err := m.MoveAgingRows(context.Background(), "readings", 1, archival.Months, "created_at")
	if err != nil {
		t.Fatalf("MoveAgingRows() error = %v", err)
	}
	if res.Inserted != 1 {
		t.Fatalf("Inserted = %d, want 1", res.Inserted)
	}

	var (
		id      int64
		sensor  string
		value   float64
		raw     []byte
		note    any
		gotTime time.Time
	)
	err = archive.QueryRow(`SELECT id, sensor, value, raw, note, created_at FROM readings_archive`).
		Scan(&id, &sensor, &value, &raw, &note, &gotTime)
	if err != nil {
		t.Fatalf("select archived row: %v", err)
	}
	if id != 7 || sensor != "t-1" || value != 21.5 {
		t.Errorf("archived row = (%d, %q, %v), want (7, \"t-1\", 21.5)", id, sensor, value)
	}
	if !reflect.DeepEqual(raw, []byte{0x01, 0xff}) {
		t.Errorf("raw = %v, want [1 255]", raw)
	}
	if note != nil {
		t.Errorf("note = %v, want NULL", note)
	}
	if !gotTime.Equal(created) {
		t.Errorf("created_at = %v, want %v", gotTime, created)
	}
}

func TestMoveAgingRows_CompositeKey(t *testing.T) {
	m, source, archive := newTestMover(t, WithDeleteChunkSize(2))
	testdb.Exec(t, source, `CREATE TABLE lines (order_id INTEGER, line_no INTEGER, created_at TIMESTAMP, PRIMARY KEY (order_id, line_no))`)
	testdb.Exec(t, archive, `CREATE TABLE lines_archive (order_id INTEGER, line_no INTEGER, created_at TIMESTAMP)`)

	for i := 1; i <= 5; i++ {
		testdb.Exec(t, source, `INSERT INTO lines VALUES (?, ?, ?)`, 100, i, testdb.DaysAgo(20))
	}
	testdb.Exec(t, source, `INSERT INTO lines VALUES (?, ?, ?)`, 101, 1, testdb.DaysAgo(2))

	res, err := m.MoveAgingRows(context.Background(), "lines", 10, archival.Days, "created_at")
	if err != nil {
		t.Fatalf("MoveAgingRows() error = %v", err)
	}
	if res.Inserted != 5 || res.Deleted != 5 {
		t.Errorf("result = %+v, want 5 inserted and deleted", res)
	}
	if got := testdb.Count(t, source, "lines"); got != 1 {
		t.Errorf("source count = %d, want 1", got)
	}
}

func TestMoveAgingRows_NoPrimaryKeyFallsBack(t *testing.T) {
	m, source, archive := newTestMover(t)
	testdb.Exec(t, source, `CREATE TABLE audit (msg TEXT, logged_at TIMESTAMP)`)
	testdb.Exec(t, archive, `CREATE TABLE audit_archive (msg TEXT, logged_at TIMESTAMP)`)
	testdb.Exec(t, source, `INSERT INTO audit VALUES (?, ?)`, "old", testdb.DaysAgo(5*365))
	testdb.Exec(t, source, `INSERT INTO audit VALUES (?, ?)`, "new", testdb.DaysAgo(10))

	res, err := m.MoveAgingRows(context.Background(), "audit", 1, archival.Years, "logged_at")
	if err != nil {
		t.Fatalf("MoveAgingRows() error = %v", err)
	}
	if res.Scope != ScopeAgePredicate {
		t.Errorf("Scope = %q, want %q", res.Scope, ScopeAgePredicate)
	}
	if res.Inserted != 1 || res.Deleted != 1 {
		t.Errorf("result = %+v, want 1 inserted and deleted", res)
	}
}

func TestMoveAgingRows_MissingArchiveLeavesSourceIntact(t *testing.T) {
	m, source, _ := newTestMover(t)
	testdb.Exec(t, source, `CREATE TABLE events (id INTEGER PRIMARY KEY, payload TEXT, created_at TIMESTAMP)`)
	testdb.InsertEvent(t, source, "events", 1, "a", testdb.DaysAgo(30))

	_, err := m.MoveAgingRows(context.Background(), "events", 7, archival.Days, "created_at")
	var ncf *archival.NoColumnsFoundError
	if !errors.As(err, &ncf) {
		t.Fatalf("expected NoColumnsFoundError, got %v", err)
	}
	if ncf.Table != "events_archive" {
		t.Errorf("error table = %q, want events_archive", ncf.Table)
	}
	if got := testdb.Count(t, source, "events"); got != 1 {
		t.Errorf("source count = %d, want 1", got)
	}
}

func TestMoveAgingRows_InsertFailureLeavesSourceIntact(t *testing.T) {
	m, source, archive := newTestMover(t)
	testdb.CreateEvents(t, source, archive)
	testdb.InsertEvent(t, source, "events", 1, "a", testdb.DaysAgo(30))
	testdb.InsertEvent(t, source, "events", 2, "b", testdb.DaysAgo(30))
	// Row 2 already archived: the primary key conflict aborts the archive transaction.
	testdb.InsertEvent(t, archive, "events_archive", 2, "b", testdb.DaysAgo(30))

	_, err := m.MoveAgingRows(context.Background(), "events", 7, archival.Days, "created_at")
	var se *archival.StorageError
	if !errors.As(err, &se) || se.Operation != "insert" {
		t.Fatalf("expected insert StorageError, got %v", err)
	}
	if got := testdb.Count(t, source, "events"); got != 2 {
		t.Errorf("source count = %d, want 2", got)
	}
	if got := testdb.Count(t, archive, "events_archive"); got != 1 {
		t.Errorf("archive count = %d, want 1", got)
	}
}

func TestMoveAgingRows_ColumnErrors(t *testing.T) {
	tests := []struct {
		name      string
		archive   string
		ageColumn string
		wantTable string
		wantCol   string
	}{
		{
			name:      "age column missing from source",
			archive:   `CREATE TABLE events_archive (id INTEGER, payload TEXT, created_at TIMESTAMP)`,
			ageColumn: "inserted_at",
			wantTable: "events",
			wantCol:   "inserted_at",
		},
		{
			name:      "source column missing from archive",
			archive:   `CREATE TABLE events_archive (id INTEGER, created_at TIMESTAMP)`,
			ageColumn: "created_at",
			wantTable: "events_archive",
			wantCol:   "payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, source, archive := newTestMover(t)
			testdb.Exec(t, source, `CREATE TABLE events (id INTEGER PRIMARY KEY, payload TEXT, created_at TIMESTAMP)`)
			testdb.Exec(t, archive, tt.archive)

			_, err := m.MoveAgingRows(context.Background(), "events", 7, archival.Days, tt.ageColumn)
			var cnf *archival.ColumnNotFoundError
			if !errors.As(err, &cnf) {
				t.Fatalf("expected ColumnNotFoundError, got %v", err)
			}
			if cnf.Table != tt.wantTable || cnf.Column != tt.wantCol {
				t.Errorf("error = %+v, want table %q column %q", cnf, tt.wantTable, tt.wantCol)
			}
		})
	}
}

func TestMoveAgingRows_UnsupportedUnit(t *testing.T) {
	m, source, archive := newTestMover(t)
	testdb.CreateEvents(t, source, archive)

	_, err := m.MoveAgingRows(context.Background(), "events", 7, "WEEKS", "created_at")
	var ute *archival.UnsupportedTimeUnitError
	if !errors.As(err, &ute) {
		t.Fatalf("expected UnsupportedTimeUnitError, got %v", err)
	}
}

func TestMoveAgingRows_ManyRows(t *testing.T) {
	m, source, archive := newTestMover(t, WithDeleteChunkSize(100))
	testdb.CreateEvents(t, source, archive)

	tx, err := source.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for i := 1; i <= 1200; i++ {
		if _, err := tx.Exec(`INSERT INTO events VALUES (?, ?, ?)`, i, "p", testdb.DaysAgo(30)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	res, err := m.MoveAgingRows(context.Background(), "events", 7, archival.Days, "created_at")
	if err != nil {
		t.Fatalf("MoveAgingRows() error = %v", err)
	}
	if res.Inserted != 1200 || res.Deleted != 1200 {
		t.Errorf("result = %+v, want 1200 inserted and deleted", res)
	}
	if got := testdb.Count(t, source, "events"); got != 0 {
		t.Errorf("source count = %d, want 0", got)
	}
}
