package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"mercator-hq/archivist/internal/testdb"
	"mercator-hq/archivist/pkg/archival"
)

// backends runs fn against every Store implementation.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLStore(context.Background(), testdb.OpenSQLite(t, "control"))
		if err != nil {
			t.Fatalf("NewSQLStore() error = %v", err)
		}
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func testPolicy(table string, archiveAfter int64) archival.RetentionPolicy {
	return archival.RetentionPolicy{
		TableName:    table,
		ArchiveAfter: archiveAfter,
		ArchiveUnit:  archival.Days,
		DeleteAfter:  90,
		DeleteUnit:   archival.Days,
		AgeColumn:    "created_at",
	}
}

func TestStore_Policies(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		if _, err := s.GetPolicy(ctx, "events"); !errors.Is(err, archival.ErrPolicyNotFound) {
			t.Fatalf("GetPolicy() error = %v, want ErrPolicyNotFound", err)
		}

		created, err := s.UpsertPolicy(ctx, testPolicy("events", 7))
		if err != nil {
			t.Fatalf("UpsertPolicy() error = %v", err)
		}
		if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
			t.Errorf("timestamps not set: %+v", created)
		}

		if _, err := s.UpsertPolicy(ctx, testPolicy("audit", 1)); err != nil {
			t.Fatalf("UpsertPolicy() error = %v", err)
		}

		updated := testPolicy("events", 14)
		updated.ArchiveUnit = archival.Hours
		got, err := s.UpsertPolicy(ctx, updated)
		if err != nil {
			t.Fatalf("UpsertPolicy() update error = %v", err)
		}
		if !got.CreatedAt.Equal(created.CreatedAt) {
			t.Errorf("CreatedAt changed on update: %v -> %v", created.CreatedAt, got.CreatedAt)
		}

		stored, err := s.GetPolicy(ctx, "events")
		if err != nil {
			t.Fatalf("GetPolicy() error = %v", err)
		}
		if stored.ArchiveAfter != 14 || stored.ArchiveUnit != archival.Hours || stored.AgeColumn != "created_at" {
			t.Errorf("GetPolicy() = %+v, want updated values", stored)
		}

		list, err := s.ListPolicies(ctx)
		if err != nil {
			t.Fatalf("ListPolicies() error = %v", err)
		}
		var names []string
		for _, p := range list {
			names = append(names, p.TableName)
		}
		if want := []string{"audit", "events"}; !reflect.DeepEqual(names, want) {
			t.Errorf("ListPolicies() tables = %v, want %v", names, want)
		}

		if err := s.DeletePolicy(ctx, "audit"); err != nil {
			t.Fatalf("DeletePolicy() error = %v", err)
		}
		if err := s.DeletePolicy(ctx, "audit"); !errors.Is(err, archival.ErrPolicyNotFound) {
			t.Errorf("second DeletePolicy() error = %v, want ErrPolicyNotFound", err)
		}
	})
}

func TestStore_Grants(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		if _, err := s.GetGrant(ctx, "alice"); !errors.Is(err, archival.ErrGrantNotFound) {
			t.Fatalf("GetGrant() error = %v, want ErrGrantNotFound", err)
		}

		_, err := s.UpsertGrant(ctx, archival.TableAccessGrant{Principal: "alice", Tables: []string{"orders", " invoices", "orders"}})
		if err != nil {
			t.Fatalf("UpsertGrant() error = %v", err)
		}

		got, err := s.GetGrant(ctx, "alice")
		if err != nil {
			t.Fatalf("GetGrant() error = %v", err)
		}
		if want := []string{"orders", "invoices"}; !reflect.DeepEqual(got.Tables, want) {
			t.Errorf("Tables = %v, want %v", got.Tables, want)
		}

		if _, err := s.UpsertGrant(ctx, archival.TableAccessGrant{Principal: "alice", Tables: []string{"customers"}}); err != nil {
			t.Fatalf("UpsertGrant() replace error = %v", err)
		}
		if _, err := s.UpsertGrant(ctx, archival.TableAccessGrant{Principal: "bob"}); err != nil {
			t.Fatalf("UpsertGrant() error = %v", err)
		}

		grants, err := s.ListGrants(ctx)
		if err != nil {
			t.Fatalf("ListGrants() error = %v", err)
		}
		if len(grants) != 2 {
			t.Fatalf("len(ListGrants()) = %d, want 2", len(grants))
		}
		if grants[0].Principal != "alice" || !reflect.DeepEqual(grants[0].Tables, []string{"customers"}) {
			t.Errorf("alice grant = %+v, want only customers", grants[0])
		}
		if len(grants[1].Tables) != 0 {
			t.Errorf("bob grant tables = %v, want none", grants[1].Tables)
		}
	})
}

func TestSQLStore_ReopenKeepsData(t *testing.T) {
	db := testdb.OpenSQLite(t, "control")
	ctx := context.Background()

	s, err := NewSQLStore(ctx, db)
	if err != nil {
		t.Fatalf("NewSQLStore() error = %v", err)
	}
	s.now = func() time.Time { return testdb.Now }
	if _, err := s.UpsertPolicy(ctx, testPolicy("events", 7)); err != nil {
		t.Fatalf("UpsertPolicy() error = %v", err)
	}

	reopened, err := NewSQLStore(ctx, db)
	if err != nil {
		t.Fatalf("second NewSQLStore() error = %v", err)
	}
	p, err := reopened.GetPolicy(ctx, "events")
	if err != nil {
		t.Fatalf("GetPolicy() error = %v", err)
	}
	if !p.CreatedAt.Equal(testdb.Now) {
		t.Errorf("CreatedAt = %v, want %v", p.CreatedAt, testdb.Now)
	}
}

func TestSQLStore_SchemaVersionMismatch(t *testing.T) {
	db := testdb.OpenSQLite(t, "control")
	ctx := context.Background()

	if _, err := NewSQLStore(ctx, db); err != nil {
		t.Fatalf("NewSQLStore() error = %v", err)
	}
	testdb.Exec(t, db, `UPDATE archivist_schema_version SET version = 99`)

	_, err := NewSQLStore(ctx, db)
	var se *archival.StorageError
	if !errors.As(err, &se) || se.Operation != "schema_version_mismatch" {
		t.Errorf("NewSQLStore() error = %v, want schema_version_mismatch", err)
	}
}
