package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"

	"mercator-hq/archivist/pkg/archival"
	"mercator-hq/archivist/pkg/database"
)

var policyColumns = []any{
	"table_name",
	"archive_after",
	"archival_time_unit",
	"delete_after",
	"delete_after_time_unit",
	"archival_column_name",
	"created_at",
	"updated_at",
}

var grantColumns = []any{"user_name", "table_names", "created_at", "updated_at"}

// SQLStore implements Store on any supported database.
type SQLStore struct {
	db     *database.DB
	owned  bool
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLStore creates the control tables if needed and returns a store.
// The store does not close db unless it was opened with OpenSQLStore.
func NewSQLStore(ctx context.Context, db *database.DB) (*SQLStore, error) {
	s := &SQLStore{
		db:     db,
		logger: slog.Default().With("component", "archival.storage", "dialect", string(db.Dialect())),
		now:    func() time.Time { return time.Now().UTC() },
	}
	if err := s.initialize(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLStore opens a dedicated control database.
func OpenSQLStore(ctx context.Context, cfg database.Config) (*SQLStore, error) {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, archival.NewStorageError(cfg.Name, "open", "", err)
	}
	s, err := NewSQLStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

func (s *SQLStore) initialize(ctx context.Context) error {
	statements, err := schemaStatements(s.db.Dialect())
	if err != nil {
		return archival.NewStorageError(s.db.Name(), "create_schema", "", err)
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return archival.NewStorageError(s.db.Name(), "create_schema", "", err)
		}
	}

	b := s.db.Builder()
	query, args, err := b.From(SchemaVersionTable).Select(goqu.MAX("version")).Prepared(true).ToSQL()
	if err != nil {
		return err
	}
	var version sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&version); err != nil {
		return archival.NewStorageError(s.db.Name(), "get_schema_version", SchemaVersionTable, err)
	}

	switch {
	case !version.Valid:
		query, args, err = b.Insert(SchemaVersionTable).
			Rows(goqu.Record{"version": SchemaVersion, "applied_at": s.timestamp()}).
			Prepared(true).
			ToSQL()
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return archival.NewStorageError(s.db.Name(), "insert_schema_version", SchemaVersionTable, err)
		}
	case version.Int64 != SchemaVersion:
		return archival.NewStorageError(s.db.Name(), "schema_version_mismatch", SchemaVersionTable,
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version.Int64))
	}

	s.logger.Debug("control schema ready", "version", SchemaVersion)
	return nil
}

// ListPolicies implements Store.
func (s *SQLStore) ListPolicies(ctx context.Context) ([]archival.RetentionPolicy, error) {
	query, args, err := s.db.Builder().
		From(PoliciesTable).
		Select(policyColumns...).
		Order(goqu.C("table_name").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, archival.NewStorageError(s.db.Name(), "list_policies", PoliciesTable, err)
	}
	defer rows.Close()

	policies := []archival.RetentionPolicy{}
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, archival.NewStorageError(s.db.Name(), "list_policies", PoliciesTable, err)
		}
		policies = append(policies, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, archival.NewStorageError(s.db.Name(), "list_policies", PoliciesTable, err)
	}
	return policies, nil
}

// GetPolicy implements Store.
func (s *SQLStore) GetPolicy(ctx context.Context, table string) (*archival.RetentionPolicy, error) {
	return s.getPolicy(ctx, s.db, table)
}

func (s *SQLStore) getPolicy(ctx context.Context, q database.Queryer, table string) (*archival.RetentionPolicy, error) {
	query, args, err := s.db.Builder().
		From(PoliciesTable).
		Select(policyColumns...).
		Where(goqu.C("table_name").Eq(table)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, err
	}

	p, err := scanPolicy(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, archival.ErrPolicyNotFound
	}
	if err != nil {
		return nil, archival.NewStorageError(s.db.Name(), "get_policy", PoliciesTable, err)
	}
	return p, nil
}

// UpsertPolicy implements Store.
func (s *SQLStore) UpsertPolicy(ctx context.Context, policy archival.RetentionPolicy) (*archival.RetentionPolicy, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, archival.NewStorageError(s.db.Name(), "begin", PoliciesTable, err)
	}
	defer tx.Rollback()

	now := s.timestamp()
	record := goqu.Record{
		"archive_after":          policy.ArchiveAfter,
		"archival_time_unit":     string(policy.ArchiveUnit),
		"delete_after":           policy.DeleteAfter,
		"delete_after_time_unit": string(policy.DeleteUnit),
		"archival_column_name":   policy.AgeColumn,
		"updated_at":             now,
	}

	existing, err := s.getPolicy(ctx, tx, policy.TableName)
	var query string
	var args []any
	switch {
	case errors.Is(err, archival.ErrPolicyNotFound):
		record["table_name"] = policy.TableName
		record["created_at"] = now
		policy.CreatedAt = now
		query, args, err = s.db.Builder().Insert(PoliciesTable).Rows(record).Prepared(true).ToSQL()
	case err != nil:
		return nil, err
	default:
		policy.CreatedAt = existing.CreatedAt
		query, args, err = s.db.Builder().
			Update(PoliciesTable).
			Set(record).
			Where(goqu.C("table_name").Eq(policy.TableName)).
			Prepared(true).
			ToSQL()
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, archival.NewStorageError(s.db.Name(), "upsert_policy", PoliciesTable, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, archival.NewStorageError(s.db.Name(), "commit", PoliciesTable, err)
	}

	policy.UpdatedAt = now
	return &policy, nil
}

// DeletePolicy implements Store.
func (s *SQLStore) DeletePolicy(ctx context.Context, table string) error {
	query, args, err := s.db.Builder().
		Delete(PoliciesTable).
		Where(goqu.C("table_name").Eq(table)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return archival.NewStorageError(s.db.Name(), "delete_policy", PoliciesTable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return archival.NewStorageError(s.db.Name(), "delete_policy", PoliciesTable, err)
	}
	if n == 0 {
		return archival.ErrPolicyNotFound
	}
	return nil
}

// GetGrant implements Store.
func (s *SQLStore) GetGrant(ctx context.Context, principal string) (*archival.TableAccessGrant, error) {
	return s.getGrant(ctx, s.db, principal)
}

func (s *SQLStore) getGrant(ctx context.Context, q database.Queryer, principal string) (*archival.TableAccessGrant, error) {
	query, args, err := s.db.Builder().
		From(GrantsTable).
		Select(grantColumns...).
		Where(goqu.C("user_name").Eq(principal)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, err
	}

	g, err := scanGrant(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, archival.ErrGrantNotFound
	}
	if err != nil {
		return nil, archival.NewStorageError(s.db.Name(), "get_grant", GrantsTable, err)
	}
	return g, nil
}

// ListGrants implements Store.
func (s *SQLStore) ListGrants(ctx context.Context) ([]archival.TableAccessGrant, error) {
	query, args, err := s.db.Builder().
		From(GrantsTable).
		Select(grantColumns...).
		Order(goqu.C("user_name").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, archival.NewStorageError(s.db.Name(), "list_grants", GrantsTable, err)
	}
	defer rows.Close()

	grants := []archival.TableAccessGrant{}
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, archival.NewStorageError(s.db.Name(), "list_grants", GrantsTable, err)
		}
		grants = append(grants, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, archival.NewStorageError(s.db.Name(), "list_grants", GrantsTable, err)
	}
	return grants, nil
}

// UpsertGrant implements Store. Table names are stored comma-separated.
func (s *SQLStore) UpsertGrant(ctx context.Context, grant archival.TableAccessGrant) (*archival.TableAccessGrant, error) {
	grant.Tables = archival.NormalizeTables(grant.Tables)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, archival.NewStorageError(s.db.Name(), "begin", GrantsTable, err)
	}
	defer tx.Rollback()

	now := s.timestamp()
	record := goqu.Record{
		"table_names": strings.Join(grant.Tables, ","),
		"updated_at":  now,
	}

	existing, err := s.getGrant(ctx, tx, grant.Principal)
	var query string
	var args []any
	switch {
	case errors.Is(err, archival.ErrGrantNotFound):
		record["user_name"] = grant.Principal
		record["created_at"] = now
		grant.CreatedAt = now
		query, args, err = s.db.Builder().Insert(GrantsTable).Rows(record).Prepared(true).ToSQL()
	case err != nil:
		return nil, err
	default:
		grant.CreatedAt = existing.CreatedAt
		query, args, err = s.db.Builder().
			Update(GrantsTable).
			Set(record).
			Where(goqu.C("user_name").Eq(grant.Principal)).
			Prepared(true).
			ToSQL()
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, archival.NewStorageError(s.db.Name(), "upsert_grant", GrantsTable, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, archival.NewStorageError(s.db.Name(), "commit", GrantsTable, err)
	}

	grant.UpdatedAt = now
	return &grant, nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

// timestamp is truncated to the coarsest precision among supported databases.
func (s *SQLStore) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row scanner) (*archival.RetentionPolicy, error) {
	var (
		p           archival.RetentionPolicy
		archiveUnit string
		deleteUnit  string
	)
	err := row.Scan(
		&p.TableName,
		&p.ArchiveAfter,
		&archiveUnit,
		&p.DeleteAfter,
		&deleteUnit,
		&p.AgeColumn,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ArchiveUnit = archival.TimeUnit(archiveUnit)
	p.DeleteUnit = archival.TimeUnit(deleteUnit)
	return &p, nil
}

func scanGrant(row scanner) (*archival.TableAccessGrant, error) {
	var (
		g      archival.TableAccessGrant
		tables string
	)
	if err := row.Scan(&g.Principal, &tables, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.Tables = archival.ParseTableList(tables)
	return &g, nil
}
