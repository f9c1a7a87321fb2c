package mover

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"mercator-hq/archivist/pkg/archival"
	"mercator-hq/archivist/pkg/archival/schema"
	"mercator-hq/archivist/pkg/database"
)

const (
	// DefaultDeleteChunkSize is the number of keys per DELETE statement.
	DefaultDeleteChunkSize = 500

	// maxBindParams keeps multi-row statements under the lowest common
	// parameter limit (SQLite builds older than 3.32 allow 999).
	maxBindParams = 999
)

// DeleteScope tells how source rows were removed.
type DeleteScope string

const (
	// ScopePrimaryKey deletes exactly the rows captured by the select.
	ScopePrimaryKey DeleteScope = "primary_key"
	// ScopeAgePredicate re-applies the age predicate; used for tables without a primary key.
	ScopeAgePredicate DeleteScope = "age_predicate"
)

// Result reports what one move did.
type Result struct {
	Table     string
	Threshold time.Time
	Selected  int64
	Inserted  int64
	Deleted   int64
	Scope     DeleteScope
}

// Mismatch reports whether inserted and deleted counts disagree.
func (r *Result) Mismatch() bool {
	return r.Inserted != r.Deleted || r.Selected != r.Inserted
}

// Option configures a Mover.
type Option func(*Mover)

// WithClock sets the time source used to compute thresholds.
func WithClock(now func() time.Time) Option {
	return func(m *Mover) {
		m.now = now
	}
}

// WithDeleteChunkSize sets how many keys go into one DELETE statement.
func WithDeleteChunkSize(n int) Option {
	return func(m *Mover) {
		if n > 0 {
			m.deleteChunkSize = n
		}
	}
}

// Mover transfers aging rows from a source table to its archive table.
type Mover struct {
	source          *database.DB
	archive         *database.DB
	schemas         schema.Describer
	logger          *slog.Logger
	now             func() time.Time
	deleteChunkSize int
}

// New creates a Mover.
func New(source, archive *database.DB, schemas schema.Describer, opts ...Option) *Mover {
	m := &Mover{
		source:          source,
		archive:         archive,
		schemas:         schemas,
		logger:          slog.Default().With("component", "archival.mover"),
		now:             func() time.Time { return time.Now().UTC() },
		deleteChunkSize: DefaultDeleteChunkSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MoveAgingRows copies rows of table whose ageColumn is older than
// archiveAfter units into table_archive, then deletes them from table.
//
// The archive insert commits in its own transaction before the source delete
// commits. A failure before the archive commit leaves both databases
// unchanged. A failure after it leaves the rows in both places; a later run
// will copy them again.
//
// It returns the number of rows inserted into the archive.
func (m *Mover) MoveAgingRows(ctx context.Context, table string, archiveAfter int64, unit archival.TimeUnit, ageColumn string) (*Result, error) {
	if err := archival.ValidateIdentifier(table); err != nil {
		return nil, err
	}
	if err := archival.ValidateIdentifier(ageColumn); err != nil {
		return nil, err
	}

	threshold, err := archival.ComputeThreshold(m.now(), archiveAfter, unit)
	if err != nil {
		return nil, err
	}
	result := &Result{Table: table, Threshold: threshold}

	archiveTable := archival.ArchiveTableName(table)
	src, err := m.schemas.Describe(ctx, m.source, table)
	if err != nil {
		return nil, err
	}
	dst, err := m.schemas.Describe(ctx, m.archive, archiveTable)
	if err != nil {
		return nil, err
	}
	if !src.HasColumn(ageColumn) {
		return nil, &archival.ColumnNotFoundError{Table: table, Column: ageColumn}
	}
	if !dst.HasColumn(ageColumn) {
		return nil, &archival.ColumnNotFoundError{Table: archiveTable, Column: ageColumn}
	}
	columns := src.ColumnNames()
	for _, c := range columns {
		if !dst.HasColumn(c) {
			return nil, &archival.ColumnNotFoundError{Table: archiveTable, Column: c}
		}
	}

	tx, err := m.source.BeginTx(ctx, nil)
	if err != nil {
		return nil, archival.NewStorageError(m.source.Name(), "begin", table, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rows, err := m.selectAging(ctx, tx, table, columns, ageColumn, threshold)
	if err != nil {
		return nil, archival.NewStorageError(m.source.Name(), "select", table, err)
	}
	result.Selected = int64(len(rows))

	if len(rows) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, archival.NewStorageError(m.source.Name(), "commit", table, err)
		}
		committed = true
		return result, nil
	}

	inserted, err := m.insertArchive(ctx, archiveTable, columns, rows)
	if err != nil {
		return nil, archival.NewStorageError(m.archive.Name(), "insert", archiveTable, err)
	}
	result.Inserted = inserted

	pk := src.PrimaryKey()
	var deleted int64
	if pk != nil {
		result.Scope = ScopePrimaryKey
		deleted, err = m.deleteByKeys(ctx, tx, table, columns, pk, rows)
	} else {
		result.Scope = ScopeAgePredicate
		m.logger.Warn("table has no primary key, deleting by age predicate",
			"table", table,
			"age_column", ageColumn,
		)
		deleted, err = m.deleteByAge(ctx, tx, table, ageColumn, threshold)
	}
	if err != nil {
		m.logger.Error("source delete failed after archive commit, rows now exist in both tables",
			"table", table,
			"archived_count", inserted,
			"error", err,
		)
		return nil, archival.NewStorageError(m.source.Name(), "delete", table, err)
	}
	result.Deleted = deleted

	if err := tx.Commit(); err != nil {
		m.logger.Error("source commit failed after archive commit, rows now exist in both tables",
			"table", table,
			"archived_count", inserted,
			"error", err,
		)
		return nil, archival.NewStorageError(m.source.Name(), "commit", table, err)
	}
	committed = true

	if result.Mismatch() {
		m.logger.Warn("archived and deleted row counts differ",
			"table", table,
			"selected_count", result.Selected,
			"archived_count", result.Inserted,
			"deleted_count", result.Deleted,
			"delete_scope", string(result.Scope),
		)
	}

	m.logger.Info("moved aging rows",
		"table", table,
		"threshold", threshold,
		"archived_count", result.Inserted,
		"deleted_count", result.Deleted,
	)
	return result, nil
}

func (m *Mover) selectAging(ctx context.Context, tx *sql.Tx, table string, columns []string, ageColumn string, threshold time.Time) ([][]any, error) {
	query, args, err := m.source.Builder().
		From(table).
		Select(identifiers(columns)...).
		Where(goqu.C(ageColumn).Lt(threshold)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, err
	}

	rs, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var rows [][]any
	for rs.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, err
		}
		rows = append(rows, values)
	}
	return rows, rs.Err()
}

func (m *Mover) insertArchive(ctx context.Context, archiveTable string, columns []string, rows [][]any) (int64, error) {
	tx, err := m.archive.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	perStatement := maxBindParams / len(columns)
	if perStatement < 1 {
		perStatement = 1
	}

	var inserted int64
	for start := 0; start < len(rows); start += perStatement {
		end := min(start+perStatement, len(rows))

		query, args, err := m.archive.Builder().
			Insert(archiveTable).
			Cols(identifiers(columns)...).
			Vals(rows[start:end]...).
			Prepared(true).
			ToSQL()
		if err != nil {
			return 0, err
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return inserted, nil
}

func (m *Mover) deleteByKeys(ctx context.Context, tx *sql.Tx, table string, columns, pk []string, rows [][]any) (int64, error) {
	idx := make([]int, len(pk))
	for i, k := range pk {
		idx[i] = indexOf(columns, k)
		if idx[i] < 0 {
			return 0, fmt.Errorf("primary key column %q not selected", k)
		}
	}

	chunk := m.deleteChunkSize
	if limit := maxBindParams / len(pk); chunk > limit {
		chunk = limit
	}

	var deleted int64
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))

		var where exp.Expression
		if len(pk) == 1 {
			keys := make([]any, 0, end-start)
			for _, r := range rows[start:end] {
				keys = append(keys, r[idx[0]])
			}
			where = goqu.C(pk[0]).In(keys...)
		} else {
			tuples := make([]exp.Expression, 0, end-start)
			for _, r := range rows[start:end] {
				match := goqu.Ex{}
				for i, k := range pk {
					match[k] = r[idx[i]]
				}
				tuples = append(tuples, match)
			}
			where = goqu.Or(tuples...)
		}

		query, args, err := m.source.Builder().Delete(table).Where(where).Prepared(true).ToSQL()
		if err != nil {
			return 0, err
		}
		n, err := execCount(ctx, tx, query, args)
		if err != nil {
			return 0, err
		}
		deleted += n
	}
	return deleted, nil
}

func (m *Mover) deleteByAge(ctx context.Context, tx *sql.Tx, table, ageColumn string, threshold time.Time) (int64, error) {
	query, args, err := m.source.Builder().
		Delete(table).
		Where(goqu.C(ageColumn).Lt(threshold)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return 0, err
	}
	return execCount(ctx, tx, query, args)
}

func execCount(ctx context.Context, tx *sql.Tx, query string, args []any) (int64, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Join(errors.New("rows affected unavailable"), err)
	}
	return n, nil
}

func identifiers(names []string) []any {
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = goqu.C(n)
	}
	return out
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
