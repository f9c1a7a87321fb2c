package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"mercator-hq/archivist/pkg/archival"
	"mercator-hq/archivist/pkg/database"
)

// Column describes one table column.
type Column struct {
	Name string
	Type string
	// PrimaryKey is the 1-based position within the primary key, 0 if the
	// column is not part of it.
	PrimaryKey int
}

// Table is the ordered column list of a table.
type Table struct {
	Name    string
	Columns []Column
}

// ColumnNames returns column names in catalog order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether the table has a column with exactly this name.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// PrimaryKey returns the primary key columns in key order, or nil when the
// table has none.
func (t *Table) PrimaryKey() []string {
	var pk []Column
	for _, c := range t.Columns {
		if c.PrimaryKey > 0 {
			pk = append(pk, c)
		}
	}
	sort.SliceStable(pk, func(i, j int) bool { return pk[i].PrimaryKey < pk[j].PrimaryKey })

	names := make([]string, len(pk))
	for i, c := range pk {
		names[i] = c.Name
	}
	if len(names) == 0 {
		return nil
	}
	return names
}

// Describer resolves table schemas.
type Describer interface {
	Describe(ctx context.Context, db *database.DB, table string) (*Table, error)
}

// CacheName labels the schema cache in telemetry.
const CacheName = "schema"

// CacheRecorder receives schema cache telemetry.
type CacheRecorder interface {
	RecordCacheHit(cacheName string)
	RecordCacheMiss(cacheName string)
	RecordCacheEviction(cacheName string)
	UpdateCacheSize(cacheName string, size int)
}

// Options configures an Introspector.
type Options struct {
	// CacheSize is the number of schemas kept. Zero disables caching.
	CacheSize int
	// CacheTTL bounds how long a cached schema is trusted.
	CacheTTL time.Duration
	// Recorder, when set, receives cache hits, misses and evictions.
	Recorder CacheRecorder
}

// Introspector reads column metadata from database catalogs.
type Introspector struct {
	cache    *expirable.LRU[string, *Table]
	recorder CacheRecorder
	logger   *slog.Logger
}

// NewIntrospector creates an Introspector.
func NewIntrospector(opts Options) *Introspector {
	i := &Introspector{
		recorder: opts.Recorder,
		logger:   slog.Default().With("component", "archival.schema"),
	}
	if opts.CacheSize > 0 {
		var onEvict expirable.EvictCallback[string, *Table]
		if i.recorder != nil {
			onEvict = func(string, *Table) { i.recorder.RecordCacheEviction(CacheName) }
		}
		i.cache = expirable.NewLRU[string, *Table](opts.CacheSize, onEvict, opts.CacheTTL)
	}
	return i
}

// Describe returns the columns of table in db in catalog order.
// It fails with NoColumnsFoundError when the catalog has none.
func (i *Introspector) Describe(ctx context.Context, db *database.DB, table string) (*Table, error) {
	if err := archival.ValidateIdentifier(table); err != nil {
		return nil, err
	}

	key := db.Name() + "/" + table
	if i.cache != nil {
		if t, ok := i.cache.Get(key); ok {
			i.record(true)
			return t, nil
		}
		i.record(false)
	}

	columns, err := readColumns(ctx, db, table)
	if err != nil {
		return nil, archival.NewStorageError(db.Name(), "introspect", table, err)
	}
	if len(columns) == 0 {
		return nil, &archival.NoColumnsFoundError{Database: db.Name(), Table: table}
	}
	for _, c := range columns {
		if err := archival.ValidateIdentifier(c.Name); err != nil {
			return nil, fmt.Errorf("table %q: %w", table, err)
		}
	}

	t := &Table{Name: table, Columns: columns}
	if i.cache != nil {
		i.cache.Add(key, t)
		if i.recorder != nil {
			i.recorder.UpdateCacheSize(CacheName, i.cache.Len())
		}
	}

	i.logger.Debug("introspected table",
		"database", db.Name(),
		"table", table,
		"columns", len(columns),
		"primary_key", t.PrimaryKey(),
	)
	return t, nil
}

// Invalidate drops a cached schema.
func (i *Introspector) Invalidate(db *database.DB, table string) {
	if i.cache != nil {
		i.cache.Remove(db.Name() + "/" + table)
	}
}

func (i *Introspector) record(hit bool) {
	if i.recorder == nil {
		return
	}
	if hit {
		i.recorder.RecordCacheHit(CacheName)
	} else {
		i.recorder.RecordCacheMiss(CacheName)
	}
}

// ColumnNames is a convenience wrapper returning only names.
func (i *Introspector) ColumnNames(ctx context.Context, db *database.DB, table string) ([]string, error) {
	t, err := i.Describe(ctx, db, table)
	if err != nil {
		return nil, err
	}
	return t.ColumnNames(), nil
}

func readColumns(ctx context.Context, db *database.DB, table string) ([]Column, error) {
	switch db.Dialect() {
	case database.DialectSQLite:
		return readSQLiteColumns(ctx, db, table)
	case database.DialectPostgres:
		return readCatalogColumns(ctx, db, postgresColumnsQuery, table)
	case database.DialectMySQL:
		return readCatalogColumns(ctx, db, mysqlColumnsQuery, table)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", db.Dialect())
	}
}

// The table name is validated, and PRAGMA does not accept bound parameters.
func readSQLiteColumns(ctx context.Context, db *database.DB, table string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info("%s")`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, Column{Name: name, Type: colType, PrimaryKey: pk})
	}
	return columns, rows.Err()
}

const postgresColumnsQuery = `
SELECT c.column_name, c.data_type, COALESCE(k.ordinal_position, 0)
FROM information_schema.columns c
LEFT JOIN information_schema.table_constraints t
  ON t.table_schema = c.table_schema
 AND t.table_name = c.table_name
 AND t.constraint_type = 'PRIMARY KEY'
LEFT JOIN information_schema.key_column_usage k
  ON k.constraint_schema = t.constraint_schema
 AND k.constraint_name = t.constraint_name
 AND k.table_name = c.table_name
 AND k.column_name = c.column_name
WHERE c.table_schema = current_schema() AND c.table_name = $1
ORDER BY c.ordinal_position`

const mysqlColumnsQuery = `
SELECT COLUMN_NAME, DATA_TYPE,
       CASE WHEN COLUMN_KEY = 'PRI' THEN ORDINAL_POSITION ELSE 0 END
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`

func readCatalogColumns(ctx context.Context, db *database.DB, query, table string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type, &c.PrimaryKey); err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}
