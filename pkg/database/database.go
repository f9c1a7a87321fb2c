package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"    // register goqu dialect
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // register goqu dialect
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // register goqu dialect
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver (cgo)
	_ "modernc.org/sqlite"          // sqlite driver (pure Go)
)

// Supported driver names.
const (
	DriverSQLite3  = "sqlite3" // github.com/mattn/go-sqlite3
	DriverSQLite   = "sqlite"  // modernc.org/sqlite
	DriverPostgres = "pgx"     // github.com/jackc/pgx/v5/stdlib
	DriverMySQL    = "mysql"   // github.com/go-sql-driver/mysql
)

// Dialect identifies the SQL flavour spoken by a database.
type Dialect string

// Supported dialects.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

var driverDialects = map[string]Dialect{
	DriverSQLite3:  DialectSQLite,
	DriverSQLite:   DialectSQLite,
	DriverPostgres: DialectPostgres,
	"postgres":     DialectPostgres,
	DriverMySQL:    DialectMySQL,
}

// goqu registers its sqlite dialect as "sqlite3".
var goquDialects = map[Dialect]string{
	DialectSQLite:   "sqlite3",
	DialectPostgres: "postgres",
	DialectMySQL:    "mysql",
}

// Config describes one database connection.
type Config struct {
	// Name labels the database in logs and errors ("source", "archive", "control").
	Name string

	// Driver is one of sqlite3, sqlite, pgx (or postgres) and mysql.
	Driver string

	// DSN is passed to the driver. For mysql, parseTime is always enabled.
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DB is a *sql.DB that knows its dialect.
type DB struct {
	*sql.DB
	name    string
	driver  string
	dialect Dialect
	builder goqu.DialectWrapper
}

// DialectFor returns the dialect spoken by a driver.
func DialectFor(driver string) (Dialect, error) {
	d, ok := driverDialects[strings.ToLower(driver)]
	if !ok {
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}

// Open opens and pings a database.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%s database: dsn is required", cfg.Name)
	}

	var sqlDB *sql.DB
	switch dialect {
	case DialectPostgres:
		connConfig, err := pgx.ParseConfig(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("%s database: invalid postgres dsn: %w", cfg.Name, err)
		}
		sqlDB = stdlib.OpenDB(*connConfig)
	case DialectMySQL:
		dsn, err := NormalizeMySQLDSN(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("%s database: %w", cfg.Name, err)
		}
		sqlDB, err = sql.Open(DriverMySQL, dsn)
		if err != nil {
			return nil, fmt.Errorf("%s database: failed to open: %w", cfg.Name, err)
		}
	default:
		sqlDB, err = sql.Open(strings.ToLower(cfg.Driver), cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("%s database: failed to open: %w", cfg.Name, err)
		}
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	db, err := Wrap(cfg.Name, cfg.Driver, sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%s database: ping failed: %w", cfg.Name, err)
	}

	return db, nil
}

// Wrap adopts an already opened handle.
func Wrap(name, driver string, sqlDB *sql.DB) (*DB, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &DB{
		DB:      sqlDB,
		name:    name,
		driver:  strings.ToLower(driver),
		dialect: dialect,
		builder: goqu.Dialect(goquDialects[dialect]),
	}, nil
}

// NormalizeMySQLDSN forces parseTime so DATETIME columns scan into time.Time,
// and reads them as UTC unless the DSN names a location.
func NormalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	return cfg.FormatDSN(), nil
}

// Name returns the label given at open time.
func (db *DB) Name() string {
	return db.name
}

// Driver returns the database/sql driver name.
func (db *DB) Driver() string {
	return db.driver
}

// Dialect returns the SQL dialect.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Builder returns a goqu builder for the database's dialect. Datasets it
// creates are not bound to the connection; render them with ToSQL.
func (db *DB) Builder() goqu.DialectWrapper {
	return db.builder
}

// Queryer is implemented by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Execer is implemented by *sql.DB, *sql.Conn and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Normalize converts driver-specific scan results into portable values:
// []byte becomes string.
func Normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
