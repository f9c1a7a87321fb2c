// Package database opens the SQL handles used by archivist.
//
// Three roles exist: the source database holding live tables, the archive
// database holding "_archive" companions, and the control database holding
// retention policies and access grants. Each may use a different driver:
//
//	sqlite3   github.com/mattn/go-sqlite3
//	sqlite    modernc.org/sqlite
//	pgx       github.com/jackc/pgx/v5 (postgres)
//	mysql     github.com/go-sql-driver/mysql
//
// A DB carries its Dialect and a goqu builder so callers can render
// dialect-correct SQL with bound parameters.
package database
