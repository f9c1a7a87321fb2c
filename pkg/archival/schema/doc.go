// Package schema discovers table columns at runtime so rows can be copied
// between databases without compile-time knowledge of their shape.
//
// Columns are returned in catalog order (PRAGMA table_info for SQLite,
// information_schema for PostgreSQL and MySQL) together with primary key
// membership. Results can be cached in an expiring LRU.
package schema
