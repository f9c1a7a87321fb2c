// Package storage persists retention policies and table access grants.
//
// SQLStore keeps them in two control tables on any supported database:
//
//	archival_criteria       one row per source table
//	user_table_assignments  one row per principal, tables comma-separated
//
// Both are keyed by natural identifiers and written with upsert semantics.
// MemoryStore offers the same behavior without a database.
package storage
