package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanSweep = "archival.sweep"
	SpanTable = "archival.table"
	SpanQuery = "archival.query"
)

// Attribute keys under the "archivist.*" namespace.
const (
	AttrRunID         = "archivist.run_id"
	AttrTable         = "archivist.table"
	AttrArchiveTable  = "archivist.archive_table"
	AttrArchivedCount = "archivist.archived_count"
	AttrDeletedCount  = "archivist.deleted_count"
	AttrMismatch      = "archivist.count_mismatch"
	AttrTablesTotal   = "archivist.tables"
	AttrUser          = "archivist.user"
	AttrPage          = "archivist.query.page"
	AttrSize          = "archivist.query.size"
	AttrRows          = "archivist.query.rows"
)

// TableAttributes identifies one table within a sweep.
func TableAttributes(runID, table string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrRunID, runID),
		attribute.String(AttrTable, table),
	}
}

// SetTableOutcome records the counts of a finished table run.
func SetTableOutcome(span trace.Span, archived, deleted int64, mismatch bool) {
	span.SetAttributes(
		attribute.Int64(AttrArchivedCount, archived),
		attribute.Int64(AttrDeletedCount, deleted),
		attribute.Bool(AttrMismatch, mismatch),
	)
}

// QueryAttributes describes an archive read.
func QueryAttributes(user, table string, page, size int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrUser, user),
		attribute.String(AttrTable, table),
		attribute.Int(AttrPage, page),
		attribute.Int(AttrSize, size),
	}
}
