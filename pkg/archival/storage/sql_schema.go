package storage

import (
	"fmt"
	"strings"

	"mercator-hq/archivist/pkg/database"
)

// SchemaVersion is the current control schema version.
const SchemaVersion = 1

// Control table names.
const (
	PoliciesTable      = "archival_criteria"
	GrantsTable        = "user_table_assignments"
	SchemaVersionTable = "archivist_schema_version"
)

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS archival_criteria (
    table_name VARCHAR(64) NOT NULL PRIMARY KEY,
    archive_after BIGINT NOT NULL,
    archival_time_unit VARCHAR(16) NOT NULL,
    delete_after BIGINT NOT NULL,
    delete_after_time_unit VARCHAR(16) NOT NULL,
    archival_column_name VARCHAR(64) NOT NULL,
    created_at %[1]s NOT NULL,
    updated_at %[1]s NOT NULL
);

CREATE TABLE IF NOT EXISTS user_table_assignments (
    user_name VARCHAR(255) NOT NULL PRIMARY KEY,
    table_names TEXT NOT NULL,
    created_at %[1]s NOT NULL,
    updated_at %[1]s NOT NULL
);

CREATE TABLE IF NOT EXISTS archivist_schema_version (
    version INTEGER NOT NULL PRIMARY KEY,
    applied_at %[1]s NOT NULL
);
`

var timestampTypes = map[database.Dialect]string{
	database.DialectSQLite:   "TIMESTAMP",
	database.DialectPostgres: "TIMESTAMPTZ",
	database.DialectMySQL:    "DATETIME(6)",
}

// schemaStatements returns the DDL for a dialect, one statement per entry.
// MySQL rejects multi-statement Exec by default.
func schemaStatements(d database.Dialect) ([]string, error) {
	ts, ok := timestampTypes[d]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect %q", d)
	}
	return splitStatements(fmt.Sprintf(schemaTemplate, ts)), nil
}

func splitStatements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
