// Package archival holds the domain model shared by the archivist components.
//
// A RetentionPolicy names a source table, the age after which its rows move to
// the companion archive table (the source name with the "_archive" suffix), and
// the age after which archived rows are purged. Ages are expressed as a
// quantity and a TimeUnit and are resolved to an absolute cutoff instant with
// ComputeThreshold.
//
// Subpackages implement the moving parts:
//
//   - schema: column discovery per dialect
//   - mover: source to archive transfer for one table
//   - retention: archive purging, sweep orchestration and scheduling
//   - query: access-scoped reads of archive tables
//   - storage: persistence of policies and access grants
//   - policyfile: declarative policy files and hot reload
//   - service: the facade used by the HTTP API and the CLI
//
// Identifiers that end up in SQL (table and column names) are validated with
// ValidateIdentifier before use; all values are passed as bound parameters.
package archival
