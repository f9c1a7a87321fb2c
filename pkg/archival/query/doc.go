// Package query serves reads of archive tables to authorized callers.
//
// A request names a source table; rows come from its "_archive" companion.
// Optional startDate and endDate bound the policy's age column inclusively,
// rows are ordered by that column (ascending unless "desc" is asked for) and
// paginated with LIMIT size OFFSET page*size. Every value is a bound
// parameter; the table and column names are validated identifiers.
//
// Defaults:
//   - size: 100 (maximum 10000)
//   - page: 0
//   - sort: asc
package query
