// Package mover moves aging rows from a source table into its "_archive"
// companion in a separate database.
//
// A move runs in three steps: select the rows older than the threshold inside a
// source transaction, insert them into the archive in a transaction of its
// own, then delete them from the source and commit. Deletion is keyed by the
// primary key values captured at select time, so rows that start qualifying
// between the select and the delete are left for the next run. Tables without
// a primary key fall back to re-applying the age predicate.
//
// The two databases are never enlisted in a distributed transaction. Inserted
// and deleted counts are compared after every move and a mismatch is logged.
package mover
