// Package policyfile manages retention policies and access grants declared
// in a YAML file.
//
// A policy file looks like:
//
//	policies:
//	  - table_name: events
//	    archive_after: 30
//	    archive_after_unit: DAYS
//	    delete_after: 1
//	    delete_after_unit: YEARS
//	    age_column: created_at
//	grants:
//	  - principal: alice
//	    tables: [events]
//
// Sync upserts everything the file declares into the control store. Entries
// created through the API are left alone unless pruning is enabled. Watcher
// re-runs the sync whenever the file changes.
package policyfile
