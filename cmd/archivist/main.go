// Archivist moves aging rows from live tables into archive tables on another
// database and purges archived rows once they expire.
//
// Usage:
//
//	# Start the API server and the sweep scheduler
//	archivist run --config /etc/archivist/config.yaml
//
//	# Run one sweep now and print the outcome per table
//	archivist sweep
//
//	# Read a page of an archive table
//	archivist query orders --start 2025-01-01 --end 2025-06-30 --size 50
//
//	# Manage retention policies and table grants
//	archivist policy set orders --archive-after 90 --archive-unit DAYS --delete-after 7 --delete-unit YEARS
//	archivist grant set alice orders,invoices
//
//	# Check a configuration file
//	archivist validate
package main

func main() {
	Execute()
}
