// Package service ties the control store, the access rules, the sweep
// orchestrator and the archive query gateway into the operations exposed
// over HTTP and on the command line.
package service
