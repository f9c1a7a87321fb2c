// Package health serves the archivist's liveness, readiness and version
// endpoints.
//
// Liveness (/health) runs no checks. Readiness (/ready) runs every registered
// check concurrently, each bounded by the check timeout, and folds them:
//
//   - ready: every check passed
//   - degraded: only optional checks failed; answers 200
//   - unhealthy: a required check failed; answers 503
//
// The source, archive and control databases are required: without them no
// sweep or archive query can succeed. The sweep scheduler is optional, since
// archive queries are still served while scheduled sweeps are stopped.
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("source", health.DatabaseCheck(sourceDB))
//	checker.RegisterCheck("archive", health.DatabaseCheck(archiveDB))
//	checker.RegisterOptionalCheck("scheduler", health.SchedulerCheck(scheduler))
package health
