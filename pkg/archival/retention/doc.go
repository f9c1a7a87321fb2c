// Package retention enforces retention policies.
//
// # Sweeps
//
// An Orchestrator runs a sweep over every stored policy. For each table it
// moves aging rows into the archive and then purges archive rows past their
// deletion age. Failures are isolated per table: they are logged, reported in
// the SweepResult and the sweep moves on. Only a failure to list policies
// aborts a sweep.
//
// Tables run one at a time in policy order by default. With Workers > 1 they
// run concurrently on a bounded pool; outcomes are still reported in policy
// order. Each table is bounded by TableTimeout.
//
// At most one sweep runs per process. RunSweep and Trigger return
// archival.ErrSweepInProgress otherwise.
//
// # Scheduling
//
// A Scheduler runs sweeps on a cron expression (default "0 1 * * *"):
//
//	orch := retention.NewOrchestrator(store, mover, purger, cfg)
//	sched := retention.NewScheduler(orch, "0 1 * * *")
//	if err := sched.Start(ctx); err != nil {
//	    return err
//	}
//	defer sched.Stop()
package retention
