/*
Package cli provides command-line interface utilities for the archivist.

The cli package includes output formatters, progress reporting, exit codes
and signal handling used by the archivist command.

Output Formatting:

Policies, grants, sweep outcomes and archive rows implement Tabular and can
be printed as an aligned table, JSON or CSV:

	format, err := cli.ParseOutputFormat(flagOutput)
	if err != nil {
		return err
	}
	formatter := cli.NewFormatter(format)
	return formatter.FormatTo(os.Stdout, cli.PolicyTable(policies))

Progress Reporting:

A SweepProgress plugs into the orchestrator as its recorder and advances a
progress bar as tables finish:

	progress := cli.NewSweepProgress(cli.NewProgressReporter(os.Stderr), int64(len(policies)), collector)

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
*/
package cli
