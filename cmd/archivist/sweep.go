package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/archivist/pkg/cli"
)

var sweepFlags struct {
	noProgress bool
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one archival sweep and print the outcome",
	Long: `Run one sweep synchronously: for every retention policy, move aging
rows into the archive and purge expired archive rows.

The command exits with status 3 when at least one table failed.

Examples:
  archivist sweep
  archivist sweep --output json`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().BoolVar(&sweepFlags.noProgress, "no-progress", false, "do not draw a progress bar")
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("sweep", err)
	}
	defer a.Close()

	orchestrator := a.orchestrator
	if !sweepFlags.noProgress {
		policies, err := a.store.ListPolicies(ctx)
		if err != nil {
			return cli.NewCommandError("sweep", err)
		}
		progress := cli.NewSweepProgress(cli.NewProgressReporter(os.Stderr), int64(len(policies)), a.collector)
		orchestrator = a.newOrchestrator(progress)
	}

	result, err := orchestrator.RunSweep(ctx)
	if err != nil {
		return cli.NewCommandError("sweep", err)
	}

	if outputFormat == string(cli.FormatJSON) {
		err = printResult(cmd, result)
	} else {
		err = printResult(cmd, cli.SweepTable{SweepResult: result})
	}
	if err != nil {
		return err
	}

	if n := result.Failures(); n > 0 {
		return fmt.Errorf("run %s: %d of %d tables failed: %w", result.RunID, n, len(result.Outcomes), cli.ErrPartialSweep)
	}
	return nil
}
