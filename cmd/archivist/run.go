package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/archivist/pkg/archival/policyfile"
	"mercator-hq/archivist/pkg/archival/retention"
	"mercator-hq/archivist/pkg/cli"
	"mercator-hq/archivist/pkg/server"
	"mercator-hq/archivist/pkg/telemetry/health"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	noAPI         bool
	noScheduler   bool
	runOnStart    bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the archival API server and sweep scheduler",
	Long: `Start the archivist with the specified configuration.

The scheduler runs a sweep on the configured cron schedule. The HTTP API
serves policy configuration, table grants, on-demand sweeps and archive
reads, along with health, readiness and metrics endpoints.

Examples:
  # Start with default config
  archivist run

  # Start with custom config
  archivist run --config /etc/archivist/config.yaml

  # Override listen address and run one sweep immediately
  archivist run --listen 0.0.0.0:8080 --run-on-start

  # Scheduler only
  archivist run --no-api`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.noAPI, "no-api", false, "do not serve the HTTP API")
	runCmd.Flags().BoolVar(&runFlags.noScheduler, "no-scheduler", false, "do not run scheduled sweeps")
	runCmd.Flags().BoolVar(&runFlags.runOnStart, "run-on-start", false, "trigger one sweep at startup")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.API.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
		if err := setupLogging(cfg); err != nil {
			return err
		}
	}
	if runFlags.noAPI {
		cfg.API.Enabled = false
	}
	if runFlags.noScheduler {
		cfg.Archival.Enabled = false
	}
	if runFlags.runOnStart {
		cfg.Archival.RunOnStart = true
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer a.Close()
	// Background sweeps finish before the databases close.
	defer a.orchestrator.Wait()

	slog.Info("archivist starting",
		"version", Version,
		"config", cfgFile,
		"source_driver", cfg.Source.Driver,
		"archive_driver", cfg.Archive.Driver,
	)

	if cfg.Policies.File != "" {
		res, err := policyfile.LoadAndSync(ctx, a.store, cfg.Policies.File, cfg.Policies.Prune, slog.Default())
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("policy file: %w", err))
		}
		slog.Info("policy file applied", "policies", res.Policies, "grants", res.Grants, "pruned", len(res.Pruned))

		if cfg.Policies.Watch {
			watcher, err := policyfile.NewWatcher(cfg.Policies.File, a.store, cfg.Policies.Prune, cfg.Policies.Debounce, slog.Default())
			if err != nil {
				return cli.NewCommandError("run", err)
			}
			go func() {
				if err := watcher.Watch(ctx, nil); err != nil {
					slog.Error("policy file watcher stopped", "error", err)
				}
			}()
			defer watcher.Stop()
		}
	}

	scheduler := retention.NewScheduler(a.orchestrator, cfg.Archival.Schedule)
	if cfg.Archival.Enabled {
		if err := scheduler.Start(ctx); err != nil {
			return cli.NewCommandError("run", err)
		}
		defer scheduler.Stop()
		if next := scheduler.NextRun(); next != nil {
			slog.Info("next archival sweep", "at", next.Format(time.RFC3339))
		}
	}

	if cfg.Archival.RunOnStart {
		runID, err := a.orchestrator.Trigger(ctx)
		if err != nil {
			slog.Warn("startup sweep not started", "error", err)
		} else {
			slog.Info("startup sweep triggered", "run_id", runID)
		}
	}

	if !cfg.API.Enabled {
		slog.Info("HTTP API disabled, waiting for shutdown signal")
		<-ctx.Done()
		slog.Info("shutting down")
		return nil
	}

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	checker.RegisterCheck("source", health.DatabaseCheck(a.source))
	checker.RegisterCheck("archive", health.DatabaseCheck(a.archive))
	if a.control != nil {
		checker.RegisterCheck("control", health.DatabaseCheck(a.control))
	}
	if cfg.Archival.Enabled {
		checker.RegisterOptionalCheck("scheduler", health.SchedulerCheck(scheduler))
	}

	srv := server.NewServer(&cfg.API, &cfg.Security, &cfg.Telemetry, server.Options{
		Service:   a.service,
		Health:    checker,
		Metrics:   a.collector,
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
	})

	fmt.Fprintf(cmd.OutOrStdout(), "✓ API listening on %s\n", cfg.API.ListenAddress)
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Server stopped")
	return nil
}
