package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/archivist/pkg/archival/mover"
	"mercator-hq/archivist/pkg/archival/query"
	"mercator-hq/archivist/pkg/archival/retention"
	"mercator-hq/archivist/pkg/archival/schema"
	"mercator-hq/archivist/pkg/archival/service"
	"mercator-hq/archivist/pkg/archival/storage"
	"mercator-hq/archivist/pkg/cli"
	"mercator-hq/archivist/pkg/config"
	"mercator-hq/archivist/pkg/database"
	"mercator-hq/archivist/pkg/security/auth"
	"mercator-hq/archivist/pkg/security/secrets"
	"mercator-hq/archivist/pkg/telemetry/logging"
	"mercator-hq/archivist/pkg/telemetry/metrics"
	"mercator-hq/archivist/pkg/telemetry/tracing"
)

// app holds the components shared by the commands.
type app struct {
	cfg *config.Config

	source  *database.DB
	archive *database.DB
	control *database.DB // nil when policies live in the source database

	store        storage.Store
	introspector *schema.Introspector
	collector    *metrics.Collector
	tracer       *tracing.Tracer
	authz        *auth.Authorizer
	gateway      *query.Gateway
	orchestrator *retention.Orchestrator
	service      *service.Service
}

// loadConfig loads the config file with env overrides and installs the
// logger it describes.
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError(cfgFile, err.Error())
	}
	cfg := config.GetConfig()
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if err := setupLogging(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) error {
	logger, err := logging.New(logging.Config{
		Level:         cfg.Telemetry.Logging.Level,
		Format:        cfg.Telemetry.Logging.Format,
		AddSource:     cfg.Telemetry.Logging.AddSource,
		RedactSecrets: cfg.Telemetry.Logging.RedactSecrets,
	})
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)
	return nil
}

func databaseConfig(name string, c config.DatabaseConfig) database.Config {
	return database.Config{
		Name:            name,
		Driver:          c.Driver,
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

// newApp opens the databases and wires every component.
func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	secretManager, err := secrets.NewManagerFromConfig(&cfg.Security.Secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets: %w", err)
	}
	open := func(name string, c config.DatabaseConfig) (*database.DB, error) {
		dbCfg := databaseConfig(name, c)
		if secrets.HasReferences(dbCfg.DSN) {
			if dbCfg.DSN, err = secretManager.ResolveReferences(ctx, dbCfg.DSN); err != nil {
				return nil, fmt.Errorf("%s dsn: %w", name, err)
			}
		}
		return database.Open(ctx, dbCfg)
	}

	if a.source, err = open("source", cfg.Source); err != nil {
		return nil, err
	}
	if a.archive, err = open("archive", cfg.Archive); err != nil {
		return nil, err
	}

	controlDB := a.source
	if cfg.Control.DSN != "" {
		if a.control, err = open("control", cfg.Control); err != nil {
			return nil, err
		}
		controlDB = a.control
	}
	if a.store, err = storage.NewSQLStore(ctx, controlDB); err != nil {
		return nil, fmt.Errorf("failed to initialize control store: %w", err)
	}

	a.collector = metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
	if err = a.collector.RegisterRuntimeCollectors(); err != nil {
		return nil, fmt.Errorf("failed to register runtime metrics: %w", err)
	}

	if a.tracer, err = tracing.New(&cfg.Telemetry.Tracing, Version); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	a.introspector = schema.NewIntrospector(schema.Options{
		CacheSize: cfg.Archival.SchemaCacheSize,
		CacheTTL:  cfg.Archival.SchemaCacheTTL,
		Recorder:  a.collector,
	})

	a.authz = auth.NewAuthorizer(a.store, cfg.Security.AdminRole)
	a.gateway = query.NewGateway(a.archive, a.store, a.authz,
		query.Limits{DefaultPageSize: cfg.Query.DefaultPageSize, MaxPageSize: cfg.Query.MaxPageSize},
		query.WithTimeout(cfg.Query.Timeout),
		query.WithRecorder(a.collector),
	)
	a.orchestrator = a.newOrchestrator(a.collector)
	a.service = service.New(a.store, a.authz, a.orchestrator, a.gateway, slog.Default())

	return a, nil
}

// newOrchestrator builds an orchestrator reporting to recorder.
func (a *app) newOrchestrator(recorder retention.Recorder) *retention.Orchestrator {
	m := mover.New(a.source, a.archive, a.introspector,
		mover.WithDeleteChunkSize(a.cfg.Archival.DeleteChunkSize))
	p := retention.NewPurger(a.archive, a.introspector)
	return retention.NewOrchestrator(a.store, m, p, &retention.Config{
		TableTimeout: a.cfg.Archival.TableTimeout,
		Workers:      a.cfg.Archival.Workers,
	}, retention.WithRecorder(recorder))
}

// operator is the identity of a trusted CLI caller.
func (a *app) operator() auth.Identity {
	return auth.Identity{Username: "cli", Roles: []string{a.cfg.Security.AdminRole}}
}

// Close flushes spans and closes every database handle.
func (a *app) Close() error {
	var errs []error
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(context.Background()))
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	for _, db := range []*database.DB{a.control, a.archive, a.source} {
		if db != nil {
			errs = append(errs, db.Close())
		}
	}
	return errors.Join(errs...)
}

// withApp loads config, wires an app and runs fn with a signal-aware context.
func withApp(command string, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return cli.NewCommandError(command, err)
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		return cli.NewCommandError(command, err)
	}
	return nil
}
