package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/archivist/pkg/archival"
	"mercator-hq/archivist/pkg/archival/query"
	"mercator-hq/archivist/pkg/config"
	"mercator-hq/archivist/pkg/security/auth"
	sectls "mercator-hq/archivist/pkg/security/tls"
	"mercator-hq/archivist/pkg/telemetry/health"
)

// ArchivalService is the operation surface served under /api/v1/archival.
type ArchivalService interface {
	ConfigurePolicy(ctx context.Context, caller auth.Identity, policy archival.RetentionPolicy) (*archival.RetentionPolicy, error)
	ListPolicies(ctx context.Context, caller auth.Identity) ([]archival.RetentionPolicy, error)
	GetPolicy(ctx context.Context, caller auth.Identity, table string) (*archival.RetentionPolicy, error)
	DeletePolicy(ctx context.Context, caller auth.Identity, table string) error
	AssignTables(ctx context.Context, caller auth.Identity, grant archival.TableAccessGrant) (*archival.TableAccessGrant, error)
	ListGrants(ctx context.Context, caller auth.Identity) ([]archival.TableAccessGrant, error)
	TriggerSweep(ctx context.Context, caller auth.Identity) (string, error)
	QueryArchive(ctx context.Context, caller auth.Identity, req query.Request) ([]query.Record, error)
}

// MetricsHandler serves the Prometheus exposition.
type MetricsHandler interface {
	Handler() http.Handler
}

// Options carries the collaborators of a Server. Health and Metrics are
// optional; their endpoints are not mounted when nil.
type Options struct {
	Service   ArchivalService
	Health    *health.Checker
	Metrics   MetricsHandler
	Version   string
	Commit    string
	BuildTime string
}

// Server is the archivist HTTP API server.
type Server struct {
	config       *config.APIConfig
	security     *config.SecurityConfig
	telemetry    *config.TelemetryConfig
	opts         Options
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         string
}

// NewServer creates a new API server.
func NewServer(cfg *config.APIConfig, securityCfg *config.SecurityConfig, telemetryCfg *config.TelemetryConfig, opts Options) *Server {
	return &Server{
		config:       cfg,
		security:     securityCfg,
		telemetry:    telemetryCfg,
		opts:         opts,
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled, Stop is
// called or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	tlsConfig, err := sectls.ServerConfig(ctx, &s.config.TLS)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to configure TLS: %w", err)
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}

	s.httpServer = &http.Server{
		Handler:        s.setupRoutes(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}
	s.addr = ln.Addr().String()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting archival API server", "address", s.addr, "tls", tlsConfig != nil)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	case <-s.shutdownChan:
		slog.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Stop asks a running Start to shut down.
func (s *Server) Stop() {
	select {
	case <-s.shutdownChan:
	default:
		close(s.shutdownChan)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx := ctx
		if s.config.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
			defer cancel()
		}

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("archival API server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound listen address once Start has run.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}
