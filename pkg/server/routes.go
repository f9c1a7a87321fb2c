package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"mercator-hq/archivist/pkg/security/auth"
	"mercator-hq/archivist/pkg/telemetry/health"
	"mercator-hq/archivist/pkg/telemetry/tracing"
)

// APIPrefix is the mount point of the archival API.
const APIPrefix = "/api/v1/archival"

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(tracing.HTTPMiddleware)
	r.Use(LoggingMiddleware)
	if s.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORS.AllowedOrigins,
			AllowedMethods:   s.config.CORS.AllowedMethods,
			AllowedHeaders:   s.config.CORS.AllowedHeaders,
			ExposedHeaders:   s.config.CORS.ExposedHeaders,
			AllowCredentials: s.config.CORS.AllowCredentials,
			MaxAge:           s.config.CORS.MaxAge,
		}))
	}

	if s.opts.Health != nil {
		hc := s.telemetry.Health
		handlers := s.opts.Health.Handlers(health.BuildInfo{
			Version:   s.opts.Version,
			Commit:    s.opts.Commit,
			BuildTime: s.opts.BuildTime,
		})
		r.Get(hc.LivenessPath, handlers.Liveness)
		r.Get(hc.ReadinessPath, handlers.Readiness)
		r.Get(hc.VersionPath, handlers.Version)
	}

	if s.opts.Metrics != nil && s.telemetry.Metrics.Enabled {
		r.Method(http.MethodGet, s.telemetry.Metrics.Path, s.opts.Metrics.Handler())
	}

	h := &apiHandler{svc: s.opts.Service}
	identity := auth.NewHeaderMiddleware(s.security.UsernameHeader, s.security.RolesHeader)

	r.Route(APIPrefix, func(r chi.Router) {
		r.Use(identity.Handle)
		r.Use(UserContextMiddleware)

		r.Route("/configuration", func(r chi.Router) {
			r.Post("/", h.configurePolicy)
			r.Get("/", h.listPolicies)
			r.Get("/{tableName}", h.getPolicy)
			r.Delete("/{tableName}", h.deletePolicy)
		})

		r.Post("/run-now", h.runNow)

		r.Route("/assign-tables", func(r chi.Router) {
			r.Put("/", h.assignTables)
			r.Get("/", h.listGrants)
		})

		r.Get("/data/{tableName}", h.queryArchive)
	})

	return r
}
