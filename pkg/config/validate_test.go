package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantField string
	}{
		{
			name:   "valid",
			modify: func(*Config) {},
		},
		{
			name:      "unknown driver",
			modify:    func(c *Config) { c.Archive.Driver = "oracle" },
			wantField: "archive.driver",
		},
		{
			name:      "missing archive dsn",
			modify:    func(c *Config) { c.Archive.DSN = "" },
			wantField: "archive.dsn",
		},
		{
			name: "control dsn optional",
			modify: func(c *Config) {
				c.Control.DSN = ""
			},
		},
		{
			name:      "idle above open",
			modify:    func(c *Config) { c.Source.MaxOpenConns = 2; c.Source.MaxIdleConns = 5 },
			wantField: "source.max_idle_conns",
		},
		{
			name: "same sqlite file",
			modify: func(c *Config) {
				c.Source.DSN = "file:data.db?_busy_timeout=5000"
				c.Archive.DSN = "data.db"
			},
			wantField: "archive.dsn",
		},
		{
			name: "same dsn on postgres",
			modify: func(c *Config) {
				c.Source = DatabaseConfig{Driver: "pgx", DSN: "postgres://db/app"}
				c.Archive = DatabaseConfig{Driver: "pgx", DSN: "postgres://db/app"}
			},
		},
		{
			name:      "bad cron",
			modify:    func(c *Config) { c.Archival.Schedule = "61 * * * *" },
			wantField: "archival.schedule",
		},
		{
			name:   "cron descriptor",
			modify: func(c *Config) { c.Archival.Schedule = "@hourly" },
		},
		{
			name:      "zero workers",
			modify:    func(c *Config) { c.Archival.Workers = 0 },
			wantField: "archival.workers",
		},
		{
			name:      "negative chunk",
			modify:    func(c *Config) { c.Archival.DeleteChunkSize = -1 },
			wantField: "archival.delete_chunk_size",
		},
		{
			name:      "negative table timeout",
			modify:    func(c *Config) { c.Archival.TableTimeout = -time.Second },
			wantField: "archival.table_timeout",
		},
		{
			name:      "watch without file",
			modify:    func(c *Config) { c.Policies.Watch = true },
			wantField: "policies.file",
		},
		{
			name:      "default page above max",
			modify:    func(c *Config) { c.Query.DefaultPageSize = 500; c.Query.MaxPageSize = 100 },
			wantField: "query.default_page_size",
		},
		{
			name:      "missing listen address",
			modify:    func(c *Config) { c.API.ListenAddress = "" },
			wantField: "api.listen_address",
		},
		{
			name: "listen address not needed when api disabled",
			modify: func(c *Config) {
				c.API.Enabled = false
				c.API.ListenAddress = ""
			},
		},
		{
			name: "wildcard origin with credentials",
			modify: func(c *Config) {
				c.API.CORS.Enabled = true
				c.API.CORS.AllowCredentials = true
			},
			wantField: "api.cors.allowed_origins",
		},
		{
			name:      "blank admin role",
			modify:    func(c *Config) { c.Security.AdminRole = "  " },
			wantField: "security.admin_role",
		},
		{
			name:      "same identity headers",
			modify:    func(c *Config) { c.Security.RolesHeader = "x-username" },
			wantField: "security.roles_header",
		},
		{
			name:      "bad log level",
			modify:    func(c *Config) { c.Telemetry.Logging.Level = "trace" },
			wantField: "telemetry.logging.level",
		},
		{
			name:      "bad log format",
			modify:    func(c *Config) { c.Telemetry.Logging.Format = "xml" },
			wantField: "telemetry.logging.format",
		},
		{
			name:      "relative metrics path",
			modify:    func(c *Config) { c.Telemetry.Metrics.Path = "metrics" },
			wantField: "telemetry.metrics.path",
		},
		{
			name:      "relative readiness path",
			modify:    func(c *Config) { c.Telemetry.Health.ReadinessPath = "ready" },
			wantField: "telemetry.health.readiness_path",
		},
		{
			name: "tracing disabled ignores sampler",
			modify: func(c *Config) {
				c.Telemetry.Tracing.Sampler = "sometimes"
			},
		},
		{
			name: "tracing bad sampler",
			modify: func(c *Config) {
				c.Telemetry.Tracing.Enabled = true
				c.Telemetry.Tracing.Sampler = "sometimes"
			},
			wantField: "telemetry.tracing.sampler",
		},
		{
			name: "tracing ratio out of range",
			modify: func(c *Config) {
				c.Telemetry.Tracing.Enabled = true
				c.Telemetry.Tracing.Sampler = "ratio"
				c.Telemetry.Tracing.SampleRatio = 1.5
			},
			wantField: "telemetry.tracing.sample_ratio",
		},
		{
			name: "tls without key",
			modify: func(c *Config) {
				c.API.TLS.Enabled = true
				c.API.TLS.CertFile = "server.crt"
			},
			wantField: "api.tls.key_file",
		},
		{
			name: "tls 1.1",
			modify: func(c *Config) {
				c.API.TLS = TLSConfig{Enabled: true, CertFile: "a", KeyFile: "b", MinVersion: "1.1", ClientAuth: "require"}
			},
			wantField: "api.tls.min_version",
		},
		{
			name:      "negative secret cache ttl",
			modify:    func(c *Config) { c.Security.Secrets.CacheTTL = -time.Second },
			wantField: "security.secrets.cache_ttl",
		},
		{
			name:      "check timeout too long",
			modify:    func(c *Config) { c.Telemetry.Health.CheckTimeout = 2 * time.Minute },
			wantField: "telemetry.health.check_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := MinimalConfig()
			tt.modify(cfg)

			err := Validate(cfg)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("Validate() errors = %v, want one for %s", verr.Errors, tt.wantField)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "source.dsn", Message: "dsn is required"}}}
	if got := single.Error(); got != "configuration validation failed: source.dsn: dsn is required" {
		t.Errorf("Error() = %q", got)
	}

	multi := ValidationError{Errors: []FieldError{
		{Field: "a", Message: "x"},
		{Field: "b", Message: "y"},
	}}
	got := multi.Error()
	if !strings.Contains(got, "2 errors") || !strings.Contains(got, "  - a: x") || !strings.Contains(got, "  - b: y") {
		t.Errorf("Error() = %q", got)
	}

	if got := (ValidationError{}).Error(); got != "configuration validation failed" {
		t.Errorf("Error() = %q", got)
	}
}
