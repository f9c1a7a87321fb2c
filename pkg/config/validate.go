package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "source.dsn").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateDatabase("source", &cfg.Source, true)...)
	errs = append(errs, validateDatabase("archive", &cfg.Archive, true)...)
	errs = append(errs, validateDatabase("control", &cfg.Control, false)...)
	errs = append(errs, validateDistinctSQLite(cfg)...)
	errs = append(errs, validateArchival(&cfg.Archival)...)
	errs = append(errs, validatePolicies(&cfg.Policies)...)
	errs = append(errs, validateQuery(&cfg.Query)...)
	errs = append(errs, validateAPI(&cfg.API)...)
	errs = append(errs, validateSecurity(&cfg.Security)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

var validDrivers = map[string]bool{
	"sqlite3":  true,
	"sqlite":   true,
	"pgx":      true,
	"postgres": true,
	"mysql":    true,
}

func isSQLite(driver string) bool {
	d := strings.ToLower(driver)
	return d == "sqlite3" || d == "sqlite"
}

// validateDatabase validates one database section.
func validateDatabase(name string, cfg *DatabaseConfig, required bool) []FieldError {
	var errs []FieldError

	if !validDrivers[strings.ToLower(cfg.Driver)] {
		errs = append(errs, FieldError{
			Field:   name + ".driver",
			Message: fmt.Sprintf("invalid driver %q: must be 'sqlite3', 'sqlite', 'pgx', 'postgres' or 'mysql'", cfg.Driver),
		})
	}
	if required && cfg.DSN == "" {
		errs = append(errs, FieldError{
			Field:   name + ".dsn",
			Message: "dsn is required",
		})
	}
	if cfg.MaxOpenConns < 0 {
		errs = append(errs, FieldError{
			Field:   name + ".max_open_conns",
			Message: "max open connections must be non-negative",
		})
	}
	if cfg.MaxIdleConns < 0 {
		errs = append(errs, FieldError{
			Field:   name + ".max_idle_conns",
			Message: "max idle connections must be non-negative",
		})
	}
	if cfg.MaxOpenConns > 0 && cfg.MaxIdleConns > cfg.MaxOpenConns {
		errs = append(errs, FieldError{
			Field:   name + ".max_idle_conns",
			Message: "max idle connections cannot exceed max open connections",
		})
	}

	return errs
}

// validateDistinctSQLite rejects a source and archive that are the same
// sqlite file: the source transaction's read lock would block the archive
// commit.
func validateDistinctSQLite(cfg *Config) []FieldError {
	if !isSQLite(cfg.Source.Driver) || !isSQLite(cfg.Archive.Driver) || cfg.Source.DSN == "" {
		return nil
	}
	if sqlitePath(cfg.Source.DSN) == sqlitePath(cfg.Archive.DSN) {
		return []FieldError{{
			Field:   "archive.dsn",
			Message: "archive must be a different sqlite database than source",
		}}
	}
	return nil
}

func sqlitePath(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		dsn = dsn[:i]
	}
	return dsn
}

// validateArchival validates sweep settings.
func validateArchival(cfg *ArchivalConfig) []FieldError {
	var errs []FieldError

	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "archival.schedule",
			Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Schedule, err),
		})
	}
	if cfg.TableTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "archival.table_timeout",
			Message: "table timeout must be non-negative",
		})
	}
	if cfg.Workers < 1 || cfg.Workers > 64 {
		errs = append(errs, FieldError{
			Field:   "archival.workers",
			Message: "workers must be between 1 and 64",
		})
	}
	if cfg.DeleteChunkSize < 1 {
		errs = append(errs, FieldError{
			Field:   "archival.delete_chunk_size",
			Message: "delete chunk size must be positive",
		})
	}
	if cfg.SchemaCacheSize < 0 {
		errs = append(errs, FieldError{
			Field:   "archival.schema_cache_size",
			Message: "schema cache size must be non-negative",
		})
	}
	if cfg.SchemaCacheTTL < 0 {
		errs = append(errs, FieldError{
			Field:   "archival.schema_cache_ttl",
			Message: "schema cache ttl must be non-negative",
		})
	}

	return errs
}

// validatePolicies validates the policy file section.
func validatePolicies(cfg *PolicyFileConfig) []FieldError {
	var errs []FieldError

	if cfg.Watch && cfg.File == "" {
		errs = append(errs, FieldError{
			Field:   "policies.file",
			Message: "policy file is required when watch is enabled",
		})
	}
	if cfg.Prune && cfg.File == "" {
		errs = append(errs, FieldError{
			Field:   "policies.file",
			Message: "policy file is required when prune is enabled",
		})
	}
	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{
			Field:   "policies.debounce",
			Message: "debounce must be non-negative",
		})
	}

	return errs
}

// validateQuery validates archive query settings.
func validateQuery(cfg *QueryConfig) []FieldError {
	var errs []FieldError

	if cfg.DefaultPageSize < 1 {
		errs = append(errs, FieldError{
			Field:   "query.default_page_size",
			Message: "default page size must be positive",
		})
	}
	if cfg.MaxPageSize < 1 {
		errs = append(errs, FieldError{
			Field:   "query.max_page_size",
			Message: "max page size must be positive",
		})
	}
	if cfg.DefaultPageSize > cfg.MaxPageSize {
		errs = append(errs, FieldError{
			Field:   "query.default_page_size",
			Message: "default page size cannot exceed max page size",
		})
	}
	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "query.timeout",
			Message: "query timeout must be non-negative",
		})
	}

	return errs
}

// validateAPI validates HTTP server configuration.
func validateAPI(cfg *APIConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled && cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "api.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "api.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "api.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "api.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "api.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}
	if cfg.CORS.Enabled && cfg.CORS.AllowCredentials {
		for _, origin := range cfg.CORS.AllowedOrigins {
			if origin == "*" {
				errs = append(errs, FieldError{
					Field:   "api.cors.allowed_origins",
					Message: "wildcard origin cannot be combined with allow_credentials",
				})
				break
			}
		}
	}
	errs = append(errs, validateTLS(&cfg.TLS)...)

	return errs
}

// validateTLS validates the API listener's TLS settings.
func validateTLS(cfg *TLSConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}
	var errs []FieldError

	if cfg.CertFile == "" {
		errs = append(errs, FieldError{
			Field:   "api.tls.cert_file",
			Message: "certificate file is required when TLS is enabled",
		})
	}
	if cfg.KeyFile == "" {
		errs = append(errs, FieldError{
			Field:   "api.tls.key_file",
			Message: "key file is required when TLS is enabled",
		})
	}
	if cfg.MinVersion != "1.2" && cfg.MinVersion != "1.3" {
		errs = append(errs, FieldError{
			Field:   "api.tls.min_version",
			Message: fmt.Sprintf("unsupported TLS version %q (must be '1.2' or '1.3')", cfg.MinVersion),
		})
	}
	switch cfg.ClientAuth {
	case "require", "request", "verify_if_given":
	default:
		errs = append(errs, FieldError{
			Field:   "api.tls.client_auth",
			Message: fmt.Sprintf("invalid client auth %q (must be require, request or verify_if_given)", cfg.ClientAuth),
		})
	}

	return errs
}

// validateSecurity validates identity settings.
func validateSecurity(cfg *SecurityConfig) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(cfg.AdminRole) == "" {
		errs = append(errs, FieldError{
			Field:   "security.admin_role",
			Message: "admin role is required",
		})
	}
	if cfg.UsernameHeader == "" {
		errs = append(errs, FieldError{
			Field:   "security.username_header",
			Message: "username header is required",
		})
	}
	if cfg.UsernameHeader != "" && strings.EqualFold(cfg.UsernameHeader, cfg.RolesHeader) {
		errs = append(errs, FieldError{
			Field:   "security.roles_header",
			Message: "roles header must differ from username header",
		})
	}
	if cfg.Secrets.CacheTTL < 0 {
		errs = append(errs, FieldError{
			Field:   "security.secrets.cache_ttl",
			Message: "cache TTL must not be negative",
		})
	}
	if cfg.Secrets.CacheSize < 0 {
		errs = append(errs, FieldError{
			Field:   "security.secrets.cache_size",
			Message: "cache size must not be negative",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	for field, path := range map[string]string{
		"telemetry.health.liveness_path":  cfg.Health.LivenessPath,
		"telemetry.health.readiness_path": cfg.Health.ReadinessPath,
		"telemetry.health.version_path":   cfg.Health.VersionPath,
	} {
		if !strings.HasPrefix(path, "/") {
			errs = append(errs, FieldError{Field: field, Message: "path must start with /"})
		}
	}

	if cfg.Health.CheckTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.check_timeout",
			Message: "check timeout must be positive",
		})
	}
	if cfg.Health.CheckTimeout > 60*time.Second {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.check_timeout",
			Message: "check timeout exceeds reasonable limit (60s)",
		})
	}

	errs = append(errs, validateTracing(&cfg.Tracing)...)

	return errs
}

// validateTracing validates tracing configuration. Only enabled tracing is
// checked.
func validateTracing(cfg *TracingConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError

	if cfg.Exporter != "otlp" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.exporter",
			Message: fmt.Sprintf("unsupported exporter %q: must be 'otlp'", cfg.Exporter),
		})
	}
	if cfg.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "endpoint is required when tracing is enabled",
		})
	}

	switch cfg.Sampler {
	case "always", "never":
	case "ratio":
		if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: fmt.Sprintf("sample ratio must be between 0.0 and 1.0, got %v", cfg.SampleRatio),
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never' or 'ratio'", cfg.Sampler),
		})
	}

	return errs
}
