package config

import "time"

// Config is the root configuration structure for the archivist.
// It contains the three database connections, the sweep and query settings,
// the HTTP API, security and telemetry sections.
type Config struct {
	// Source is the live database rows are archived from.
	Source DatabaseConfig `yaml:"source"`

	// Archive is the database holding the "<table>_archive" tables.
	Archive DatabaseConfig `yaml:"archive"`

	// Control stores retention policies and access grants. When its DSN is
	// empty the source database is used.
	Control DatabaseConfig `yaml:"control"`

	// Archival contains sweep scheduling and execution settings.
	Archival ArchivalConfig `yaml:"archival"`

	// Policies configures the optional declarative policy file.
	Policies PolicyFileConfig `yaml:"policies"`

	// Query contains archive read settings.
	Query QueryConfig `yaml:"query"`

	// API contains HTTP server configuration.
	API APIConfig `yaml:"api"`

	// Security contains the trusted identity header and admin role settings.
	Security SecurityConfig `yaml:"security"`

	// Telemetry contains configuration for logging, metrics and health checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DatabaseConfig describes one database connection.
type DatabaseConfig struct {
	// Driver is the database/sql driver name.
	// Options: "sqlite3", "sqlite", "pgx", "mysql"
	// Default: "sqlite3"
	Driver string `yaml:"driver"`

	// DSN is the driver-specific data source name.
	DSN string `yaml:"dsn"`

	// MaxOpenConns limits open connections (0 = unlimited).
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns limits idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// ConnMaxLifetime bounds how long a connection is reused.
	// Default: 30m
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// ArchivalConfig contains sweep settings.
type ArchivalConfig struct {
	// Enabled controls whether the scheduler runs sweeps.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Schedule is a standard 5-field cron expression.
	// Default: "0 1 * * *" (daily at 01:00)
	Schedule string `yaml:"schedule"`

	// RunOnStart triggers one sweep when the server starts.
	// Default: false
	RunOnStart bool `yaml:"run_on_start"`

	// TableTimeout bounds the move and purge of a single table.
	// Default: 10m
	TableTimeout time.Duration `yaml:"table_timeout"`

	// Workers is the number of tables processed concurrently.
	// Default: 1 (sequential, in policy order)
	Workers int `yaml:"workers"`

	// DeleteChunkSize is the number of primary keys per source DELETE.
	// Default: 500
	DeleteChunkSize int `yaml:"delete_chunk_size"`

	// SchemaCacheSize is the number of described tables kept in memory.
	// Default: 256
	SchemaCacheSize int `yaml:"schema_cache_size"`

	// SchemaCacheTTL is how long a described table stays cached.
	// Default: 5m
	SchemaCacheTTL time.Duration `yaml:"schema_cache_ttl"`
}

// PolicyFileConfig configures the declarative policy file.
type PolicyFileConfig struct {
	// File is the path of the YAML policy file. Empty disables it.
	File string `yaml:"file"`

	// Watch re-syncs the file when it changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// Prune deletes stored policies the file does not declare.
	// Default: false
	Prune bool `yaml:"prune"`

	// Debounce is the quiet period before a change is applied.
	// Default: 250ms
	Debounce time.Duration `yaml:"debounce"`
}

// QueryConfig contains archive read settings.
type QueryConfig struct {
	// DefaultPageSize is used when a request has no size.
	// Default: 100
	DefaultPageSize int `yaml:"default_page_size"`

	// MaxPageSize is the largest page a request may ask for.
	// Default: 10000
	MaxPageSize int `yaml:"max_page_size"`

	// Timeout bounds a single archive query.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`
}

// APIConfig contains configuration for the HTTP server.
type APIConfig struct {
	// Enabled controls whether the HTTP API is served by "run".
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 60s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`

	// TLS serves the API over HTTPS when enabled.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig configures HTTPS for the API listener.
type TLSConfig struct {
	// Enabled switches the listener to TLS.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile and KeyFile are PEM-encoded paths.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// MinVersion is "1.2" or "1.3".
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`

	// ReloadInterval is how often the pair is checked for renewal.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval"`

	// ClientCAFile, when set, requires client certificates signed by it.
	ClientCAFile string `yaml:"client_ca_file"`

	// ClientAuth is require, request or verify_if_given.
	// Default: "require"
	ClientAuth string `yaml:"client_auth"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS is enabled.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins for CORS requests.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods for CORS requests.
	// Default: ["GET", "POST", "PUT", "DELETE", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed HTTP headers for CORS requests.
	// Default: ["Content-Type", "X-Request-ID", "X-Username", "X-Roles"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders is a list of headers that are exposed to the client.
	// Default: ["X-Request-ID"]
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the maximum age (in seconds) for preflight request cache.
	// Default: 3600
	MaxAge int `yaml:"max_age"`

	// AllowCredentials controls whether credentials are allowed.
	// Default: false
	AllowCredentials bool `yaml:"allow_credentials"`
}

// SecurityConfig contains identity settings. Identity is asserted by an
// upstream gateway through trusted headers.
type SecurityConfig struct {
	// AdminRole is the role that bypasses table grants.
	// Default: "ADMIN"
	AdminRole string `yaml:"admin_role"`

	// UsernameHeader carries the caller's principal name.
	// Default: "X-Username"
	UsernameHeader string `yaml:"username_header"`

	// RolesHeader carries the caller's comma-separated roles.
	// Default: "X-Roles"
	RolesHeader string `yaml:"roles_header"`

	// Secrets resolves ${secret:name} references in database DSNs.
	Secrets SecretsConfig `yaml:"secrets"`
}

// SecretsConfig configures the secret providers consulted for DSN references.
// The directory provider is tried before the environment.
type SecretsConfig struct {
	// EnvPrefix namespaces secret environment variables: the secret
	// "source-password" is read from ARCHIVIST_SECRET_SOURCE_PASSWORD.
	// Default: "ARCHIVIST_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Directory holds one file per secret, mode 0600 or 0400. Optional.
	Directory string `yaml:"directory"`

	// CacheTTL is how long resolved secrets are kept in memory.
	// Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// CacheSize bounds the number of cached secrets.
	// Default: 64
	CacheSize int `yaml:"cache_size"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactSecrets masks database passwords and tokens in logs.
	// Default: true
	RedactSecrets bool `yaml:"redact_secrets"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "archivist"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "archival"
	Subsystem string `yaml:"subsystem"`

	// TableDurationBuckets defines histogram buckets for per-table
	// processing time (seconds).
	// Default: [0.1, 0.5, 1, 5, 15, 60, 300, 900]
	TableDurationBuckets []float64 `yaml:"table_duration_buckets"`

	// QueryDurationBuckets defines histogram buckets for archive queries
	// (seconds).
	// Default: [0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30]
	QueryDurationBuckets []float64 `yaml:"query_duration_buckets"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// VersionPath is the path for the version information endpoint.
	// Default: "/version"
	VersionPath string `yaml:"version_path"`

	// CheckTimeout is the timeout for individual database pings.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Exporter selects the span exporter.
	// Options: "otlp"
	// Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS towards the collector.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// Sampler is the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces kept by the "ratio" sampler.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "archivist"
	ServiceName string `yaml:"service_name"`
}
