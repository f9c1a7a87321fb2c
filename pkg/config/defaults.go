package config

import "time"

// Default values for configuration fields.
const (
	// Database defaults
	DefaultDatabaseDriver  = "sqlite3"
	DefaultMaxOpenConns    = 10
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = 30 * time.Minute

	// Archival defaults
	DefaultArchivalEnabled = true
	DefaultSchedule        = "0 1 * * *"
	DefaultTableTimeout    = 10 * time.Minute
	DefaultWorkers         = 1
	DefaultDeleteChunkSize = 500
	DefaultSchemaCacheSize = 256
	DefaultSchemaCacheTTL  = 5 * time.Minute

	// Policy file defaults
	DefaultPolicyDebounce = 250 * time.Millisecond

	// Query defaults
	DefaultQueryPageSize    = 100
	DefaultQueryMaxPageSize = 10000
	DefaultQueryTimeout     = 30 * time.Second

	// API defaults
	DefaultAPIEnabled      = true
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB
	DefaultCORSMaxAge      = 3600
	DefaultTLSMinVersion   = "1.3"
	DefaultTLSReload       = 5 * time.Minute
	DefaultTLSClientAuth   = "require"

	// Security defaults
	DefaultAdminRole      = "ADMIN"
	DefaultUsernameHeader = "X-Username"
	DefaultRolesHeader    = "X-Roles"
	DefaultSecretPrefix   = "ARCHIVIST_SECRET_"
	DefaultSecretCacheTTL = 5 * time.Minute
	DefaultSecretCacheMax = 64

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultRedactSecrets      = true
	DefaultMetricsEnabled     = true
	DefaultPrometheusPath     = "/metrics"
	DefaultMetricsNamespace   = "archivist"
	DefaultMetricsSubsystem   = "archival"
	DefaultLivenessPath       = "/health"
	DefaultReadinessPath      = "/ready"
	DefaultVersionPath        = "/version"
	DefaultHealthCheckTimeout = 5 * time.Second
	DefaultTracingExporter    = "otlp"
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingTimeout     = 10 * time.Second
	DefaultTracingSampler     = "always"
	DefaultTracingSampleRatio = 1.0
	DefaultServiceName        = "archivist"
)

// Default returns a Config with every default applied, including the boolean
// switches that default to true. LoadConfig decodes the YAML file over it.
func Default() *Config {
	cfg := &Config{}
	cfg.Archival.Enabled = DefaultArchivalEnabled
	cfg.API.Enabled = DefaultAPIEnabled
	cfg.Telemetry.Logging.RedactSecrets = DefaultRedactSecrets
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Database defaults
	for _, db := range []*DatabaseConfig{&cfg.Source, &cfg.Archive, &cfg.Control} {
		applyDatabaseDefaults(db)
	}

	// Archival defaults
	if cfg.Archival.Schedule == "" {
		cfg.Archival.Schedule = DefaultSchedule
	}
	if cfg.Archival.TableTimeout == 0 {
		cfg.Archival.TableTimeout = DefaultTableTimeout
	}
	if cfg.Archival.Workers == 0 {
		cfg.Archival.Workers = DefaultWorkers
	}
	if cfg.Archival.DeleteChunkSize == 0 {
		cfg.Archival.DeleteChunkSize = DefaultDeleteChunkSize
	}
	if cfg.Archival.SchemaCacheSize == 0 {
		cfg.Archival.SchemaCacheSize = DefaultSchemaCacheSize
	}
	if cfg.Archival.SchemaCacheTTL == 0 {
		cfg.Archival.SchemaCacheTTL = DefaultSchemaCacheTTL
	}

	// Policy file defaults
	if cfg.Policies.Debounce == 0 {
		cfg.Policies.Debounce = DefaultPolicyDebounce
	}

	// Query defaults
	if cfg.Query.DefaultPageSize == 0 {
		cfg.Query.DefaultPageSize = DefaultQueryPageSize
	}
	if cfg.Query.MaxPageSize == 0 {
		cfg.Query.MaxPageSize = DefaultQueryMaxPageSize
	}
	if cfg.Query.Timeout == 0 {
		cfg.Query.Timeout = DefaultQueryTimeout
	}

	// API defaults
	if cfg.API.ListenAddress == "" {
		cfg.API.ListenAddress = DefaultListenAddress
	}
	if cfg.API.ReadTimeout == 0 {
		cfg.API.ReadTimeout = DefaultReadTimeout
	}
	if cfg.API.WriteTimeout == 0 {
		cfg.API.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.API.IdleTimeout == 0 {
		cfg.API.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.API.ShutdownTimeout == 0 {
		cfg.API.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.API.MaxHeaderBytes == 0 {
		cfg.API.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	applyCORSDefaults(&cfg.API.CORS)
	if cfg.API.TLS.MinVersion == "" {
		cfg.API.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.API.TLS.ReloadInterval == 0 {
		cfg.API.TLS.ReloadInterval = DefaultTLSReload
	}
	if cfg.API.TLS.ClientAuth == "" {
		cfg.API.TLS.ClientAuth = DefaultTLSClientAuth
	}

	// Security defaults
	if cfg.Security.AdminRole == "" {
		cfg.Security.AdminRole = DefaultAdminRole
	}
	if cfg.Security.UsernameHeader == "" {
		cfg.Security.UsernameHeader = DefaultUsernameHeader
	}
	if cfg.Security.RolesHeader == "" {
		cfg.Security.RolesHeader = DefaultRolesHeader
	}
	if cfg.Security.Secrets.EnvPrefix == "" {
		cfg.Security.Secrets.EnvPrefix = DefaultSecretPrefix
	}
	if cfg.Security.Secrets.CacheTTL == 0 {
		cfg.Security.Secrets.CacheTTL = DefaultSecretCacheTTL
	}
	if cfg.Security.Secrets.CacheSize == 0 {
		cfg.Security.Secrets.CacheSize = DefaultSecretCacheMax
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.TableDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.TableDurationBuckets = []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900}
	}
	if len(cfg.Telemetry.Metrics.QueryDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.QueryDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Telemetry.Health.VersionPath == "" {
		cfg.Telemetry.Health.VersionPath = DefaultVersionPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
	applyTracingDefaults(&cfg.Telemetry.Tracing)
}

func applyTracingDefaults(t *TracingConfig) {
	if t.Exporter == "" {
		t.Exporter = DefaultTracingExporter
	}
	if t.Endpoint == "" {
		t.Endpoint = DefaultTracingEndpoint
	}
	if t.Timeout == 0 {
		t.Timeout = DefaultTracingTimeout
	}
	if t.Sampler == "" {
		t.Sampler = DefaultTracingSampler
	}
	if t.Sampler == "ratio" && t.SampleRatio == 0 {
		t.SampleRatio = DefaultTracingSampleRatio
	}
	if t.ServiceName == "" {
		t.ServiceName = DefaultServiceName
	}
}

func applyDatabaseDefaults(db *DatabaseConfig) {
	if db.Driver == "" {
		db.Driver = DefaultDatabaseDriver
	}
	if db.MaxOpenConns == 0 {
		db.MaxOpenConns = DefaultMaxOpenConns
	}
	if db.MaxIdleConns == 0 {
		db.MaxIdleConns = DefaultMaxIdleConns
	}
	if db.ConnMaxLifetime == 0 {
		db.ConnMaxLifetime = DefaultConnMaxLifetime
	}
}

func applyCORSDefaults(cors *CORSConfig) {
	if len(cors.AllowedOrigins) == 0 {
		cors.AllowedOrigins = []string{"*"}
	}
	if len(cors.AllowedMethods) == 0 {
		cors.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cors.AllowedHeaders) == 0 {
		cors.AllowedHeaders = []string{"Content-Type", "X-Request-ID", DefaultUsernameHeader, DefaultRolesHeader}
	}
	if len(cors.ExposedHeaders) == 0 {
		cors.ExposedHeaders = []string{"X-Request-ID"}
	}
	if cors.MaxAge == 0 {
		cors.MaxAge = DefaultCORSMaxAge
	}
}
