package config

import (
	"path/filepath"
	"testing"
	"time"
)

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig creates a new ConfigBuilder with sensible defaults for testing.
// The resulting configuration is valid and can be used immediately.
func NewTestConfig() *ConfigBuilder {
	cfg := *Default()
	cfg.Source.DSN = "file:source.db"
	cfg.Archive.DSN = "file:archive.db"
	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return &b.cfg
}

// WithSource sets the source database.
func (b *ConfigBuilder) WithSource(driver, dsn string) *ConfigBuilder {
	b.cfg.Source.Driver = driver
	b.cfg.Source.DSN = dsn
	return b
}

// WithArchive sets the archive database.
func (b *ConfigBuilder) WithArchive(driver, dsn string) *ConfigBuilder {
	b.cfg.Archive.Driver = driver
	b.cfg.Archive.DSN = dsn
	return b
}

// WithSchedule sets the sweep cron schedule.
func (b *ConfigBuilder) WithSchedule(schedule string) *ConfigBuilder {
	b.cfg.Archival.Schedule = schedule
	return b
}

// WithWorkers sets the sweep worker count.
func (b *ConfigBuilder) WithWorkers(n int) *ConfigBuilder {
	b.cfg.Archival.Workers = n
	return b
}

// WithPageSizes sets the query page sizes.
func (b *ConfigBuilder) WithPageSizes(def, max int) *ConfigBuilder {
	b.cfg.Query.DefaultPageSize = def
	b.cfg.Query.MaxPageSize = max
	return b
}

// WithListenAddress sets the API listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.API.ListenAddress = addr
	return b
}

// WithReadTimeout sets the API read timeout.
func (b *ConfigBuilder) WithReadTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.API.ReadTimeout = d
	return b
}

// WithLogLevel sets the logging level.
func (b *ConfigBuilder) WithLogLevel(level string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	return b
}

// WithPolicyFile sets the policy file and its watch flag.
func (b *ConfigBuilder) WithPolicyFile(path string, watch bool) *ConfigBuilder {
	b.cfg.Policies.File = path
	b.cfg.Policies.Watch = watch
	return b
}

// WithAdminRole sets the admin role.
func (b *ConfigBuilder) WithAdminRole(role string) *ConfigBuilder {
	b.cfg.Security.AdminRole = role
	return b
}

// MinimalConfig returns the smallest valid configuration.
func MinimalConfig() *Config {
	return NewTestConfig().Build()
}

func TestConfigBuilder(t *testing.T) {
	cfg := NewTestConfig().
		WithSource("pgx", "postgres://app:secret@db/app").
		WithArchive("mysql", "app:secret@tcp(archive:3306)/archive").
		WithSchedule("*/15 * * * *").
		WithWorkers(4).
		WithPolicyFile(filepath.Join(t.TempDir(), "policies.yaml"), true).
		Build()

	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Archival.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Archival.Workers)
	}
	if cfg.Source.Driver != "pgx" {
		t.Errorf("Source.Driver = %q, want %q", cfg.Source.Driver, "pgx")
	}
}

func TestMinimalConfig_Valid(t *testing.T) {
	if err := Validate(MinimalConfig()); err != nil {
		t.Errorf("Validate(MinimalConfig()) error = %v", err)
	}
}

func TestDatabaseConfig_Redacted(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"postgres://app:secret@db:5432/app", "postgres://app:***@db:5432/app"},
		{"postgres://app@db/app", "postgres://app@db/app"},
		{"app:secret@tcp(db:3306)/archive?parseTime=true", "app:***@tcp(db:3306)/archive?parseTime=true"},
		{"file:source.db?_busy_timeout=5000", "file:source.db?_busy_timeout=5000"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			if got := (DatabaseConfig{DSN: tt.dsn}).Redacted(); got != tt.want {
				t.Errorf("Redacted() = %q, want %q", got, tt.want)
			}
		})
	}
}
