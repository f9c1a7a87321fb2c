package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ARCHIVIST_"

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded over Default(), so omitted fields keep their defaults.
// Unknown keys are rejected. The configuration is not modified by environment
// variables; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	cfg, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides named ARCHIVIST_SECTION_FIELD (e.g.
// ARCHIVIST_SOURCE_DSN). Environment variables take precedence over the file.
// An empty path loads defaults plus environment overrides only.
//
// The loading sequence is:
// 1. Load YAML from file over defaults
// 2. Apply environment variable overrides
// 3. Apply remaining defaults
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = decodeFile(path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func decodeFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// envBinding maps one environment variable onto a config field.
type envBinding struct {
	name string
	set  func(cfg *Config, val string) error
}

func envString(name string, field func(*Config) *string) envBinding {
	return envBinding{name, func(cfg *Config, val string) error {
		*field(cfg) = val
		return nil
	}}
}

func envInt(name string, field func(*Config) *int) envBinding {
	return envBinding{name, func(cfg *Config, val string) error {
		i, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		*field(cfg) = i
		return nil
	}}
}

func envBool(name string, field func(*Config) *bool) envBinding {
	return envBinding{name, func(cfg *Config, val string) error {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}}
}

func envDuration(name string, field func(*Config) *time.Duration) envBinding {
	return envBinding{name, func(cfg *Config, val string) error {
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		*field(cfg) = d
		return nil
	}}
}

func databaseBindings(section string, db func(*Config) *DatabaseConfig) []envBinding {
	return []envBinding{
		envString(section+"_DRIVER", func(c *Config) *string { return &db(c).Driver }),
		envString(section+"_DSN", func(c *Config) *string { return &db(c).DSN }),
		envInt(section+"_MAX_OPEN_CONNS", func(c *Config) *int { return &db(c).MaxOpenConns }),
		envInt(section+"_MAX_IDLE_CONNS", func(c *Config) *int { return &db(c).MaxIdleConns }),
	}
}

var envBindings = func() []envBinding {
	var b []envBinding
	b = append(b, databaseBindings("SOURCE", func(c *Config) *DatabaseConfig { return &c.Source })...)
	b = append(b, databaseBindings("ARCHIVE", func(c *Config) *DatabaseConfig { return &c.Archive })...)
	b = append(b, databaseBindings("CONTROL", func(c *Config) *DatabaseConfig { return &c.Control })...)
	b = append(b,
		// Archival overrides
		envBool("ARCHIVAL_ENABLED", func(c *Config) *bool { return &c.Archival.Enabled }),
		envString("ARCHIVAL_SCHEDULE", func(c *Config) *string { return &c.Archival.Schedule }),
		envBool("ARCHIVAL_RUN_ON_START", func(c *Config) *bool { return &c.Archival.RunOnStart }),
		envDuration("ARCHIVAL_TABLE_TIMEOUT", func(c *Config) *time.Duration { return &c.Archival.TableTimeout }),
		envInt("ARCHIVAL_WORKERS", func(c *Config) *int { return &c.Archival.Workers }),
		envInt("ARCHIVAL_DELETE_CHUNK_SIZE", func(c *Config) *int { return &c.Archival.DeleteChunkSize }),

		// Policy file overrides
		envString("POLICIES_FILE", func(c *Config) *string { return &c.Policies.File }),
		envBool("POLICIES_WATCH", func(c *Config) *bool { return &c.Policies.Watch }),
		envBool("POLICIES_PRUNE", func(c *Config) *bool { return &c.Policies.Prune }),

		// Query overrides
		envInt("QUERY_DEFAULT_PAGE_SIZE", func(c *Config) *int { return &c.Query.DefaultPageSize }),
		envInt("QUERY_MAX_PAGE_SIZE", func(c *Config) *int { return &c.Query.MaxPageSize }),
		envDuration("QUERY_TIMEOUT", func(c *Config) *time.Duration { return &c.Query.Timeout }),

		// API overrides
		envBool("API_ENABLED", func(c *Config) *bool { return &c.API.Enabled }),
		envString("API_LISTEN_ADDRESS", func(c *Config) *string { return &c.API.ListenAddress }),
		envDuration("API_READ_TIMEOUT", func(c *Config) *time.Duration { return &c.API.ReadTimeout }),
		envDuration("API_WRITE_TIMEOUT", func(c *Config) *time.Duration { return &c.API.WriteTimeout }),
		envBool("API_CORS_ENABLED", func(c *Config) *bool { return &c.API.CORS.Enabled }),

		// Security overrides
		envString("SECURITY_ADMIN_ROLE", func(c *Config) *string { return &c.Security.AdminRole }),
		envString("SECURITY_USERNAME_HEADER", func(c *Config) *string { return &c.Security.UsernameHeader }),
		envString("SECURITY_ROLES_HEADER", func(c *Config) *string { return &c.Security.RolesHeader }),
		envString("SECURITY_SECRETS_DIRECTORY", func(c *Config) *string { return &c.Security.Secrets.Directory }),

		// Telemetry overrides
		envString("TELEMETRY_LOGGING_LEVEL", func(c *Config) *string { return &c.Telemetry.Logging.Level }),
		envString("TELEMETRY_LOGGING_FORMAT", func(c *Config) *string { return &c.Telemetry.Logging.Format }),
		envBool("TELEMETRY_METRICS_ENABLED", func(c *Config) *bool { return &c.Telemetry.Metrics.Enabled }),
		envString("TELEMETRY_METRICS_PATH", func(c *Config) *string { return &c.Telemetry.Metrics.Path }),
		envBool("TELEMETRY_TRACING_ENABLED", func(c *Config) *bool { return &c.Telemetry.Tracing.Enabled }),
		envString("TELEMETRY_TRACING_ENDPOINT", func(c *Config) *string { return &c.Telemetry.Tracing.Endpoint }),
		envString("TELEMETRY_TRACING_SAMPLER", func(c *Config) *string { return &c.Telemetry.Tracing.Sampler }),
	)
	return b
}()

// applyEnvOverrides applies environment variable overrides to the configuration.
// Malformed values are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	var errs []FieldError
	for _, b := range envBindings {
		val, ok := os.LookupEnv(EnvPrefix + b.name)
		if !ok || val == "" {
			continue
		}
		if err := b.set(cfg, val); err != nil {
			errs = append(errs, FieldError{
				Field:   EnvPrefix + b.name,
				Message: fmt.Sprintf("invalid value %q: %v", val, err),
			})
		}
	}
	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// EnvNames lists every supported environment override.
func EnvNames() []string {
	names := make([]string, 0, len(envBindings))
	for _, b := range envBindings {
		names = append(names, EnvPrefix+b.name)
	}
	return names
}

// Redacted returns the DSN with its password masked, for display.
func (d DatabaseConfig) Redacted() string {
	dsn := d.DSN
	at := strings.LastIndex(dsn, "@")
	if at <= 0 {
		return dsn
	}
	userinfo := dsn[:at]
	start := 0
	if i := strings.Index(userinfo, "://"); i >= 0 {
		start = i + 3
	}
	colon := strings.LastIndex(userinfo[start:], ":")
	if colon < 0 {
		return dsn
	}
	return userinfo[:start+colon+1] + "***" + dsn[at:]
}
