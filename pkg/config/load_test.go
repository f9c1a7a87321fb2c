package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
source:
  driver: pgx
  dsn: "postgres://app:secret@db:5432/app"
archive:
  driver: mysql
  dsn: "app:secret@tcp(archive:3306)/archive?parseTime=true"

archival:
  schedule: "30 2 * * *"
  run_on_start: true
  table_timeout: "2m"
  workers: 2

policies:
  file: "./policies.yaml"
  watch: true

query:
  default_page_size: 50
  timeout: "10s"

api:
  listen_address: "0.0.0.0:9090"

security:
  admin_role: "OPERATOR"

telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Source.Driver != "pgx" {
		t.Errorf("expected source driver %q, got %q", "pgx", cfg.Source.Driver)
	}
	if cfg.Archive.Driver != "mysql" {
		t.Errorf("expected archive driver %q, got %q", "mysql", cfg.Archive.Driver)
	}
	if cfg.Archival.Schedule != "30 2 * * *" {
		t.Errorf("expected schedule %q, got %q", "30 2 * * *", cfg.Archival.Schedule)
	}
	if !cfg.Archival.RunOnStart {
		t.Error("expected run_on_start to be true")
	}
	if cfg.Archival.TableTimeout != 2*time.Minute {
		t.Errorf("expected table timeout 2m, got %v", cfg.Archival.TableTimeout)
	}
	if cfg.Query.DefaultPageSize != 50 {
		t.Errorf("expected default page size 50, got %d", cfg.Query.DefaultPageSize)
	}
	if cfg.Query.MaxPageSize != DefaultQueryMaxPageSize {
		t.Errorf("expected default max page size, got %d", cfg.Query.MaxPageSize)
	}
	if cfg.API.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("expected listen address %q, got %q", "0.0.0.0:9090", cfg.API.ListenAddress)
	}
	if cfg.Security.AdminRole != "OPERATOR" {
		t.Errorf("expected admin role %q, got %q", "OPERATOR", cfg.Security.AdminRole)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected logging level %q, got %q", "debug", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadConfig_KeepsTrueDefaults(t *testing.T) {
	path := writeConfig(t, `
source:
  dsn: "file:source.db"
archive:
  dsn: "file:archive.db"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if !cfg.Archival.Enabled || !cfg.API.Enabled || !cfg.Telemetry.Metrics.Enabled {
		t.Errorf("omitted switches should stay enabled: archival=%v api=%v metrics=%v",
			cfg.Archival.Enabled, cfg.API.Enabled, cfg.Telemetry.Metrics.Enabled)
	}
	if cfg.Source.Driver != DefaultDatabaseDriver {
		t.Errorf("expected default driver, got %q", cfg.Source.Driver)
	}
}

func TestLoadConfig_ExplicitFalse(t *testing.T) {
	path := writeConfig(t, `
source:
  dsn: "file:source.db"
archive:
  dsn: "file:archive.db"
archival:
  enabled: false
api:
  enabled: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Archival.Enabled {
		t.Error("expected archival to be disabled")
	}
	if cfg.API.Enabled {
		t.Error("expected api to be disabled")
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{
			name:    "unknown field",
			content: "source:\n  dsn: a.db\n  hostname: x\n",
			errText: "failed to parse",
		},
		{
			name:    "invalid yaml",
			content: "source: [unclosed\n",
			errText: "failed to parse",
		},
		{
			name:    "missing dsn",
			content: "archive:\n  dsn: archive.db\n",
			errText: "source.dsn",
		},
		{
			name:    "bad schedule",
			content: "source:\n  dsn: s.db\narchive:\n  dsn: a.db\narchival:\n  schedule: \"every day\"\n",
			errText: "archival.schedule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("error %q does not mention %q", err, tt.errText)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLoadConfig_ValidationErrorType(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "source:\n  driver: oracle\n"))

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	fields := map[string]bool{}
	for _, fe := range verr.Errors {
		fields[fe.Field] = true
	}
	for _, want := range []string{"source.driver", "source.dsn", "archive.dsn"} {
		if !fields[want] {
			t.Errorf("expected error for %s, got %v", want, verr.Errors)
		}
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
source:
  dsn: "file:source.db"
archive:
  dsn: "file:archive.db"
archival:
  workers: 2
`)

	t.Setenv("ARCHIVIST_SOURCE_DRIVER", "pgx")
	t.Setenv("ARCHIVIST_SOURCE_DSN", "postgres://app@db/app")
	t.Setenv("ARCHIVIST_ARCHIVAL_WORKERS", "6")
	t.Setenv("ARCHIVIST_ARCHIVAL_RUN_ON_START", "true")
	t.Setenv("ARCHIVIST_QUERY_TIMEOUT", "5s")
	t.Setenv("ARCHIVIST_TELEMETRY_LOGGING_LEVEL", "warn")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Source.Driver != "pgx" || cfg.Source.DSN != "postgres://app@db/app" {
		t.Errorf("source = %+v, want env override", cfg.Source)
	}
	if cfg.Archive.DSN != "file:archive.db" {
		t.Errorf("archive dsn = %q, want file value", cfg.Archive.DSN)
	}
	if cfg.Archival.Workers != 6 {
		t.Errorf("workers = %d, want 6", cfg.Archival.Workers)
	}
	if !cfg.Archival.RunOnStart {
		t.Error("expected run_on_start from environment")
	}
	if cfg.Query.Timeout != 5*time.Second {
		t.Errorf("query timeout = %v, want 5s", cfg.Query.Timeout)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("logging level = %q, want warn", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadConfigWithEnvOverrides_NoFile(t *testing.T) {
	t.Setenv("ARCHIVIST_SOURCE_DSN", "file:source.db")
	t.Setenv("ARCHIVIST_ARCHIVE_DSN", "file:archive.db")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Archival.Schedule != DefaultSchedule {
		t.Errorf("schedule = %q, want default", cfg.Archival.Schedule)
	}
}

func TestLoadConfigWithEnvOverrides_Malformed(t *testing.T) {
	t.Setenv("ARCHIVIST_SOURCE_DSN", "file:source.db")
	t.Setenv("ARCHIVIST_ARCHIVE_DSN", "file:archive.db")
	t.Setenv("ARCHIVIST_ARCHIVAL_WORKERS", "many")
	t.Setenv("ARCHIVIST_API_ENABLED", "maybe")

	_, err := LoadConfigWithEnvOverrides("")
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Errors) != 2 {
		t.Errorf("expected 2 errors, got %d: %v", len(verr.Errors), verr.Errors)
	}
}

func TestEnvNames(t *testing.T) {
	names := EnvNames()
	seen := map[string]bool{}
	for _, n := range names {
		if !strings.HasPrefix(n, EnvPrefix) {
			t.Errorf("%s lacks prefix %s", n, EnvPrefix)
		}
		if seen[n] {
			t.Errorf("duplicate binding %s", n)
		}
		seen[n] = true
	}
	if !seen["ARCHIVIST_CONTROL_DSN"] {
		t.Error("expected ARCHIVIST_CONTROL_DSN binding")
	}
}
