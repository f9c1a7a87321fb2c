package config

import (
	"sync"
	"testing"
)

func resetGlobal() {
	globalConfig = nil
	initOnce = *new(sync.Once)
}

func TestInitialize(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	path := writeConfig(t, `
source:
  dsn: "file:source.db"
archive:
  dsn: "file:archive.db"
api:
  listen_address: "127.0.0.1:8181"
`)

	if err := Initialize(path); err != nil {
		t.Fatalf("failed to initialize config: %v", err)
	}

	cfg := GetConfig()
	if cfg == nil {
		t.Fatal("expected non-nil config after initialization")
	}
	if cfg.API.ListenAddress != "127.0.0.1:8181" {
		t.Errorf("expected listen address %q, got %q", "127.0.0.1:8181", cfg.API.ListenAddress)
	}
}

func TestInitialize_MultipleCallsIgnored(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	first := writeConfig(t, "source:\n  dsn: s.db\narchive:\n  dsn: a.db\narchival:\n  workers: 2\n")
	second := writeConfig(t, "source:\n  dsn: s.db\narchive:\n  dsn: a.db\narchival:\n  workers: 5\n")

	if err := Initialize(first); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := Initialize(second); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if got := GetConfig().Archival.Workers; got != 2 {
		t.Errorf("workers = %d, want 2 from the first file", got)
	}
}

func TestInitialize_Error(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	if err := Initialize(writeConfig(t, "source:\n  driver: oracle\n")); err == nil {
		t.Fatal("expected error for invalid config")
	}
	if GetConfig() != nil {
		t.Error("config should stay nil after a failed Initialize")
	}
}

func TestReloadConfig(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	path := writeConfig(t, "source:\n  dsn: s.db\narchive:\n  dsn: a.db\n")
	if err := Initialize(path); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	before := GetConfig()

	if err := ReloadConfig(writeConfig(t, "source:\n  driver: oracle\n")); err == nil {
		t.Fatal("expected reload error")
	}
	if GetConfig() != before {
		t.Error("failed reload must keep the previous config")
	}

	if err := ReloadConfig(writeConfig(t, "source:\n  dsn: s.db\narchive:\n  dsn: a.db\nquery:\n  default_page_size: 10\n")); err != nil {
		t.Fatalf("ReloadConfig() error = %v", err)
	}
	if got := GetConfig().Query.DefaultPageSize; got != 10 {
		t.Errorf("default page size = %d, want 10", got)
	}
}

func TestMustGetConfig_Panics(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustGetConfig()
}

func TestSetConfig(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	cfg := MinimalConfig()
	SetConfig(cfg)
	if GetConfig() != cfg {
		t.Error("GetConfig() did not return the config passed to SetConfig")
	}
	if MustGetConfig() != cfg {
		t.Error("MustGetConfig() did not return the config passed to SetConfig")
	}
}
