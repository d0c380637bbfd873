package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfigFile writes a YAML config to a temp file and returns its path
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "adtrack.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

// TestDefaults tests the built-in configuration
func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Server.Addr != "127.0.0.1:8980" {
		t.Errorf("addr = %s", cfg.Server.Addr)
	}
	if cfg.Archive.Path != "adtrack.db" {
		t.Errorf("archive path = %s", cfg.Archive.Path)
	}
	if cfg.Archive.BufferSize != 256 {
		t.Errorf("buffer size = %d", cfg.Archive.BufferSize)
	}
	if cfg.Tracker.Strict {
		t.Error("strict mode on by default")
	}
	if cfg.Telemetry.Logging.Level != "info" {
		t.Errorf("log level = %s", cfg.Telemetry.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults fail validation: %v", err)
	}
}

// TestLoadEmptyPath tests that no path means defaults
func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}
	if cfg.Server.Addr != Default().Server.Addr {
		t.Errorf("addr = %s, want default", cfg.Server.Addr)
	}
}

// TestLoadOverridesDefaults tests partial YAML merged over defaults
func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  addr: "0.0.0.0:9000"
  read_timeout: 5s
archive:
  path: "/tmp/test-ops.db"
tracker:
  strict: true
telemetry:
  logging:
    level: debug
    format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" {
		t.Errorf("addr = %s", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("read timeout = %s", cfg.Server.ReadTimeout)
	}
	if cfg.Archive.Path != "/tmp/test-ops.db" {
		t.Errorf("archive path = %s", cfg.Archive.Path)
	}
	if !cfg.Tracker.Strict {
		t.Error("strict not set")
	}
	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Telemetry.Logging)
	}
	// Untouched settings keep their defaults.
	if cfg.Archive.BufferSize != 256 {
		t.Errorf("buffer size = %d, want default 256", cfg.Archive.BufferSize)
	}
	if cfg.Server.WriteTimeout != Default().Server.WriteTimeout {
		t.Errorf("write timeout = %s, want default", cfg.Server.WriteTimeout)
	}
}

// TestLoadRejectsInvalid tests validation failures
func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad addr", "server:\n  addr: \"not an address\"\n"},
		{"empty archive path", "archive:\n  path: \"\"\n"},
		{"bad yaml", "server: [\n"},
	}
	for _, tt := range tests {
		path := writeConfigFile(t, tt.content)
		if _, err := Load(path); err == nil {
			t.Errorf("%s: Load succeeded, want error", tt.name)
		}
	}
}

// TestLoadMissingFile tests the unreadable-file error
func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load of missing file succeeded")
	}
}
