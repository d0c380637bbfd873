// Package config loads and validates the AdTrack service configuration
// from a YAML file, with hot reload of selected settings while the server
// runs.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/adtrack/adtrack/pkg/telemetry"
)

// Config is the root service configuration.
type Config struct {
	// Server configures the dashboard HTTP API.
	Server ServerConfig `yaml:"server"`

	// Archive configures the persistent operation archive.
	Archive ArchiveConfig `yaml:"archive"`

	// Tracker configures the tracking core.
	Tracker TrackerConfig `yaml:"tracker"`

	// Diagnose configures the diagnostic layer.
	Diagnose DiagnoseConfig `yaml:"diagnose"`

	// Telemetry configures logging, metrics, and tracing.
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr" validate:"required,hostname_port"`

	// ReadTimeout bounds request reading.
	ReadTimeout time.Duration `yaml:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds response writing.
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"min=0"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"min=0"`
}

// ArchiveConfig configures the SQLite operation archive.
type ArchiveConfig struct {
	// Path is the SQLite database path. ":memory:" keeps the archive
	// process-local.
	Path string `yaml:"path" validate:"required"`

	// BufferSize is the archiver's snapshot buffer size.
	BufferSize int `yaml:"buffer_size" validate:"min=0"`
}

// TrackerConfig configures the tracking core.
type TrackerConfig struct {
	// Strict makes unknown-id mutations errors instead of silent no-ops.
	// Keep off in production; progress reporting paths are best-effort.
	Strict bool `yaml:"strict"`
}

// DiagnoseConfig configures the diagnostic layer.
type DiagnoseConfig struct {
	// PolicyDir holds operator-supplied Rego diagnostic policies. Empty
	// means builtin rules only.
	PolicyDir string `yaml:"policy_dir"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8980",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Archive: ArchiveConfig{
			Path:       "adtrack.db",
			BufferSize: 256,
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load reads path, applies defaults for unset fields, and validates the
// result. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry configuration: %w", err)
	}
	return nil
}
