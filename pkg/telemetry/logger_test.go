package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// TestLoggerFileOutput tests JSON logging to a file
func TestLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adtrack.log")

	logger, err := NewLogger(LoggingConfig{
		Level:  "debug",
		Format: "json",
		Output: path,
	})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.WithOperationID("op-1").Info("Operation created")
	logger.Debug("fine-grained detail")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"operation_id":"op-1"`) {
		t.Errorf("log output missing operation id field: %s", out)
	}
	if !strings.Contains(out, "Operation created") || !strings.Contains(out, "fine-grained detail") {
		t.Errorf("log output missing messages: %s", out)
	}
}

// TestLoggerLevelFiltering tests that entries below the level are dropped
func TestLoggerLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adtrack.log")

	logger, err := NewLogger(LoggingConfig{Level: "warn", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Info("dropped")
	logger.Warn("kept")

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "dropped") {
		t.Error("info entry logged at warn level")
	}
	if !strings.Contains(string(data), "kept") {
		t.Error("warn entry missing")
	}
}

// TestLoggerSetLevel tests runtime level changes used by config hot reload
func TestLoggerSetLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adtrack.log")

	logger, err := NewLogger(LoggingConfig{Level: "info", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Debug("before")
	logger.SetLevel("debug")
	logger.Debug("after")

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "before") {
		t.Error("debug entry logged before level change")
	}
	if !strings.Contains(string(data), "after") {
		t.Error("debug entry missing after level change")
	}
}

// TestComponentLogger tests the component field on child loggers
func TestComponentLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adtrack.log")

	logger, err := NewLogger(LoggingConfig{Level: "info", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.NewComponentLogger("tracker").Info("hello")

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"component":"tracker"`) {
		t.Errorf("component field missing: %s", data)
	}
}

// TestParseLogLevel tests the level mapping and its fallback
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
