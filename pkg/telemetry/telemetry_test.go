package telemetry

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.level); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}

	bad := DefaultConfig()
	bad.Logging.Level = "loud"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for invalid log level")
	}

	bad = DefaultConfig()
	bad.Logging.Format = "xml"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for invalid log format")
	}

	bad = DefaultConfig()
	bad.Metrics.Enabled = true
	bad.Metrics.ListenAddress = ""
	if err := bad.Validate(); err == nil {
		t.Error("expected error for metrics without listen address")
	}
}

func TestNewMetricsRegisters(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.FilesGeneratedTotal.WithLabelValues("pg_hba").Inc()
	m.RemoteWritesTotal.WithLabelValues("true").Add(2)

	families, err := m.registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if strings.HasSuffix(f.GetName(), "files_generated_total") {
			found = true
		}
	}
	if !found {
		t.Error("files_generated_total not registered")
	}
}

func TestNewMetricsIsolatedRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	if _, err := NewMetrics(DefaultConfig().Metrics); err != nil {
		t.Fatalf("first NewMetrics: %v", err)
	}
	if _, err := NewMetrics(DefaultConfig().Metrics); err != nil {
		t.Fatalf("second NewMetrics: %v", err)
	}
}
