// ABOUTME: Tests for telemetry configuration validation, environment loading and defaults
// ABOUTME: Covers each invalid field and the FIRSTFIT_TELEMETRY_* overrides

package telemetry

import (
	"bytes"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ServiceName != "firstfit" {
		t.Errorf("Expected default service name 'firstfit', got '%s'", cfg.ServiceName)
	}
	if cfg.Enabled {
		t.Error("Expected telemetry to be disabled by default")
	}
	if len(cfg.Exporters) != 1 || cfg.Exporters[0] != "stdout" {
		t.Errorf("Expected default exporters ['stdout'], got %v", cfg.Exporters)
	}
	if cfg.OTLPEndpoint != "localhost:4317" || !cfg.OTLPInsecure {
		t.Errorf("Unexpected OTLP defaults: %s insecure=%v", cfg.OTLPEndpoint, cfg.OTLPInsecure)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty service name", func(c *Config) { c.ServiceName = "" }},
		{"empty service version", func(c *Config) { c.ServiceVersion = "" }},
		{"negative sample rate", func(c *Config) { c.SampleRate = -0.1 }},
		{"sample rate too high", func(c *Config) { c.SampleRate = 1.1 }},
		{"zero export interval", func(c *Config) { c.ExportInterval = 0 }},
		{"zero export timeout", func(c *Config) { c.ExportTimeout = 0 }},
		{"zero batch timeout", func(c *Config) { c.BatchTimeout = 0 }},
		{"zero queue", func(c *Config) { c.MaxQueueSize = 0 }},
		{"batch larger than queue", func(c *Config) { c.MaxExportBatchSize = c.MaxQueueSize + 1 }},
		{"unknown exporter", func(c *Config) { c.Exporters = []string{"prometheus"} }},
		{"otlp without endpoint", func(c *Config) {
			c.Exporters = []string{"otlp"}
			c.OTLPEndpoint = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FIRSTFIT_TELEMETRY_SERVICE_NAME", "lab")
	t.Setenv("FIRSTFIT_TELEMETRY_ENABLED", "true")
	t.Setenv("FIRSTFIT_TELEMETRY_EXPORTERS", "stdout, otlp")
	t.Setenv("FIRSTFIT_TELEMETRY_SAMPLE_RATE", "0.25")
	t.Setenv("FIRSTFIT_TELEMETRY_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("FIRSTFIT_TELEMETRY_OTLP_INSECURE", "false")
	t.Setenv("FIRSTFIT_TELEMETRY_EXPORT_INTERVAL", "10s")
	t.Setenv("FIRSTFIT_TELEMETRY_BATCH_TIMEOUT", "bogus")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	if cfg.ServiceName != "lab" || !cfg.Enabled {
		t.Errorf("Unexpected name/enabled: %s %v", cfg.ServiceName, cfg.Enabled)
	}
	if !cfg.HasExporter("stdout") || !cfg.HasExporter("otlp") || cfg.HasExporter("jaeger") {
		t.Errorf("Unexpected exporters %v", cfg.Exporters)
	}
	if cfg.SampleRate != 0.25 {
		t.Errorf("Expected sample rate 0.25, got %f", cfg.SampleRate)
	}
	if cfg.OTLPEndpoint != "collector:4317" || cfg.OTLPInsecure {
		t.Errorf("Unexpected OTLP settings %s %v", cfg.OTLPEndpoint, cfg.OTLPInsecure)
	}
	if cfg.ExportInterval != 10*time.Second {
		t.Errorf("Expected 10s export interval, got %s", cfg.ExportInterval)
	}
	if cfg.BatchTimeout != DefaultConfig().BatchTimeout {
		t.Errorf("Unparsable batch timeout should be ignored, got %s", cfg.BatchTimeout)
	}
}

func TestConfigOutput(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.output() == nil {
		t.Fatal("expected stderr fallback")
	}
	var buf bytes.Buffer
	cfg.Output = &buf
	if cfg.output() != &buf {
		t.Error("expected configured output")
	}
}
