package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPPort != 8080 {
		t.Fatalf("unexpected default port: %d", cfg.HTTPPort)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected default model: %q", cfg.Model)
	}
	if cfg.DefaultPromptKey != "standardAssistant" {
		t.Fatalf("unexpected default prompt key: %q", cfg.DefaultPromptKey)
	}
	if cfg.LLMTimeout != 2*time.Minute || cfg.ToolTimeout != 30*time.Second {
		t.Fatalf("unexpected default timeouts: %v %v", cfg.LLMTimeout, cfg.ToolTimeout)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SHOPCHAT_HTTP_PORT", "9999")
	t.Setenv("SHOPCHAT_MODEL", "gpt-4o")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPPort != 9999 {
		t.Fatalf("env override ignored, port = %d", cfg.HTTPPort)
	}
	if cfg.Model != "gpt-4o" {
		t.Fatalf("env override ignored, model = %q", cfg.Model)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, c := range cases {
		if got := ParseLogLevel(c.in); got != c.want {
			t.Fatalf("ParseLogLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSetupLoggerWithWritersFanout(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("turn complete", "shop", "acme.myshopify.com")

	if !strings.Contains(stderr.String(), "turn complete") {
		t.Fatalf("stderr handler missed the record: %q", stderr.String())
	}

	var record map[string]any
	if err := json.Unmarshal(file.Bytes(), &record); err != nil {
		t.Fatalf("file handler did not emit JSON: %v (%q)", err, file.String())
	}
	if record["msg"] != "turn complete" || record["shop"] != "acme.myshopify.com" {
		t.Fatalf("unexpected JSON record: %v", record)
	}

	// Levels below the handler threshold are dropped on both sinks.
	stderr.Reset()
	file.Reset()
	logger.Debug("noise")
	if stderr.Len() != 0 || file.Len() != 0 {
		t.Fatalf("debug record should have been filtered")
	}
}
