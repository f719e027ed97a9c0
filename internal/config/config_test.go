package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Refresh.IntervalSec != 30 {
		t.Errorf("expected default refresh interval 30, got %d", cfg.Refresh.IntervalSec)
	}
	if !cfg.Limits.MaxPerInstance.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("expected default per-instance limit 10000, got %s", cfg.Limits.MaxPerInstance)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
relayer:
  url: http://relayer.local
  timeout_sec: 5
limits:
  max_per_instance: 500
  max_overlapping: 1200
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Relayer.URL != "http://relayer.local" {
		t.Errorf("expected relayer url, got %s", cfg.Relayer.URL)
	}
	if !cfg.Limits.MaxOverlapping.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("expected overlapping limit 1200, got %s", cfg.Limits.MaxOverlapping)
	}
	// Unspecified fields keep their defaults.
	if cfg.Chain.TimeoutSec != 10 {
		t.Errorf("expected default chain timeout 10, got %d", cfg.Chain.TimeoutSec)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
`)
	t.Setenv("PORT", "7070")
	t.Setenv("RELAYER_URL", "http://relayer.env")
	t.Setenv("REFRESH_INTERVAL_SEC", "15")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("env must beat file: expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Relayer.URL != "http://relayer.env" {
		t.Errorf("expected env relayer url, got %s", cfg.Relayer.URL)
	}
	if cfg.Refresh.IntervalSec != 15 {
		t.Errorf("expected refresh interval 15, got %d", cfg.Refresh.IntervalSec)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"empty port", func(c *Config) { c.Server.Port = "" }, true},
		{"zero refresh interval", func(c *Config) { c.Refresh.IntervalSec = 0 }, true},
		{"zero relayer timeout", func(c *Config) { c.Relayer.TimeoutSec = 0 }, true},
		{"non-positive instance limit", func(c *Config) { c.Limits.MaxPerInstance = decimal.Zero }, true},
		{"overlapping below per-instance", func(c *Config) {
			c.Limits.MaxOverlapping = decimal.NewFromInt(1)
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var cfg Config
			cfg.defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
