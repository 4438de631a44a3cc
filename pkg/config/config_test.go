package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: test
backend:
  type: csv
data:
  dir: /tmp/bars
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("default port = %d", cfg.Server.Port)
	}
	if cfg.Data.Interval != "1h" {
		t.Fatalf("default interval = %s", cfg.Data.Interval)
	}
	if cfg.Data.LookbackMonths != 6 {
		t.Fatalf("default lookback = %d", cfg.Data.LookbackMonths)
	}
	if cfg.Data.MinBars != 30 {
		t.Fatalf("default min bars = %d", cfg.Data.MinBars)
	}
	if cfg.Pipeline.Workers != 8 || cfg.Pipeline.CovWindow != 180 {
		t.Fatalf("pipeline defaults = %+v", cfg.Pipeline)
	}
	if cfg.API.ResponseCacheTTL != 30*time.Second {
		t.Fatalf("response cache ttl = %v", cfg.API.ResponseCacheTTL)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, `
environment: test
backend:
  type: postgres
`)

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "backend.type") {
		t.Fatalf("expected backend.type error, got %v", err)
	}
}

func TestLoadRequiresDataDirForCSV(t *testing.T) {
	path := writeConfig(t, `
environment: test
backend:
  type: csv
`)

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "data.dir") {
		t.Fatalf("expected data.dir error, got %v", err)
	}
}

func TestLoadRejectsSmallCovWindow(t *testing.T) {
	path := writeConfig(t, `
environment: test
backend:
  type: csv
data:
  dir: /tmp/bars
pipeline:
  cov_window: 1
`)

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "cov_window") {
		t.Fatalf("expected cov_window error, got %v", err)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
environment: test
backend:
  type: csv
data:
  dir: /tmp/bars
`)

	t.Setenv("SYMBOLS", "btcusd, ethusd ,")
	t.Setenv("WORKERS", "3")
	t.Setenv("CACHE_DIR", "/tmp/panel-cache")

	cfg, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(cfg.Batch.Symbols) != 2 || cfg.Batch.Symbols[0] != "btcusd" || cfg.Batch.Symbols[1] != "ethusd" {
		t.Fatalf("symbols = %v", cfg.Batch.Symbols)
	}
	if cfg.Pipeline.Workers != 3 {
		t.Fatalf("workers = %d", cfg.Pipeline.Workers)
	}
	if cfg.Cache.Dir != "/tmp/panel-cache" {
		t.Fatalf("cache dir = %s", cfg.Cache.Dir)
	}
}
