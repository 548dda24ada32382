package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	body := `
database:
  dsn: ` + filepath.Join(dir, "db.sqlite") + `
ingest:
  timeout: 5s
sources:
  congreso_votaciones:
    url: https://example.test/votaciones
    min_loaded: 10
`
	if err := os.WriteFile(file, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(context.Background(), file)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ingest.Timeout != 5*time.Second {
		t.Fatalf("ingest.timeout = %v, want 5s", cfg.Ingest.Timeout)
	}
	if cfg.Fetch.MaxAttempts != 3 {
		t.Fatalf("fetch.max_attempts = %d, want 3", cfg.Fetch.MaxAttempts)
	}
	if cfg.Fetch.BaseDelay != 500*time.Millisecond {
		t.Fatalf("fetch.base_delay = %v", cfg.Fetch.BaseDelay)
	}

	src := cfg.Source("congreso_votaciones")
	if src.URL != "https://example.test/votaciones" {
		t.Fatalf("source url = %q", src.URL)
	}
	if src.MinLoaded == nil || *src.MinLoaded != 10 {
		t.Fatalf("source min_loaded = %v", src.MinLoaded)
	}
	if got := cfg.Source("missing"); got.URL != "" || got.MinLoaded != nil {
		t.Fatalf("Source(missing) = %+v", got)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("Load() error = nil, want error")
	}
}

func TestValidateRejectsBadSnapshotDate(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{DSN: "x.sqlite"},
		Ingest:   IngestConfig{Timeout: time.Second, SnapshotDate: "18/10/2026"},
		Fetch:    FetchConfig{MaxAttempts: 1},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() error = nil, want error")
	}
}
