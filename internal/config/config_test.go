package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Fatalf("expected default port 8000, got %d", cfg.Server.Port)
	}
	if cfg.DB.Path != "fishing_reports.db" {
		t.Fatalf("expected default db path, got %q", cfg.DB.Path)
	}
	if cfg.Scraper.RecordsPerPage != 50 {
		t.Fatalf("expected 50 records per page, got %d", cfg.Scraper.RecordsPerPage)
	}
	if cfg.Extractor.Workers != 10 {
		t.Fatalf("expected 10 workers, got %d", cfg.Extractor.Workers)
	}
	if cfg.Extractor.Model != "gpt-4o-mini" {
		t.Fatalf("expected default model, got %q", cfg.Extractor.Model)
	}
	if len(cfg.Server.AllowedOrigins) != 3 {
		t.Fatalf("expected 3 allowed origins, got %v", cfg.Server.AllowedOrigins)
	}
	if got := cfg.ScrapeDelay(); got != time.Second {
		t.Fatalf("expected 1s scrape delay, got %v", got)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  allowed_origins: ["http://localhost:8080"]
db:
  path: /tmp/reports.db
scraper:
  records_per_page: 25
  delay_seconds: 3
  max_pages: 5
extractor:
  model: gpt-4o
  workers: 4
  batch_size: 20
  timeout_seconds: 30
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.DB.Path != "/tmp/reports.db" {
		t.Fatalf("expected db path override, got %q", cfg.DB.Path)
	}
	if cfg.Scraper.RecordsPerPage != 25 || cfg.Scraper.MaxPages != 5 {
		t.Fatalf("expected scraper overrides to apply: %+v", cfg.Scraper)
	}
	if cfg.Extractor.Model != "gpt-4o" || cfg.Extractor.Workers != 4 {
		t.Fatalf("expected extractor overrides to apply: %+v", cfg.Extractor)
	}
	if cfg.Logging.Development {
		t.Fatalf("expected logging.development false")
	}
	if got := cfg.ScrapeDelay(); got != 3*time.Second {
		t.Fatalf("expected 3s scrape delay, got %v", got)
	}
	if got := cfg.ExtractionTimeout(); got != 30*time.Second {
		t.Fatalf("expected 30s extraction timeout, got %v", got)
	}
}

func TestLoadCredentialEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LAKELINK_EMAIL", "angler@example.com")
	t.Setenv("LAKELINK_PASSWORD", "hunter2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Extractor.APIKey != "sk-test" {
		t.Fatalf("expected api key from env, got %q", cfg.Extractor.APIKey)
	}
	if cfg.Scraper.Email != "angler@example.com" || cfg.Scraper.Password != "hunter2" {
		t.Fatalf("expected scrape credentials from env: %+v", cfg.Scraper)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	bad := cfg
	bad.Server.Port = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for zero port")
	}

	bad = cfg
	bad.Extractor.Workers = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for zero workers")
	}

	bad = cfg
	bad.Scraper.RecordsPerPage = -1
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for negative page size")
	}
}
