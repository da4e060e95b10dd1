package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
database:
  path: /tmp/bikes.db
ingest:
  mode: http
  http:
    api_key: secret
    page_size: 500
forecast:
  forest:
    trees: 50
  horizon_hours: 3
recommend:
  search_radius_km: 1.5
scheduler:
  retention_days: 14
metrics:
  prometheus_enabled: true
  prometheus_port: "9091"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"database path", cfg.Database.Path, "/tmp/bikes.db"},
		{"ingest mode", cfg.Ingest.Mode, "http"},
		{"api key", cfg.Ingest.HTTP.APIKey, "secret"},
		{"page size", cfg.Ingest.HTTP.PageSize, 500},
		{"trees", cfg.Forecast.Forest.Trees, 50},
		{"horizon", cfg.Forecast.HorizonHours, 3},
		{"search radius", cfg.Recommend.SearchRadiusKm, 1.5},
		{"retention days", cfg.Scheduler.RetentionDays, 14},
		{"prometheus enabled", cfg.Metrics.PrometheusEnabled, true},
		{"prometheus port", cfg.Metrics.PrometheusPort, "9091"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", "database:\n  path: x.db\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ingest.Mode != "http" {
		t.Errorf("default ingest mode = %q", cfg.Ingest.Mode)
	}
	if cfg.Forecast.Forest.Trees != 100 || cfg.Forecast.Forest.MaxDepth != 10 {
		t.Errorf("forest defaults = %+v", cfg.Forecast.Forest)
	}
	if cfg.Forecast.HorizonHours != 2 {
		t.Errorf("horizon = %d, want 2", cfg.Forecast.HorizonHours)
	}
	if cfg.Recommend.MaxResults != 10 {
		t.Errorf("max results = %d, want 10", cfg.Recommend.MaxResults)
	}
	if cfg.Scheduler.CollectIntervalMinutes != 10 {
		t.Errorf("collect interval = %d, want 10", cfg.Scheduler.CollectIntervalMinutes)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{"database": {"path": "json.db"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "json.db" {
		t.Fatalf("database path = %q", cfg.Database.Path)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.yaml", "database:\n  path: file.db\n")
	t.Setenv("BIKEFLOW_DATABASE__PATH", "env.db")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "env.db" {
		t.Fatalf("database path = %q, want env override", cfg.Database.Path)
	}
}

func TestLoadRejectsUnknownIngestMode(t *testing.T) {
	path := writeConfig(t, "config.yaml", "ingest:\n  mode: ftp\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown ingest mode")
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := writeConfig(t, "config.toml", "x = 1")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
