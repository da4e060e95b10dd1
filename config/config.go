package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/seoulbike/bikeflow/core/forecast"
	"github.com/seoulbike/bikeflow/core/metrics"
	"github.com/seoulbike/bikeflow/core/recommend"
	"github.com/seoulbike/bikeflow/core/scheduler"
	"github.com/seoulbike/bikeflow/infra/ingest"
)

// Config aggregates every tunable of the service.
type Config struct {
	Database  DatabaseConfig   `json:"database"`
	Ingest    ingest.Config    `json:"ingest"`
	Forecast  ForecastConfig   `json:"forecast"`
	Recommend recommend.Config `json:"recommend"`
	Scheduler scheduler.Config `json:"scheduler"`
	Metrics   metrics.Config   `json:"metrics"`
}

// DatabaseConfig locates the snapshot store.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// SetDefaults applies a local database file.
func (c *DatabaseConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "bikeflow.db"
	}
}

// ForecastConfig wraps the estimator hyperparameters and the default
// prediction horizon.
type ForecastConfig struct {
	Forest       forecast.ForestConfig `json:"forest"`
	HorizonHours int                   `json:"horizon_hours"`
}

// SetDefaults applies the reference horizon.
func (c *ForecastConfig) SetDefaults() {
	c.Forest.SetDefaults()
	if c.HorizonHours <= 0 {
		c.HorizonHours = 2
	}
}

// Load reads the configuration file at path, allowing environment overrides
// with the BIKEFLOW_ prefix (double underscores separate nesting levels).
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("BIKEFLOW_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "bikeflow_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Database.SetDefaults()
	cfg.Ingest.SetDefaults()
	cfg.Forecast.SetDefaults()
	cfg.Recommend.SetDefaults()
	cfg.Scheduler.SetDefaults()
	if err := cfg.Ingest.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
