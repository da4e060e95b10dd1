package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config defines the job intervals and retention policy.
type Config struct {
	CollectIntervalMinutes int    `json:"collect_interval_minutes" yaml:"collect_interval_minutes"`
	RetrainIntervalHours   int    `json:"retrain_interval_hours" yaml:"retrain_interval_hours"`
	PurgeIntervalHours     int    `json:"purge_interval_hours" yaml:"purge_interval_hours"`
	RetentionDays          int    `json:"retention_days" yaml:"retention_days"`
	TrainingWindowDays     int    `json:"training_window_days" yaml:"training_window_days"`
	ModelPath              string `json:"model_path" yaml:"model_path"`
}

// SetDefaults applies the reference schedule: collect every 10 minutes,
// retrain daily, purge daily with a 30 day retention.
func (c *Config) SetDefaults() {
	if c.CollectIntervalMinutes <= 0 {
		c.CollectIntervalMinutes = 10
	}
	if c.RetrainIntervalHours <= 0 {
		c.RetrainIntervalHours = 24
	}
	if c.PurgeIntervalHours <= 0 {
		c.PurgeIntervalHours = 24
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.TrainingWindowDays <= 0 {
		c.TrainingWindowDays = 30
	}
	if c.ModelPath == "" {
		c.ModelPath = "bike_demand_model.json"
	}
}

// LoadConfig loads Config from a JSON or YAML file.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	var cfg Config
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	default:
		return Config{}, fmt.Errorf("unsupported config format: %s", ext)
	}
	return cfg, err
}
