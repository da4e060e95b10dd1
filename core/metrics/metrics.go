// Package metrics defines the observability contracts of the pipeline. Sinks
// live in infra/metrics; the core only knows these interfaces.
package metrics

import "time"

// Config selects and parameterises the metric sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// IngestResult describes one completed ingestion cycle.
type IngestResult struct {
	Source   string
	Stations int
	Time     time.Time
}

// TrainingResult describes one completed training run.
type TrainingResult struct {
	RunID     string
	Samples   int
	MAE       float64
	RMSE      float64
	TestScore float64
	Duration  time.Duration
	Time      time.Time
}

// RecommendationEvent describes one served recommendation request.
type RecommendationEvent struct {
	Purpose    string
	Candidates int
	Results    int
	Time       time.Time
}

// PurgeResult describes one retention sweep.
type PurgeResult struct {
	Removed int64
	Time    time.Time
}

// Sink records pipeline events for observability purposes.
type Sink interface {
	RecordIngest(IngestResult) error
	RecordTraining(TrainingResult) error
	RecordRecommendation(RecommendationEvent) error
	RecordPurge(PurgeResult) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordIngest(IngestResult) error                { return nil }
func (NopSink) RecordTraining(TrainingResult) error            { return nil }
func (NopSink) RecordRecommendation(RecommendationEvent) error { return nil }
func (NopSink) RecordPurge(PurgeResult) error                  { return nil }
