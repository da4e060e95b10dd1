// Package ingest delivers raw station records into the snapshot store. Two
// sources exist: the default HTTP poller against the open-data endpoint and
// an MQTT subscriber for brokers that push station status.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/seoulbike/bikeflow/core/metrics"
	"github.com/seoulbike/bikeflow/core/model"
)

// Config selects and parameterises the ingestion source.
type Config struct {
	Mode string     `json:"mode"` // "http" (default) or "mqtt"
	HTTP HTTPConfig `json:"http"`
	MQTT MQTTConfig `json:"mqtt"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Mode == "" {
		c.Mode = "http"
	}
	c.HTTP.SetDefaults()
	c.MQTT.SetDefaults()
}

// Validate checks the selected mode.
func (c Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "http", "mqtt":
		return nil
	default:
		return fmt.Errorf("unknown ingest mode %q", c.Mode)
	}
}

// Appender is the slice of the snapshot store the sources write to.
type Appender interface {
	AppendBatch(ctx context.Context, obs []model.StationObservation) error
}

// Source feeds observations into the store until the context is cancelled.
type Source interface {
	Start(ctx context.Context) error
}

// NewSource creates a source depending on cfg.Mode.
func NewSource(cfg Config, store Appender, sink metrics.Sink) (Source, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.Mode) {
	case "mqtt":
		return NewMQTTSource(cfg.MQTT, store, sink)
	default:
		return NewHTTPSource(cfg.HTTP, store, sink), nil
	}
}
