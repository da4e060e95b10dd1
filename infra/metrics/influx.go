package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/seoulbike/bikeflow/core/metrics"
	"github.com/seoulbike/bikeflow/infra/logger"
)

// InfluxSink writes pipeline events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg coremetrics.Config) *InfluxSink {
	base := strings.TrimSuffix(cfg.InfluxURL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.InfluxToken,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg coremetrics.Config) coremetrics.Sink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordIngest writes one ingestion cycle as a point.
func (s *InfluxSink) RecordIngest(r coremetrics.IngestResult) error {
	p := write.NewPointWithMeasurement("ingest_cycle").
		AddTag("source", r.Source).
		AddField("stations", r.Stations).
		SetTime(r.Time)
	return s.write(p)
}

// RecordTraining writes one training run as a point.
func (s *InfluxSink) RecordTraining(r coremetrics.TrainingResult) error {
	p := write.NewPointWithMeasurement("model_training").
		AddTag("run_id", r.RunID).
		AddField("samples", r.Samples).
		AddField("mae", r.MAE).
		AddField("rmse", r.RMSE).
		AddField("test_r2", r.TestScore).
		AddField("duration_s", r.Duration.Seconds()).
		SetTime(r.Time)
	return s.write(p)
}

// RecordRecommendation writes one served request as a point.
func (s *InfluxSink) RecordRecommendation(r coremetrics.RecommendationEvent) error {
	p := write.NewPointWithMeasurement("recommendation_request").
		AddTag("purpose", r.Purpose).
		AddField("candidates", r.Candidates).
		AddField("results", r.Results).
		SetTime(r.Time)
	return s.write(p)
}

// RecordPurge writes one retention sweep as a point.
func (s *InfluxSink) RecordPurge(r coremetrics.PurgeResult) error {
	p := write.NewPointWithMeasurement("retention_purge").
		AddField("removed", r.Removed).
		SetTime(r.Time)
	return s.write(p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}
