package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/seoulbike/bikeflow/core/metrics"
)

// PromSink records pipeline events in Prometheus metrics.
type PromSink struct {
	ingested        *prometheus.CounterVec
	trainings       prometheus.Counter
	trainMAE        prometheus.Gauge
	trainRMSE       prometheus.Gauge
	trainScore      prometheus.Gauge
	trainDuration   prometheus.Histogram
	recommendations *prometheus.CounterVec
	purged          prometheus.Counter
}

// NewPromSink registers pipeline metrics on the default Prometheus
// registerer. The metrics server is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_observations_total",
			Help: "Total number of station observations ingested",
		}, []string{"source"}),
		trainings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "model_trainings_total",
			Help: "Total number of completed training runs",
		}),
		trainMAE: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "model_mae_bikes",
			Help: "Mean absolute error of the last training run",
		}),
		trainRMSE: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "model_rmse_bikes",
			Help: "Root mean squared error of the last training run",
		}),
		trainScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "model_test_r2",
			Help: "Test coefficient of determination of the last training run",
		}),
		trainDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "model_training_seconds",
			Help:    "Duration of training runs",
			Buckets: prometheus.DefBuckets,
		}),
		recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_requests_total",
			Help: "Total number of recommendation requests served",
		}, []string{"purpose"}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "purged_observations_total",
			Help: "Total number of observations removed by retention purges",
		}),
	}
	for _, c := range []prometheus.Collector{
		s.ingested, s.trainings, s.trainMAE, s.trainRMSE, s.trainScore,
		s.trainDuration, s.recommendations, s.purged,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return s, nil
}

// RecordIngest counts ingested observations per source.
func (s *PromSink) RecordIngest(r coremetrics.IngestResult) error {
	s.ingested.WithLabelValues(r.Source).Add(float64(r.Stations))
	return nil
}

// RecordTraining updates the training counters and quality gauges.
func (s *PromSink) RecordTraining(r coremetrics.TrainingResult) error {
	s.trainings.Inc()
	s.trainMAE.Set(r.MAE)
	s.trainRMSE.Set(r.RMSE)
	s.trainScore.Set(r.TestScore)
	s.trainDuration.Observe(r.Duration.Seconds())
	return nil
}

// RecordRecommendation counts served requests per purpose.
func (s *PromSink) RecordRecommendation(r coremetrics.RecommendationEvent) error {
	s.recommendations.WithLabelValues(r.Purpose).Inc()
	return nil
}

// RecordPurge counts rows removed by retention sweeps.
func (s *PromSink) RecordPurge(r coremetrics.PurgeResult) error {
	s.purged.Add(float64(r.Removed))
	return nil
}
