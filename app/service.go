package app

import (
	"context"
	"fmt"
	"os"

	"github.com/seoulbike/bikeflow/config"
	"github.com/seoulbike/bikeflow/core/forecast"
	coremetrics "github.com/seoulbike/bikeflow/core/metrics"
	"github.com/seoulbike/bikeflow/core/recommend"
	"github.com/seoulbike/bikeflow/core/scheduler"
	"github.com/seoulbike/bikeflow/infra/ingest"
	"github.com/seoulbike/bikeflow/infra/logger"
	"github.com/seoulbike/bikeflow/infra/metrics"
	"github.com/seoulbike/bikeflow/infra/store"
	"github.com/seoulbike/bikeflow/internal/eventbus"
)

// Service orchestrates the snapshot store, the forecaster, the recommendation
// scorer and the periodic jobs.
type Service struct {
	Store      *store.SQLiteStore
	Forecaster *forecast.Forecaster
	Scorer     *recommend.Scorer
	Advisor    *recommend.Advisor
	Jobs       *scheduler.Jobs

	source      ingest.Source
	bus         *eventbus.Bus[scheduler.JobResult]
	log         logger.Logger
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration. A model artifact already on
// disk is loaded; its absence is not an error because the scorer degrades to
// forecast-free scoring until the first training run.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}

	sink := buildSink(cfg.Metrics, logg)

	fc := forecast.New(cfg.Forecast.Forest, logger.New("forecast"))
	if _, err := os.Stat(cfg.Scheduler.ModelPath); err == nil {
		if err := fc.Load(cfg.Scheduler.ModelPath); err != nil {
			logg.Warnf("model artifact unusable, serving without forecasts: %v", err)
		}
	}

	scorer := recommend.NewScorer(st, fc, cfg.Recommend, logger.New("recommend"))
	scorer.SetMetrics(sink)

	source, err := ingest.NewSource(cfg.Ingest, st, sink)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("ingest source: %w", err)
	}
	var collector scheduler.Collector
	if poller, ok := source.(*ingest.HTTPSource); ok {
		// HTTP polling is driven by the scheduler's collect loop; only push
		// sources run their own Start loop.
		collector = poller
		source = nil
	}

	bus := eventbus.New[scheduler.JobResult]()
	jobs := scheduler.New(cfg.Scheduler, st, fc, collector, sink, bus, logger.New("scheduler"))

	return &Service{
		Store:       st,
		Forecaster:  fc,
		Scorer:      scorer,
		Advisor:     recommend.NewAdvisor(scorer),
		Jobs:        jobs,
		source:      source,
		bus:         bus,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}, nil
}

func buildSink(cfg coremetrics.Config, logg logger.Logger) coremetrics.Sink {
	var sinks []coremetrics.Sink
	if cfg.PrometheusEnabled {
		sink, err := metrics.NewPromSink()
		if err != nil {
			logg.Errorf("prom sink: %v", err)
		} else {
			sinks = append(sinks, sink)
		}
	}
	if cfg.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg))
	}
	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}
	case 1:
		return sinks[0]
	default:
		return metrics.NewMultiSink(sinks...)
	}
}

// Run starts the job loops, the push source if any, and the metrics server,
// then blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	results := s.bus.Subscribe()
	go func() {
		for res := range results {
			if res.Err != nil {
				s.log.Warnf("job %s failed after %s: %v", res.Job, res.Duration, res.Err)
				continue
			}
			s.log.Infof("job %s done: count=%d duration=%s", res.Job, res.Count, res.Duration)
		}
	}()

	if s.source != nil {
		go func() {
			if err := s.source.Start(ctx); err != nil {
				s.log.Errorf("ingest source: %v", err)
			}
		}()
	}
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	go func() {
		if err := s.Jobs.Run(ctx); err != nil {
			s.log.Errorf("scheduler: %v", err)
		}
	}()

	<-ctx.Done()
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	return s.Store.Close()
}
