// Package scheduler runs the pipeline's periodic jobs: snapshot collection,
// model retraining and retention purges. The loops are plain tickers; each
// job is also callable one-shot for the CLI.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/seoulbike/bikeflow/core/features"
	"github.com/seoulbike/bikeflow/core/forecast"
	"github.com/seoulbike/bikeflow/core/logger"
	"github.com/seoulbike/bikeflow/core/metrics"
	"github.com/seoulbike/bikeflow/core/storage"
	"github.com/seoulbike/bikeflow/internal/eventbus"
)

// Job names used in results and logs.
const (
	JobCollect = "collect"
	JobRetrain = "retrain"
	JobPurge   = "purge"
)

// JobResult reports one job execution on the event bus.
type JobResult struct {
	Job      string
	Err      error
	Count    int64 // stations ingested, samples trained on, or rows purged
	Duration time.Duration
	Time     time.Time
}

// Collector runs one ingestion cycle and reports the station count.
type Collector interface {
	Poll(ctx context.Context) (int, error)
}

// Jobs owns the periodic maintenance of the pipeline. Retraining failures
// never touch the currently published model; the forecaster only swaps after
// a fully successful run.
type Jobs struct {
	cfg        Config
	store      storage.SnapshotStore
	forecaster *forecast.Forecaster
	collector  Collector
	sink       metrics.Sink
	bus        *eventbus.Bus[JobResult]
	log        logger.Logger
	nowFn      func() time.Time
}

// New wires the job runner. collector may be nil when ingestion runs as a
// push source; the collect loop is then skipped.
func New(cfg Config, store storage.SnapshotStore, fc *forecast.Forecaster, collector Collector,
	sink metrics.Sink, bus *eventbus.Bus[JobResult], log logger.Logger) *Jobs {
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Jobs{
		cfg:        cfg,
		store:      store,
		forecaster: fc,
		collector:  collector,
		sink:       sink,
		bus:        bus,
		log:        log,
		nowFn:      time.Now,
	}
}

// SetNow overrides the job clock. Intended for tests.
func (j *Jobs) SetNow(now func() time.Time) { j.nowFn = now }

// Run starts the job loops and blocks until the context is cancelled.
func (j *Jobs) Run(ctx context.Context) error {
	if j.collector != nil {
		go j.loop(ctx, JobCollect, time.Duration(j.cfg.CollectIntervalMinutes)*time.Minute, j.RunCollect)
	}
	go j.loop(ctx, JobRetrain, time.Duration(j.cfg.RetrainIntervalHours)*time.Hour, j.RunRetrain)
	go j.loop(ctx, JobPurge, time.Duration(j.cfg.PurgeIntervalHours)*time.Hour, j.RunPurge)
	<-ctx.Done()
	return nil
}

func (j *Jobs) loop(ctx context.Context, name string, interval time.Duration, run func(context.Context) (int64, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := j.nowFn()
			count, err := run(ctx)
			if err != nil {
				j.log.Errorf("%s job: %v", name, err)
			}
			if j.bus != nil {
				j.bus.Publish(JobResult{
					Job:      name,
					Err:      err,
					Count:    count,
					Duration: j.nowFn().Sub(start),
					Time:     start,
				})
			}
		}
	}
}

// RunCollect executes one ingestion cycle.
func (j *Jobs) RunCollect(ctx context.Context) (int64, error) {
	if j.collector == nil {
		return 0, fmt.Errorf("no collector configured")
	}
	n, err := j.collector.Poll(ctx)
	return int64(n), err
}

// RunRetrain loads the training window, extracts features, trains a fresh
// model and persists the artifact. The previously loaded model keeps serving
// if any step fails.
func (j *Jobs) RunRetrain(ctx context.Context) (int64, error) {
	start := j.nowFn()
	since := start.AddDate(0, 0, -j.cfg.TrainingWindowDays)
	history, err := j.store.Since(ctx, since)
	if err != nil {
		return 0, err
	}
	samples := features.Extract(history)
	m, err := j.forecaster.Train(samples)
	if err != nil {
		return int64(len(samples)), err
	}
	if err := j.forecaster.Save(j.cfg.ModelPath); err != nil {
		return int64(m.Samples), fmt.Errorf("save model: %w", err)
	}
	if err := j.sink.RecordTraining(metrics.TrainingResult{
		RunID:     m.RunID,
		Samples:   m.Samples,
		MAE:       m.MAE,
		RMSE:      m.RMSE,
		TestScore: m.TestScore,
		Duration:  j.nowFn().Sub(start),
		Time:      start,
	}); err != nil {
		j.log.Warnf("record training: %v", err)
	}
	return int64(m.Samples), nil
}

// RunPurge removes observations past the retention age.
func (j *Jobs) RunPurge(ctx context.Context) (int64, error) {
	removed, err := j.store.Purge(ctx, time.Duration(j.cfg.RetentionDays)*24*time.Hour)
	if err != nil {
		return 0, err
	}
	if err := j.sink.RecordPurge(metrics.PurgeResult{Removed: removed, Time: j.nowFn()}); err != nil {
		j.log.Warnf("record purge: %v", err)
	}
	j.log.Infof("purged %d observations older than %d days", removed, j.cfg.RetentionDays)
	return removed, nil
}
