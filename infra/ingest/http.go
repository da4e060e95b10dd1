package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/seoulbike/bikeflow/core/metrics"
	"github.com/seoulbike/bikeflow/core/model"
	"github.com/seoulbike/bikeflow/infra/logger"
)

// HTTPConfig parameterises the open-data bike status poller.
type HTTPConfig struct {
	BaseURL             string `json:"base_url"`
	APIKey              string `json:"api_key"`
	PageSize            int    `json:"page_size"`
	PollIntervalMinutes int    `json:"poll_interval_minutes"`
	TimeoutSeconds      int    `json:"timeout_seconds"`
}

// SetDefaults applies the reference endpoint parameters.
func (c *HTTPConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://openapi.seoul.go.kr:8088"
	}
	if c.PageSize <= 0 {
		c.PageSize = 1000
	}
	if c.PollIntervalMinutes <= 0 {
		c.PollIntervalMinutes = 10
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
}

// bikeListResponse mirrors the open-data payload shape.
type bikeListResponse struct {
	RentBikeStatus struct {
		Row []model.RawStationRecord `json:"row"`
	} `json:"rentBikeStatus"`
}

// HTTPSource polls the bike status endpoint and appends each cycle as one
// batch.
type HTTPSource struct {
	cfg    HTTPConfig
	store  Appender
	sink   metrics.Sink
	client *http.Client
	log    logger.Logger
	nowFn  func() time.Time
}

// NewHTTPSource creates the poller. A nil sink disables event recording.
func NewHTTPSource(cfg HTTPConfig, store Appender, sink metrics.Sink) *HTTPSource {
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &HTTPSource{
		cfg:    cfg,
		store:  store,
		sink:   sink,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:    logger.New("ingest-http"),
		nowFn:  time.Now,
	}
}

// SetNow overrides the observation clock. Intended for tests.
func (s *HTTPSource) SetNow(now func() time.Time) { s.nowFn = now }

// Start begins the polling loop and blocks until the context is cancelled.
// The first poll runs immediately.
func (s *HTTPSource) Start(ctx context.Context) error {
	if _, err := s.Poll(ctx); err != nil {
		s.log.Errorf("poll error: %v", err)
	}
	ticker := time.NewTicker(time.Duration(s.cfg.PollIntervalMinutes) * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Poll(ctx); err != nil {
				s.log.Errorf("poll error: %v", err)
			}
		}
	}
}

// Poll fetches one status page, coerces the records and appends them as a
// single batch. It returns the number of stations ingested.
func (s *HTTPSource) Poll(ctx context.Context) (int, error) {
	url := fmt.Sprintf("%s/%s/json/bikeList/1/%d/", s.cfg.BaseURL, s.cfg.APIKey, s.cfg.PageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("bike status request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("bike status request: unexpected status %s", resp.Status)
	}
	var payload bikeListResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("bike status decode: %w", err)
	}

	now := s.nowFn()
	obs := make([]model.StationObservation, 0, len(payload.RentBikeStatus.Row))
	for _, raw := range payload.RentBikeStatus.Row {
		obs = append(obs, model.ObservationFromRaw(raw, now))
	}
	if err := s.store.AppendBatch(ctx, obs); err != nil {
		return 0, err
	}
	if err := s.sink.RecordIngest(metrics.IngestResult{Source: "http", Stations: len(obs), Time: now}); err != nil {
		s.log.Warnf("record ingest: %v", err)
	}
	s.log.Infof("ingested %d station observations", len(obs))
	return len(obs), nil
}
