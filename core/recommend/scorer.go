// Package recommend ranks candidate stations for a rider. The score blends
// current availability, proximity, destination accessibility and the 1-hour
// forecast; forecasting failures degrade the forecast term to zero instead of
// failing the request.
package recommend

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/seoulbike/bikeflow/core/geo"
	"github.com/seoulbike/bikeflow/core/logger"
	"github.com/seoulbike/bikeflow/core/metrics"
	"github.com/seoulbike/bikeflow/core/model"
	"github.com/seoulbike/bikeflow/core/storage"
)

// ErrInvalidCandidate marks a station that cannot be scored because its
// capacity is non-positive. Rank filters such candidates out instead of
// failing.
var ErrInvalidCandidate = errors.New("candidate station has no capacity")

// Scoring weights, fixed at design time.
const (
	weightAvailability = 0.40
	weightProximity    = 0.30
	weightDestination  = 0.20
	weightForecast     = 0.10

	proximityDecayKm   = 2.0
	destinationDecayKm = 3.0

	// Flat destination value substituted when the rider gives no
	// destination; it is weighted like a computed one.
	neutralDestination = 0.10
)

// Status classification thresholds.
const (
	lowCountThreshold = 2
	highCountFraction = 0.7
)

// Confidence thresholds on |predicted-current|/capacity.
const (
	highConfidenceRatio   = 0.10
	mediumConfidenceRatio = 0.30
)

// Config tunes candidate selection.
type Config struct {
	SearchRadiusKm  float64 `json:"search_radius_km"`
	MaxResults      int     `json:"max_results"`
	SnapshotMaxAgeM int     `json:"snapshot_max_age_minutes"`
	HistoryHours    int     `json:"history_hours"`
}

// SetDefaults applies the reference parameters.
func (c *Config) SetDefaults() {
	if c.SearchRadiusKm <= 0 {
		c.SearchRadiusKm = 2.0
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 10
	}
	if c.SnapshotMaxAgeM <= 0 {
		c.SnapshotMaxAgeM = 60
	}
	if c.HistoryHours <= 0 {
		c.HistoryHours = 6
	}
}

// ForecastSource is the slice of the forecaster the scorer depends on.
type ForecastSource interface {
	Predict(history []model.StationObservation, hours int) ([]model.Prediction, error)
}

// Query describes one recommendation request.
type Query struct {
	From        model.Point
	Destination *model.Point
	Purpose     model.Purpose
	Limit       int
}

// Scorer produces ranked station recommendations.
type Scorer struct {
	store      storage.SnapshotStore
	forecaster ForecastSource
	cfg        Config
	sink       metrics.Sink
	log        logger.Logger
	nowFn      func() time.Time
}

// NewScorer wires a scorer over the snapshot store and forecaster.
func NewScorer(store storage.SnapshotStore, fc ForecastSource, cfg Config, log logger.Logger) *Scorer {
	cfg.SetDefaults()
	return &Scorer{store: store, forecaster: fc, cfg: cfg, sink: metrics.NopSink{}, log: log, nowFn: time.Now}
}

// SetMetrics attaches a sink recording served requests.
func (s *Scorer) SetMetrics(sink metrics.Sink) {
	if sink != nil {
		s.sink = sink
	}
}

// SetNow overrides the scorer clock. Intended for tests.
func (s *Scorer) SetNow(now func() time.Time) { s.nowFn = now }

// Score computes the composite score for one candidate. The forecast may be
// nil, in which case its term contributes zero.
func (s *Scorer) Score(c storage.NearbyStation, dest *model.Point, purpose model.Purpose, forecast *model.Prediction) (float64, error) {
	if !c.HasCapacity() {
		return 0, ErrInvalidCandidate
	}

	var availability float64
	if purpose == model.PurposeRent {
		availability = c.AvailabilityRate()
	} else {
		availability = c.UsageRate()
	}
	score := availability * weightAvailability

	proximity := math.Max(0, (proximityDecayKm-c.DistanceKm)/proximityDecayKm)
	score += proximity * weightProximity

	if dest != nil {
		toDest := geo.DistanceKm(model.Point{Lat: c.Lat, Lng: c.Lng}, *dest)
		score += math.Max(0, (destinationDecayKm-toDest)/destinationDecayKm) * weightDestination
	} else {
		score += neutralDestination * weightDestination
	}

	if forecast != nil {
		future := forecast.PredictedAvailability
		if purpose == model.PurposeReturn {
			future = 1 - future
		}
		score += future * weightForecast
	}

	return math.Min(1.0, score), nil
}

// Recommend ranks the stations around the query point. Candidates with
// non-positive capacity are excluded before scoring. The result is sorted by
// score descending with ties broken by ascending distance, then station id.
func (s *Scorer) Recommend(ctx context.Context, q Query) ([]model.Recommendation, error) {
	maxAge := time.Duration(s.cfg.SnapshotMaxAgeM) * time.Minute
	candidates, err := s.store.Nearby(ctx, q.From, s.cfg.SearchRadiusKm, maxAge)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		s.log.Warnf("no stations within %.1f km of (%.5f, %.5f)", s.cfg.SearchRadiusKm, q.From.Lat, q.From.Lng)
		return nil, nil
	}

	since := s.nowFn().Add(-time.Duration(s.cfg.HistoryHours) * time.Hour)
	recs := make([]model.Recommendation, 0, len(candidates))
	for _, c := range candidates {
		if !c.HasCapacity() {
			continue
		}
		forecast := s.forecastFor(ctx, c.StationID, since)
		score, err := s.Score(c, q.Destination, q.Purpose, forecast)
		if err != nil {
			continue
		}
		recs = append(recs, buildRecommendation(c, q.Purpose, score, forecast))
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		if recs[i].DistanceKm != recs[j].DistanceKm {
			return recs[i].DistanceKm < recs[j].DistanceKm
		}
		return recs[i].StationID < recs[j].StationID
	})

	limit := q.Limit
	if limit <= 0 || limit > s.cfg.MaxResults {
		limit = s.cfg.MaxResults
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	if err := s.sink.RecordRecommendation(metrics.RecommendationEvent{
		Purpose:    q.Purpose.String(),
		Candidates: len(candidates),
		Results:    len(recs),
		Time:       s.nowFn(),
	}); err != nil {
		s.log.Warnf("record recommendation: %v", err)
	}
	return recs, nil
}

// forecastFor fetches the 1-hour forecast for a station. Any failure, from a
// missing model to an empty history, yields nil so scoring proceeds without
// the forecast term.
func (s *Scorer) forecastFor(ctx context.Context, stationID string, since time.Time) *model.Prediction {
	history, err := s.store.History(ctx, stationID, since)
	if err != nil {
		s.log.Warnf("history query for %s: %v", stationID, err)
		return nil
	}
	preds, err := s.forecaster.Predict(history, 1)
	if err != nil || len(preds) == 0 {
		return nil
	}
	return &preds[0]
}

func buildRecommendation(c storage.NearbyStation, purpose model.Purpose, score float64, forecast *model.Prediction) model.Recommendation {
	rec := model.Recommendation{
		StationID:             c.StationID,
		StationName:           c.StationName,
		Lat:                   c.Lat,
		Lng:                   c.Lng,
		CurrentBikes:          c.BikeCount,
		Capacity:              c.Capacity,
		DistanceKm:            c.DistanceKm,
		AvailabilityRate:      c.AvailabilityRate(),
		Score:                 math.Round(score*1000) / 1000,
		PredictedBikes:        c.BikeCount,
		PredictedAvailability: c.AvailabilityRate(),
		Status:                statusFor(c.StationObservation, purpose),
		Confidence:            confidenceFor(c.StationObservation, forecast),
		WalkingMinutes:        geo.WalkingMinutes(c.DistanceKm),
		ObservedAt:            c.CollectedAt,
	}
	if forecast != nil {
		rec.PredictedBikes = forecast.PredictedBikes
		rec.PredictedAvailability = forecast.PredictedAvailability
	}
	return rec
}

// statusFor classifies the station's inventory. For rent the bike count is
// judged; for return the same thresholds apply to empty docks, with "full"
// replacing "empty" when no dock is free.
func statusFor(obs model.StationObservation, purpose model.Purpose) model.Status {
	count := obs.BikeCount
	if purpose == model.PurposeReturn {
		count = obs.EmptySlots()
	}
	switch {
	case count == 0 && purpose == model.PurposeReturn:
		return model.StatusFull
	case count == 0:
		return model.StatusEmpty
	case count <= lowCountThreshold:
		return model.StatusLow
	case float64(count) >= float64(obs.Capacity)*highCountFraction:
		return model.StatusHigh
	default:
		return model.StatusMedium
	}
}

// confidenceFor grades forecast stability by how far the predicted count
// diverges from the current one relative to capacity. No forecast means low.
func confidenceFor(obs model.StationObservation, forecast *model.Prediction) model.Confidence {
	if forecast == nil || obs.Capacity <= 0 {
		return model.ConfidenceLow
	}
	ratio := math.Abs(float64(forecast.PredictedBikes-obs.BikeCount)) / float64(obs.Capacity)
	switch {
	case ratio < highConfidenceRatio:
		return model.ConfidenceHigh
	case ratio < mediumConfidenceRatio:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}
