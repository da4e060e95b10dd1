// Package features derives fixed-width numeric feature vectors from a
// station's observation history. The vector layout is shared between training
// and inference and is version-stamped into every persisted model artifact.
package features

import (
	"errors"
	"sort"
	"time"

	"github.com/seoulbike/bikeflow/core/model"
)

// ErrInsufficientData is returned when a history holds too few observations
// to extract features from.
var ErrInsufficientData = errors.New("insufficient observation history")

// lagDepth is the number of per-station lag slots in the vector.
const lagDepth = 3

// Names lists the vector's features in their canonical order. A model trained
// against one ordering must never be applied to another.
var Names = []string{
	"hour", "day_of_week", "month", "is_weekend", "is_rush_hour", "season",
	"prev_1h_bikes", "prev_2h_bikes", "prev_3h_bikes",
	"bike_change_1h", "bike_change_2h",
	"usage_rate", "availability_rate",
	"rack_cnt", "station_lat", "station_lng",
}

// Sample pairs one feature vector with its regression target.
type Sample struct {
	Features []float64
	Target   float64
}

// Extract derives training samples from an observation history. Histories may
// interleave stations: rows are grouped per station and sorted by collection
// time before lagging, so lag features never cross a station boundary. Rows
// lacking a full set of lag observations are dropped, as are rows whose
// station reports zero capacity.
func Extract(history []model.StationObservation) []Sample {
	byStation := make(map[string][]model.StationObservation)
	for _, obs := range history {
		if !obs.HasCapacity() {
			continue
		}
		byStation[obs.StationID] = append(byStation[obs.StationID], obs)
	}

	var samples []Sample
	for _, series := range byStation {
		sort.Slice(series, func(i, j int) bool {
			return series[i].CollectedAt.Before(series[j].CollectedAt)
		})
		for i := lagDepth; i < len(series); i++ {
			cur := series[i]
			lags := [lagDepth]float64{
				float64(series[i-1].BikeCount),
				float64(series[i-2].BikeCount),
				float64(series[i-3].BikeCount),
			}
			samples = append(samples, Sample{
				Features: build(cur, cur.CollectedAt, lags),
				Target:   float64(cur.BikeCount),
			})
		}
	}
	return samples
}

// ExtractAt builds a single vector for predicting the station's count at ref.
// Temporal features come from ref; lag, delta and ratio features come from
// the most recent entries of history, which must be ordered ascending by
// collection time. Missing lag slots fall back to the freshest known count so
// single-point prediction stays available with a short history.
func ExtractAt(history []model.StationObservation, ref time.Time) ([]float64, error) {
	if len(history) == 0 {
		return nil, ErrInsufficientData
	}
	latest := history[len(history)-1]
	var lags [lagDepth]float64
	for i := 0; i < lagDepth; i++ {
		idx := len(history) - 1 - i
		if idx < 0 {
			idx = 0
		}
		lags[i] = float64(history[idx].BikeCount)
	}
	return build(latest, ref, lags), nil
}

func build(obs model.StationObservation, ref time.Time, lags [lagDepth]float64) []float64 {
	cur := float64(obs.BikeCount)
	return []float64{
		float64(ref.Hour()),
		float64(ref.Weekday()),
		float64(ref.Month()),
		boolFeature(isWeekend(ref.Weekday())),
		boolFeature(isRushHour(ref.Hour())),
		float64(seasonOf(ref.Month())),
		lags[0], lags[1], lags[2],
		cur - lags[0],
		cur - lags[1],
		obs.UsageRate(),
		obs.AvailabilityRate(),
		float64(obs.Capacity),
		obs.Lat,
		obs.Lng,
	}
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

func isRushHour(hour int) bool {
	switch hour {
	case 8, 9, 18, 19:
		return true
	}
	return false
}

// seasonOf buckets a month into winter(0), spring(1), summer(2), autumn(3).
func seasonOf(m time.Month) int {
	switch m {
	case time.December, time.January, time.February:
		return 0
	case time.March, time.April, time.May:
		return 1
	case time.June, time.July, time.August:
		return 2
	default:
		return 3
	}
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
