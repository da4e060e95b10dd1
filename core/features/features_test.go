package features

import (
	"errors"
	"testing"
	"time"

	"github.com/seoulbike/bikeflow/core/model"
)

func series(stationID string, start time.Time, counts ...int) []model.StationObservation {
	obs := make([]model.StationObservation, 0, len(counts))
	for i, c := range counts {
		obs = append(obs, model.StationObservation{
			StationID:   stationID,
			StationName: stationID,
			BikeCount:   c,
			Capacity:    20,
			Lat:         37.5,
			Lng:         127.0,
			CollectedAt: start.Add(time.Duration(i) * time.Hour),
		})
	}
	return obs
}

func TestExtractDropsRowsWithoutFullLags(t *testing.T) {
	start := time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)
	samples := Extract(series("ST-1", start, 5, 6, 7, 8, 9))
	// Five observations with three lag slots yield two usable rows.
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	for _, s := range samples {
		if len(s.Features) != len(Names) {
			t.Fatalf("feature width = %d, want %d", len(s.Features), len(Names))
		}
	}
	if samples[0].Target != 8 || samples[1].Target != 9 {
		t.Fatalf("targets = %v,%v, want 8,9", samples[0].Target, samples[1].Target)
	}
}

func TestExtractLagValues(t *testing.T) {
	start := time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)
	samples := Extract(series("ST-1", start, 5, 6, 7, 8))
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	f := samples[0].Features
	// prev_1h, prev_2h, prev_3h then change deltas.
	if f[6] != 7 || f[7] != 6 || f[8] != 5 {
		t.Fatalf("lags = %v,%v,%v, want 7,6,5", f[6], f[7], f[8])
	}
	if f[9] != 1 || f[10] != 2 {
		t.Fatalf("deltas = %v,%v, want 1,2", f[9], f[10])
	}
}

func TestExtractDoesNotLagAcrossStations(t *testing.T) {
	start := time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)
	history := append(series("ST-1", start, 1, 2, 3), series("ST-2", start, 9, 9, 9)...)
	// Each station has only three observations, so no row has a full lag set.
	if samples := Extract(history); len(samples) != 0 {
		t.Fatalf("got %d samples across station boundary, want 0", len(samples))
	}
}

func TestExtractSkipsZeroCapacity(t *testing.T) {
	start := time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)
	history := series("ST-1", start, 5, 6, 7, 8)
	for i := range history {
		history[i].Capacity = 0
	}
	if samples := Extract(history); len(samples) != 0 {
		t.Fatalf("got %d samples for zero-capacity station, want 0", len(samples))
	}
}

func TestExtractTemporalFeatures(t *testing.T) {
	// 2024-07-06 is a Saturday; rows land at 09..12 local hours.
	start := time.Date(2024, 7, 6, 6, 0, 0, 0, time.UTC)
	samples := Extract(series("ST-1", start, 5, 6, 7, 8))
	f := samples[0].Features
	if f[0] != 9 {
		t.Errorf("hour = %v, want 9", f[0])
	}
	if f[1] != float64(time.Saturday) {
		t.Errorf("day_of_week = %v, want %v", f[1], float64(time.Saturday))
	}
	if f[2] != 7 {
		t.Errorf("month = %v, want 7", f[2])
	}
	if f[3] != 1 {
		t.Errorf("is_weekend = %v, want 1", f[3])
	}
	if f[4] != 1 {
		t.Errorf("is_rush_hour = %v, want 1 for 09:00", f[4])
	}
	if f[5] != 2 {
		t.Errorf("season = %v, want 2 for July", f[5])
	}
	if f[13] != 20 || f[14] != 37.5 || f[15] != 127.0 {
		t.Errorf("static features = %v,%v,%v", f[13], f[14], f[15])
	}
}

func TestExtractAtPadsShortHistory(t *testing.T) {
	start := time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)
	history := series("ST-1", start, 4)
	ref := start.Add(2 * time.Hour)
	f, err := ExtractAt(history, ref)
	if err != nil {
		t.Fatalf("ExtractAt: %v", err)
	}
	// All lag slots fall back to the single known count.
	if f[6] != 4 || f[7] != 4 || f[8] != 4 {
		t.Fatalf("padded lags = %v,%v,%v, want 4,4,4", f[6], f[7], f[8])
	}
	if f[0] != 8 {
		t.Fatalf("hour = %v, want ref hour 8", f[0])
	}
}

func TestExtractAtEmptyHistory(t *testing.T) {
	_, err := ExtractAt(nil, time.Now())
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestSeasonOf(t *testing.T) {
	cases := []struct {
		m    time.Month
		want int
	}{
		{time.January, 0}, {time.December, 0},
		{time.March, 1}, {time.May, 1},
		{time.June, 2}, {time.August, 2},
		{time.September, 3}, {time.November, 3},
	}
	for _, tc := range cases {
		if got := seasonOf(tc.m); got != tc.want {
			t.Errorf("seasonOf(%v) = %d, want %d", tc.m, got, tc.want)
		}
	}
}
