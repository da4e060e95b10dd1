package recommend

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/seoulbike/bikeflow/core/model"
	"github.com/seoulbike/bikeflow/core/storage"
	"github.com/seoulbike/bikeflow/infra/logger"
)

// fakeStore serves canned nearby candidates and per-station histories.
type fakeStore struct {
	nearby    []storage.NearbyStation
	histories map[string][]model.StationObservation
	nearbyErr error
}

func (f *fakeStore) Append(context.Context, model.StationObservation) error        { return nil }
func (f *fakeStore) AppendBatch(context.Context, []model.StationObservation) error { return nil }
func (f *fakeStore) LatestPerStation(context.Context, time.Duration) ([]model.StationObservation, error) {
	return nil, nil
}
func (f *fakeStore) History(_ context.Context, stationID string, _ time.Time) ([]model.StationObservation, error) {
	return f.histories[stationID], nil
}
func (f *fakeStore) Since(context.Context, time.Time) ([]model.StationObservation, error) {
	return nil, nil
}
func (f *fakeStore) Nearby(context.Context, model.Point, float64, time.Duration) ([]storage.NearbyStation, error) {
	return f.nearby, f.nearbyErr
}
func (f *fakeStore) Purge(context.Context, time.Duration) (int64, error) { return 0, nil }
func (f *fakeStore) Close() error                                        { return nil }

// fakeForecast returns a fixed predicted count for every station, or an error.
type fakeForecast struct {
	bikes int
	err   error
}

func (f *fakeForecast) Predict(history []model.StationObservation, hours int) ([]model.Prediction, error) {
	if f.err != nil {
		return nil, f.err
	}
	latest := history[len(history)-1]
	avail := 0.0
	if latest.Capacity > 0 {
		avail = float64(f.bikes) / float64(latest.Capacity)
	}
	return []model.Prediction{{
		StationID:             latest.StationID,
		HoursAhead:            1,
		PredictedBikes:        f.bikes,
		CurrentBikes:          latest.BikeCount,
		Capacity:              latest.Capacity,
		PredictedAvailability: avail,
	}}, nil
}

func nearby(id string, bikes, capacity int, distanceKm float64) storage.NearbyStation {
	return storage.NearbyStation{
		StationObservation: model.StationObservation{
			StationID:   id,
			StationName: id,
			BikeCount:   bikes,
			Capacity:    capacity,
			Lat:         37.5,
			Lng:         127.0,
			CollectedAt: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
		},
		DistanceKm: distanceKm,
	}
}

func newTestScorer(store *fakeStore, fc ForecastSource) *Scorer {
	s := NewScorer(store, fc, Config{}, logger.NopLogger{})
	s.SetNow(func() time.Time {
		return time.Date(2024, 5, 10, 12, 30, 0, 0, time.UTC)
	})
	return s
}

func TestScoreStaysInUnitInterval(t *testing.T) {
	s := newTestScorer(&fakeStore{}, &fakeForecast{err: errors.New("no model")})
	dest := &model.Point{Lat: 37.51, Lng: 127.01}
	forecast := &model.Prediction{PredictedBikes: 20, PredictedAvailability: 1.0, Capacity: 20}

	candidates := []storage.NearbyStation{
		nearby("A", 0, 10, 0),
		nearby("B", 10, 10, 0),
		nearby("C", 18, 20, 0.13),
		nearby("D", 3, 25, 1.9),
		nearby("E", 40, 40, 0.01),
	}
	for _, c := range candidates {
		for _, purpose := range []model.Purpose{model.PurposeRent, model.PurposeReturn} {
			for _, d := range []*model.Point{nil, dest} {
				for _, fc := range []*model.Prediction{nil, forecast} {
					score, err := s.Score(c, d, purpose, fc)
					if err != nil {
						t.Fatalf("Score(%s): %v", c.StationID, err)
					}
					if score < 0 || score > 1 {
						t.Fatalf("Score(%s, %v) = %v outside [0,1]", c.StationID, purpose, score)
					}
				}
			}
		}
	}
}

func TestScoreZeroCapacityCandidate(t *testing.T) {
	s := newTestScorer(&fakeStore{}, &fakeForecast{})
	_, err := s.Score(nearby("A", 0, 0, 0.5), nil, model.PurposeRent, nil)
	if !errors.Is(err, ErrInvalidCandidate) {
		t.Fatalf("err = %v, want ErrInvalidCandidate", err)
	}
}

func TestScoreReferenceScenario(t *testing.T) {
	// Station with 18 of 20 bikes about 0.13 km away, rent, no destination,
	// no forecast: 0.36 availability + ~0.28 proximity + 0.02 neutral
	// destination, roughly 0.66 total.
	s := newTestScorer(&fakeStore{}, &fakeForecast{})
	c := nearby("A", 18, 20, 0.13)
	score, err := s.Score(c, nil, model.PurposeRent, nil)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if math.Abs(score-0.66) > 0.01 {
		t.Fatalf("score = %v, want ~0.66", score)
	}
}

func TestRecommendRanksByScoreDistanceThenID(t *testing.T) {
	// X and Y score identically by construction: Y trades availability
	// for proximity. Z ties with X on everything, so id breaks the tie.
	store := &fakeStore{nearby: []storage.NearbyStation{
		nearby("ST-B", 20, 40, 1.0),  // 0.5 avail at 1.0 km -> 0.37
		nearby("ST-Y", 5, 16, 0.5),   // 0.3125 avail at 0.5 km -> 0.37
		nearby("ST-A", 20, 40, 1.0),  // same score and distance as ST-B
		nearby("ST-W", 40, 40, 0.1),  // clearly best
	}}
	s := newTestScorer(store, &fakeForecast{err: errors.New("no model")})

	recs, err := s.Recommend(context.Background(), Query{From: model.Point{Lat: 37.5, Lng: 127.0}})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	got := make([]string, len(recs))
	for i, r := range recs {
		got[i] = r.StationID
	}
	want := []string{"ST-W", "ST-Y", "ST-A", "ST-B"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].Score > recs[i-1].Score {
			t.Fatalf("scores not descending: %v", recs)
		}
	}
}

func TestRecommendSkipsZeroCapacity(t *testing.T) {
	store := &fakeStore{nearby: []storage.NearbyStation{
		nearby("OK", 5, 10, 0.2),
		nearby("BROKEN", 5, 0, 0.1),
	}}
	s := newTestScorer(store, &fakeForecast{err: errors.New("no model")})
	recs, err := s.Recommend(context.Background(), Query{From: model.Point{Lat: 37.5, Lng: 127.0}})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) != 1 || recs[0].StationID != "OK" {
		t.Fatalf("recs = %+v, want only OK", recs)
	}
}

func TestRecommendLimit(t *testing.T) {
	store := &fakeStore{nearby: []storage.NearbyStation{
		nearby("A", 5, 10, 0.1),
		nearby("B", 5, 10, 0.2),
		nearby("C", 5, 10, 0.3),
	}}
	s := newTestScorer(store, &fakeForecast{err: errors.New("no model")})
	recs, err := s.Recommend(context.Background(), Query{From: model.Point{Lat: 37.5, Lng: 127.0}, Limit: 2})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d recs, want 2", len(recs))
	}
}

func TestRecommendStoreErrorPropagates(t *testing.T) {
	store := &fakeStore{nearbyErr: storage.ErrStorage}
	s := newTestScorer(store, &fakeForecast{})
	_, err := s.Recommend(context.Background(), Query{From: model.Point{Lat: 37.5, Lng: 127.0}})
	if !errors.Is(err, storage.ErrStorage) {
		t.Fatalf("err = %v, want ErrStorage", err)
	}
}

func TestStatusPurposeSymmetry(t *testing.T) {
	empty := nearby("A", 0, 10, 0.1)
	store := &fakeStore{nearby: []storage.NearbyStation{empty}}
	s := newTestScorer(store, &fakeForecast{err: errors.New("no model")})

	rent, err := s.Recommend(context.Background(), Query{From: model.Point{Lat: 37.5, Lng: 127.0}, Purpose: model.PurposeRent})
	if err != nil {
		t.Fatalf("Recommend rent: %v", err)
	}
	if rent[0].Status != model.StatusEmpty {
		t.Fatalf("rent status = %v, want empty", rent[0].Status)
	}

	ret, err := s.Recommend(context.Background(), Query{From: model.Point{Lat: 37.5, Lng: 127.0}, Purpose: model.PurposeReturn})
	if err != nil {
		t.Fatalf("Recommend return: %v", err)
	}
	// Ten free docks out of ten reads as high for a return.
	if ret[0].Status != model.StatusHigh {
		t.Fatalf("return status = %v, want high", ret[0].Status)
	}
}

func TestStatusThresholds(t *testing.T) {
	cases := []struct {
		bikes, capacity int
		purpose         model.Purpose
		want            model.Status
	}{
		{0, 20, model.PurposeRent, model.StatusEmpty},
		{2, 20, model.PurposeRent, model.StatusLow},
		{5, 20, model.PurposeRent, model.StatusMedium},
		{14, 20, model.PurposeRent, model.StatusHigh},
		{20, 20, model.PurposeReturn, model.StatusFull},
		{18, 20, model.PurposeReturn, model.StatusLow},
		{10, 20, model.PurposeReturn, model.StatusMedium},
		{6, 20, model.PurposeReturn, model.StatusHigh},
	}
	for _, tc := range cases {
		obs := model.StationObservation{BikeCount: tc.bikes, Capacity: tc.capacity}
		if got := statusFor(obs, tc.purpose); got != tc.want {
			t.Errorf("statusFor(%d/%d, %v) = %v, want %v",
				tc.bikes, tc.capacity, tc.purpose, got, tc.want)
		}
	}
}

func TestConfidenceFromForecast(t *testing.T) {
	history := map[string][]model.StationObservation{
		"A": {nearby("A", 10, 20, 0).StationObservation},
	}
	cases := []struct {
		name      string
		predicted int
		want      model.Confidence
	}{
		{"stable forecast", 10, model.ConfidenceHigh},     // delta 0
		{"small drift", 13, model.ConfidenceMedium},       // delta 15% of capacity
		{"large swing", 17, model.ConfidenceLow},          // delta 35% of capacity
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{
				nearby:    []storage.NearbyStation{nearby("A", 10, 20, 0.1)},
				histories: history,
			}
			s := newTestScorer(store, &fakeForecast{bikes: tc.predicted})
			recs, err := s.Recommend(context.Background(), Query{From: model.Point{Lat: 37.5, Lng: 127.0}})
			if err != nil {
				t.Fatalf("Recommend: %v", err)
			}
			if recs[0].Confidence != tc.want {
				t.Fatalf("confidence = %v, want %v", recs[0].Confidence, tc.want)
			}
			if recs[0].PredictedBikes != tc.predicted {
				t.Fatalf("predicted bikes = %d, want %d", recs[0].PredictedBikes, tc.predicted)
			}
		})
	}
}

func TestRecommendDegradesWithoutForecast(t *testing.T) {
	store := &fakeStore{nearby: []storage.NearbyStation{nearby("A", 10, 20, 0.1)}}
	s := newTestScorer(store, &fakeForecast{err: errors.New("no model loaded")})
	recs, err := s.Recommend(context.Background(), Query{From: model.Point{Lat: 37.5, Lng: 127.0}})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d recs, want 1", len(recs))
	}
	// Without a forecast the current state stands in and confidence is low.
	if recs[0].PredictedBikes != 10 {
		t.Fatalf("predicted bikes = %d, want current 10", recs[0].PredictedBikes)
	}
	if recs[0].Confidence != model.ConfidenceLow {
		t.Fatalf("confidence = %v, want low", recs[0].Confidence)
	}
}
