package recommend

import (
	"context"
	"math"
	"time"

	"github.com/seoulbike/bikeflow/core/geo"
	"github.com/seoulbike/bikeflow/core/model"
)

// routeTopN is the number of stations suggested per trip end.
const routeTopN = 3

// Advisor composes two scorer calls into a directional trip recommendation.
// It adds no scoring logic of its own.
type Advisor struct {
	scorer *Scorer
	nowFn  func() time.Time
}

// NewAdvisor wraps the scorer for route planning.
func NewAdvisor(s *Scorer) *Advisor {
	return &Advisor{scorer: s, nowFn: time.Now}
}

// SetNow overrides the advisor clock. Intended for tests.
func (a *Advisor) SetNow(now func() time.Time) { a.nowFn = now }

// RecommendRoute suggests rent stations near the start biased toward the end
// point, return stations near the end biased back toward the start, and the
// trip's distance and ride-time estimate at 15 km/h.
func (a *Advisor) RecommendRoute(ctx context.Context, start, end model.Point) (model.RoutePlan, error) {
	departure, err := a.scorer.Recommend(ctx, Query{
		From:        start,
		Destination: &end,
		Purpose:     model.PurposeRent,
		Limit:       routeTopN,
	})
	if err != nil {
		return model.RoutePlan{}, err
	}
	arrival, err := a.scorer.Recommend(ctx, Query{
		From:        end,
		Destination: &start,
		Purpose:     model.PurposeReturn,
		Limit:       routeTopN,
	})
	if err != nil {
		return model.RoutePlan{}, err
	}

	distance := geo.DistanceKm(start, end)
	return model.RoutePlan{
		Departure: departure,
		Arrival:   arrival,
		Route: model.RouteInfo{
			TotalDistanceKm: math.Round(distance*100) / 100,
			RideTimeMinutes: geo.RideMinutes(distance),
			GeneratedAt:     a.nowFn(),
		},
	}, nil
}
