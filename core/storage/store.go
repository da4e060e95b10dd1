package storage

import (
	"context"
	"errors"
	"time"

	"github.com/seoulbike/bikeflow/core/model"
)

// ErrStorage wraps read/write failures of the snapshot store. Callers must
// surface or retry these, never drop them silently.
var ErrStorage = errors.New("snapshot storage failure")

// NearbyStation is a station's latest observation annotated with its distance
// from a query point.
type NearbyStation struct {
	model.StationObservation
	DistanceKm float64
}

// SnapshotStore persists station status observations and answers the range
// and point queries the pipeline is built on. Implementations must keep
// appends concurrent-safe with reads.
type SnapshotStore interface {
	// Append persists one observation.
	Append(ctx context.Context, obs model.StationObservation) error

	// AppendBatch persists one poll cycle's observations in a single
	// transaction.
	AppendBatch(ctx context.Context, obs []model.StationObservation) error

	// LatestPerStation returns the most recent observation for every
	// station seen within maxAge of now.
	LatestPerStation(ctx context.Context, maxAge time.Duration) ([]model.StationObservation, error)

	// History returns all observations for a station with timestamp >= since,
	// ordered ascending. Unknown stations yield an empty slice, not an error.
	History(ctx context.Context, stationID string, since time.Time) ([]model.StationObservation, error)

	// Since returns every observation with timestamp >= since across all
	// stations, ordered by station then collection time. This is the
	// training window query.
	Since(ctx context.Context, since time.Time) ([]model.StationObservation, error)

	// Nearby returns the latest observation per station within radiusKm of
	// the query point, sorted ascending by distance. Only stations observed
	// within maxAge are considered.
	Nearby(ctx context.Context, from model.Point, radiusKm float64, maxAge time.Duration) ([]NearbyStation, error)

	// Purge deletes observations older than the given age and reports how
	// many rows were removed.
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)

	Close() error
}
