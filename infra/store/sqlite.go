// Package store provides the SQLite-backed snapshot store. The driver is
// modernc.org/sqlite, so the binary stays pure Go.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/seoulbike/bikeflow/core/geo"
	"github.com/seoulbike/bikeflow/core/model"
	"github.com/seoulbike/bikeflow/core/storage"
)

// SQLiteStore persists station observations in a SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	nowFn func() time.Time
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrStorage, err)
	}
	schema := `CREATE TABLE IF NOT EXISTS station_status (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        station_id TEXT NOT NULL,
        station_name TEXT NOT NULL,
        bike_count INTEGER NOT NULL,
        capacity INTEGER NOT NULL,
        lat REAL,
        lng REAL,
        collected_at INTEGER NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_station_time ON station_status(station_id, collected_at);
    CREATE INDEX IF NOT EXISTS idx_collected_at ON station_status(collected_at);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, fmt.Errorf("%w: %v", storage.ErrStorage, err)
	}
	return &SQLiteStore{db: db, nowFn: time.Now}, nil
}

// SetNow overrides the clock used for age windows. Intended for tests.
func (s *SQLiteStore) SetNow(now func() time.Time) { s.nowFn = now }

// Append persists one observation.
func (s *SQLiteStore) Append(ctx context.Context, obs model.StationObservation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO station_status (station_id, station_name, bike_count, capacity, lat, lng, collected_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		obs.StationID, obs.StationName, obs.BikeCount, obs.Capacity, obs.Lat, obs.Lng, obs.CollectedAt.Unix())
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrStorage, err)
	}
	return nil
}

// AppendBatch persists one poll cycle in a single transaction.
func (s *SQLiteStore) AppendBatch(ctx context.Context, obs []model.StationObservation) error {
	if len(obs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrStorage, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO station_status (station_id, station_name, bike_count, capacity, lat, lng, collected_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: %v", storage.ErrStorage, err)
	}
	defer stmt.Close()
	for _, o := range obs {
		if _, err := stmt.ExecContext(ctx,
			o.StationID, o.StationName, o.BikeCount, o.Capacity, o.Lat, o.Lng, o.CollectedAt.Unix()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: %v", storage.ErrStorage, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrStorage, err)
	}
	return nil
}

// LatestPerStation returns the freshest observation per station seen within
// maxAge of now.
func (s *SQLiteStore) LatestPerStation(ctx context.Context, maxAge time.Duration) ([]model.StationObservation, error) {
	cutoff := s.nowFn().Add(-maxAge).Unix()
	rows, err := s.db.QueryContext(ctx,
		`SELECT station_id, station_name, bike_count, capacity, lat, lng, collected_at
         FROM station_status s1
         WHERE collected_at = (
             SELECT MAX(s2.collected_at) FROM station_status s2 WHERE s2.station_id = s1.station_id
         )
         AND collected_at >= ?
         GROUP BY station_id`,
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrStorage, err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

// History returns all observations for a station since the given time,
// ordered ascending by collection time.
func (s *SQLiteStore) History(ctx context.Context, stationID string, since time.Time) ([]model.StationObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT station_id, station_name, bike_count, capacity, lat, lng, collected_at
         FROM station_status
         WHERE station_id = ? AND collected_at >= ?
         ORDER BY collected_at ASC`,
		stationID, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrStorage, err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

// Since returns every observation newer than the given time across all
// stations, ordered by station then collection time.
func (s *SQLiteStore) Since(ctx context.Context, since time.Time) ([]model.StationObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT station_id, station_name, bike_count, capacity, lat, lng, collected_at
         FROM station_status
         WHERE collected_at >= ?
         ORDER BY station_id, collected_at ASC`,
		since.Unix())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrStorage, err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

// Nearby filters the latest-per-station snapshot by great-circle distance and
// sorts ascending by distance.
func (s *SQLiteStore) Nearby(ctx context.Context, from model.Point, radiusKm float64, maxAge time.Duration) ([]storage.NearbyStation, error) {
	latest, err := s.LatestPerStation(ctx, maxAge)
	if err != nil {
		return nil, err
	}
	var nearby []storage.NearbyStation
	for _, obs := range latest {
		d := geo.DistanceKm(from, model.Point{Lat: obs.Lat, Lng: obs.Lng})
		if d <= radiusKm {
			nearby = append(nearby, storage.NearbyStation{StationObservation: obs, DistanceKm: d})
		}
	}
	sort.Slice(nearby, func(i, j int) bool { return nearby[i].DistanceKm < nearby[j].DistanceKm })
	return nearby, nil
}

// Purge deletes observations older than the given age in one transaction and
// reports the number of removed rows.
func (s *SQLiteStore) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.nowFn().Add(-olderThan).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM station_status WHERE collected_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrStorage, err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func scanObservations(rows *sql.Rows) ([]model.StationObservation, error) {
	var out []model.StationObservation
	for rows.Next() {
		var obs model.StationObservation
		var ts int64
		if err := rows.Scan(&obs.StationID, &obs.StationName, &obs.BikeCount, &obs.Capacity,
			&obs.Lat, &obs.Lng, &ts); err != nil {
			return nil, fmt.Errorf("%w: %v", storage.ErrStorage, err)
		}
		obs.CollectedAt = time.Unix(ts, 0).UTC()
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrStorage, err)
	}
	return out, nil
}
