package model

import (
	"strconv"
	"time"
)

// StationObservation is one polled reading of a station's bike inventory.
// Observations are append-only: once persisted they are never updated.
type StationObservation struct {
	StationID   string
	StationName string
	BikeCount   int // bikes currently docked, >= 0
	Capacity    int // total dock capacity
	Lat         float64
	Lng         float64
	CollectedAt time.Time
}

// HasCapacity reports whether ratio features can be computed for the station.
// Observations with zero capacity are stored but excluded from feature and
// score computation.
func (o StationObservation) HasCapacity() bool {
	return o.Capacity > 0
}

// AvailabilityRate returns the fraction of docks holding a bike.
func (o StationObservation) AvailabilityRate() float64 {
	if o.Capacity <= 0 {
		return 0
	}
	return float64(o.BikeCount) / float64(o.Capacity)
}

// UsageRate returns the fraction of docks currently empty.
func (o StationObservation) UsageRate() float64 {
	if o.Capacity <= 0 {
		return 0
	}
	return float64(o.Capacity-o.BikeCount) / float64(o.Capacity)
}

// EmptySlots returns the number of free docks.
func (o StationObservation) EmptySlots() int {
	n := o.Capacity - o.BikeCount
	if n < 0 {
		return 0
	}
	return n
}

// RawStationRecord is one station entry as delivered by the ingestion
// boundary. All fields are strings because upstream feeds are inconsistent
// about numeric typing.
type RawStationRecord struct {
	StationID   string `json:"stationId"`
	StationName string `json:"stationName"`
	BikeCount   string `json:"parkingBikeTotCnt"`
	Capacity    string `json:"rackTotCnt"`
	Lat         string `json:"stationLatitude"`
	Lng         string `json:"stationLongitude"`
}

// ObservationFromRaw coerces a raw record into a StationObservation stamped
// with the given collection time. Unparseable counts become zero and negative
// counts are clamped; coordinates default to zero.
func ObservationFromRaw(r RawStationRecord, collectedAt time.Time) StationObservation {
	bikes, _ := strconv.Atoi(r.BikeCount)
	if bikes < 0 {
		bikes = 0
	}
	capacity, _ := strconv.Atoi(r.Capacity)
	if capacity < 0 {
		capacity = 0
	}
	lat, _ := strconv.ParseFloat(r.Lat, 64)
	lng, _ := strconv.ParseFloat(r.Lng, 64)
	return StationObservation{
		StationID:   r.StationID,
		StationName: r.StationName,
		BikeCount:   bikes,
		Capacity:    capacity,
		Lat:         lat,
		Lng:         lng,
		CollectedAt: collectedAt,
	}
}
