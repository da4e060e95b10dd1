package geo

import (
	"math"

	"github.com/seoulbike/bikeflow/core/model"
)

const earthRadiusKm = 6371

// DistanceKm returns the great-circle distance between two points using the
// haversine formula.
func DistanceKm(a, b model.Point) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// WalkingMinutes estimates the walking time for a distance at the reference
// pedestrian speed of 4 km/h, rounded to whole minutes.
func WalkingMinutes(distanceKm float64) int {
	const walkingSpeedKmh = 4.0
	return int(math.Round(distanceKm / walkingSpeedKmh * 60))
}

// RideMinutes estimates the cycling time for a distance at the reference bike
// speed of 15 km/h.
func RideMinutes(distanceKm float64) int {
	const bikeSpeedKmh = 15.0
	return int(distanceKm / bikeSpeedKmh * 60)
}
