package model

import "time"

// Purpose is the rider's intent. It flips which scarcity is favorable:
// bikes for rent, empty docks for return.
type Purpose int

const (
	PurposeRent Purpose = iota
	PurposeReturn
)

// String returns a human-readable representation of the purpose.
func (p Purpose) String() string {
	switch p {
	case PurposeRent:
		return "rent"
	case PurposeReturn:
		return "return"
	default:
		return "unknown"
	}
}

// ParsePurpose maps the wire representation of a purpose to its value.
// Unknown strings default to rent.
func ParsePurpose(s string) Purpose {
	if s == "return" {
		return PurposeReturn
	}
	return PurposeRent
}

// Point is a geographic coordinate in floating-point degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Status classifies a station's inventory for a given purpose.
type Status string

const (
	StatusEmpty  Status = "empty"
	StatusFull   Status = "full"
	StatusLow    Status = "low"
	StatusMedium Status = "medium"
	StatusHigh   Status = "high"
)

// Confidence qualifies how stable the 1-hour forecast is relative to the
// current inventory.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Prediction is the output of one forecast call for one horizon.
type Prediction struct {
	StationID             string    `json:"station_id"`
	StationName           string    `json:"station_name"`
	PredictedTime         time.Time `json:"predicted_time"`
	HoursAhead            int       `json:"hours_ahead"`
	PredictedBikes        int       `json:"predicted_bikes"`
	CurrentBikes          int       `json:"current_bikes"`
	Capacity              int       `json:"capacity"`
	PredictedAvailability float64   `json:"predicted_availability"`
}

// Recommendation is one ranked entry returned to the rider.
type Recommendation struct {
	StationID             string     `json:"station_id"`
	StationName           string     `json:"station_name"`
	Lat                   float64    `json:"lat"`
	Lng                   float64    `json:"lng"`
	CurrentBikes          int        `json:"current_bikes"`
	Capacity              int        `json:"capacity"`
	DistanceKm            float64    `json:"distance_km"`
	AvailabilityRate      float64    `json:"availability_rate"`
	Score                 float64    `json:"score"`
	PredictedBikes        int        `json:"predicted_bikes"`
	PredictedAvailability float64    `json:"predicted_availability"`
	Status                Status     `json:"status"`
	Confidence            Confidence `json:"confidence"`
	WalkingMinutes        int        `json:"walking_time_minutes"`
	ObservedAt            time.Time  `json:"observed_at"`
}

// RouteInfo summarises the trip between the start and end points.
type RouteInfo struct {
	TotalDistanceKm float64   `json:"total_distance_km"`
	RideTimeMinutes int       `json:"estimated_bike_time_minutes"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// RoutePlan pairs departure and arrival recommendations for a trip.
type RoutePlan struct {
	Departure []Recommendation `json:"departure_stations"`
	Arrival   []Recommendation `json:"arrival_stations"`
	Route     RouteInfo        `json:"route_info"`
}
