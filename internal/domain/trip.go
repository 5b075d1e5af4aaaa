package domain

import "time"

// Route represents a scheduled route between two terminals.
type Route struct {
	ID          string
	Origin      string
	Destination string
}

// Trip represents one scheduled departure of a vehicle on a route.
type Trip struct {
	ID          string
	RouteID     string
	Route       Route
	VehicleID   string
	OperatorID  string // Cooperative owning the vehicle
	Capacity    int    // Seats on the vehicle; 0 when not configured
	DepartureAt time.Time
}

// HasDeparted reports whether the trip left at or before now.
func (t *Trip) HasDeparted(now time.Time) bool {
	return !t.DepartureAt.After(now)
}

// SameOperator reports whether both trips belong to the same cooperative.
func (t *Trip) SameOperator(other *Trip) bool {
	return t.OperatorID == other.OperatorID
}
