package domain

import "math"

// Occupancy is the seat usage of a trip.
type Occupancy struct {
	Percent  float64 // Unrounded; use Rounded for display
	Used     int
	Capacity int
}

// CalculateOccupancy computes the occupancy for a trip with the given capacity
// and number of active reservations.
//
// A trip without a configured capacity yields the zero Occupancy, which has no
// free seats and is therefore never offered as a transfer target.
func CalculateOccupancy(capacity, used int) Occupancy {
	if capacity <= 0 {
		return Occupancy{}
	}
	return Occupancy{
		Percent:  float64(used) / float64(capacity) * 100,
		Used:     used,
		Capacity: capacity,
	}
}

// Free returns the number of unused seats.
func (o Occupancy) Free() int {
	return o.Capacity - o.Used
}

// Rounded returns the percentage rounded to two decimals.
func (o Occupancy) Rounded() float64 {
	return math.Round(o.Percent*100) / 100
}
