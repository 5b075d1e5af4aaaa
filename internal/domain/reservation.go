package domain

import "fmt"

// Reservation represents one passenger's seat booking on a trip.
type Reservation struct {
	ID            string
	TripID        string
	PassengerName string
	DocumentID    string
	Seat          int
	Transferred   bool // Set once the reservation has been moved; never reverts
	Restricted    bool // Set when a transfer crossed operator boundaries
}

// Label returns the passenger/seat description used in operator-facing messages.
func (r *Reservation) Label() string {
	return fmt.Sprintf("%s (Seat %d)", r.PassengerName, r.Seat)
}

// ReservationIDs returns the identifiers of the given reservations in order.
func ReservationIDs(reservations []*Reservation) []string {
	ids := make([]string, 0, len(reservations))
	for _, r := range reservations {
		ids = append(ids, r.ID)
	}
	return ids
}
