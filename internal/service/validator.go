package service

import (
	"time"

	"fleetshift/internal/domain"
)

// TransferValidator checks whether a set of reservations can be moved to a
// destination trip. It has no side effects besides reading the clock.
type TransferValidator struct {
	now func() time.Time
}

// NewTransferValidator creates a validator. A nil clock uses time.Now.
func NewTransferValidator(now func() time.Time) *TransferValidator {
	if now == nil {
		now = time.Now
	}
	return &TransferValidator{now: now}
}

// ValidationInput contains the entities and seat counts to validate.
type ValidationInput struct {
	Reservations    []*domain.Reservation
	Origin          *domain.Trip
	Destination     *domain.Trip
	OriginUsed      int
	DestinationUsed int
}

// ValidationSnapshot holds the occupancy computed while validating.
type ValidationSnapshot struct {
	OriginBefore      domain.Occupancy
	DestinationBefore domain.Occupancy
}

// Validate runs the transfer rules in order and returns the first failure.
func (v *TransferValidator) Validate(in ValidationInput) (*ValidationSnapshot, error) {
	if len(in.Reservations) == 0 {
		return nil, ErrNothingToTransfer
	}

	if dups := duplicateIDs(domain.ReservationIDs(in.Reservations)); len(dups) > 0 {
		return nil, &DuplicateReservationError{ReservationIDs: dups}
	}

	originID := in.Reservations[0].TripID
	var mismatched []string
	for _, r := range in.Reservations {
		if r.TripID != originID {
			mismatched = append(mismatched, r.ID)
		}
	}
	if len(mismatched) > 0 {
		return nil, &InconsistentOriginError{OriginTripID: originID, ReservationIDs: mismatched}
	}

	var transferred []*domain.Reservation
	for _, r := range in.Reservations {
		if r.Transferred {
			transferred = append(transferred, r)
		}
	}
	if len(transferred) > 0 {
		return nil, &AlreadyTransferredError{Reservations: transferred}
	}

	if in.Destination.ID == originID {
		return nil, ErrSameTrip
	}

	if in.Destination.HasDeparted(v.now()) {
		return nil, &DestinationDepartedError{TripID: in.Destination.ID, DepartureAt: in.Destination.DepartureAt}
	}

	snapshot := &ValidationSnapshot{
		OriginBefore:      domain.CalculateOccupancy(in.Origin.Capacity, in.OriginUsed),
		DestinationBefore: domain.CalculateOccupancy(in.Destination.Capacity, in.DestinationUsed),
	}

	if free := snapshot.DestinationBefore.Free(); free < len(in.Reservations) {
		return nil, &InsufficientCapacityError{Requested: len(in.Reservations), Free: free}
	}

	return snapshot, nil
}

// duplicateIDs returns each id that occurs more than once, in first-seen order.
func duplicateIDs(ids []string) []string {
	seen := make(map[string]int, len(ids))
	var dups []string
	for _, id := range ids {
		seen[id]++
		if seen[id] == 2 {
			dups = append(dups, id)
		}
	}
	return dups
}
