package repository

import (
	"context"

	"fleetshift/internal/domain"
)

// ReservationRepository defines the persistence operations for reservations.
type ReservationRepository interface {
	// GetByIDs retrieves reservations preserving the order of ids.
	// Returns ErrNotFound if any id does not exist.
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Reservation, error)

	// GetByIDsForUpdate is GetByIDs holding row locks until the transaction ends.
	GetByIDsForUpdate(ctx context.Context, ids []string) ([]*domain.Reservation, error)

	// ListByTrip retrieves the reservations of a trip ordered by seat.
	ListByTrip(ctx context.Context, tripID string) ([]*domain.Reservation, error)

	// CountByTrip returns the number of reservations on a trip.
	CountByTrip(ctx context.Context, tripID string) (int, error)

	// OccupiedSeatsForUpdate locks the reservations of a trip and returns
	// their seat numbers.
	OccupiedSeatsForUpdate(ctx context.Context, tripID string) ([]int, error)

	// SeatTaken reports whether a persisted reservation holds the seat.
	SeatTaken(ctx context.Context, tripID string, seat int) (bool, error)

	// Update persists the trip, seat and flags of a reservation.
	Update(ctx context.Context, reservation *domain.Reservation) error
}
