package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"fleetshift/internal/domain"
	"fleetshift/internal/repository"
)

const reservationColumns = `
		SELECT id, trip_id, passenger_name, document_id, seat, transferred, restricted
		FROM reservations
`

// ReservationRepository is a PostgreSQL implementation of repository.ReservationRepository.
type ReservationRepository struct {
	q Querier
}

// NewReservationRepository creates a new PostgreSQL reservation repository.
func NewReservationRepository(db *sql.DB) *ReservationRepository {
	return &ReservationRepository{q: db}
}

// NewReservationRepositoryWithTx creates a reservation repository using a transaction.
func NewReservationRepositoryWithTx(tx *sql.Tx) *ReservationRepository {
	return &ReservationRepository{q: tx}
}

// GetByIDs retrieves reservations in the order of ids.
func (r *ReservationRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Reservation, error) {
	query := reservationColumns + `WHERE id = ANY($1)`
	return r.getByIDs(ctx, query, ids)
}

// GetByIDsForUpdate retrieves reservations in the order of ids and locks them.
// Rows are locked in id order so concurrent callers cannot deadlock on them.
func (r *ReservationRepository) GetByIDsForUpdate(ctx context.Context, ids []string) ([]*domain.Reservation, error) {
	query := reservationColumns + `WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	return r.getByIDs(ctx, query, ids)
}

func (r *ReservationRepository) getByIDs(ctx context.Context, query string, ids []string) ([]*domain.Reservation, error) {
	found, err := r.list(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Reservation, len(found))
	for _, res := range found {
		byID[res.ID] = res
	}

	ordered := make([]*domain.Reservation, 0, len(ids))
	for _, id := range ids {
		res, ok := byID[id]
		if !ok {
			return nil, repository.ErrNotFound
		}
		ordered = append(ordered, res)
	}
	return ordered, nil
}

// ListByTrip retrieves the reservations of a trip ordered by seat.
func (r *ReservationRepository) ListByTrip(ctx context.Context, tripID string) ([]*domain.Reservation, error) {
	query := reservationColumns + `WHERE trip_id = $1 ORDER BY seat`
	return r.list(ctx, query, tripID)
}

// CountByTrip returns the number of reservations on a trip.
func (r *ReservationRepository) CountByTrip(ctx context.Context, tripID string) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE trip_id = $1`, tripID).Scan(&count)
	if err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

// OccupiedSeatsForUpdate locks the reservations of a trip and returns their seats.
func (r *ReservationRepository) OccupiedSeatsForUpdate(ctx context.Context, tripID string) ([]int, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT seat FROM reservations WHERE trip_id = $1 ORDER BY seat FOR UPDATE`,
		tripID,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var seats []int
	for rows.Next() {
		var seat int
		if err := rows.Scan(&seat); err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}
	return seats, rows.Err()
}

// SeatTaken reports whether a persisted reservation holds the seat.
func (r *ReservationRepository) SeatTaken(ctx context.Context, tripID string, seat int) (bool, error) {
	var taken bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM reservations WHERE trip_id = $1 AND seat = $2)`,
		tripID, seat,
	).Scan(&taken)
	if err != nil {
		return false, mapError(err)
	}
	return taken, nil
}

// Update persists the trip, seat and flags of a reservation.
func (r *ReservationRepository) Update(ctx context.Context, reservation *domain.Reservation) error {
	query := `
		UPDATE reservations
		SET trip_id = $1, seat = $2, transferred = $3, restricted = $4
		WHERE id = $5
	`

	result, err := r.q.ExecContext(ctx, query,
		reservation.TripID,
		reservation.Seat,
		reservation.Transferred,
		reservation.Restricted,
		reservation.ID,
	)
	if err != nil {
		return mapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *ReservationRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Reservation, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var reservations []*domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		if err := rows.Scan(
			&res.ID,
			&res.TripID,
			&res.PassengerName,
			&res.DocumentID,
			&res.Seat,
			&res.Transferred,
			&res.Restricted,
		); err != nil {
			return nil, err
		}
		reservations = append(reservations, &res)
	}
	return reservations, rows.Err()
}

// Ensure ReservationRepository implements repository.ReservationRepository.
var _ repository.ReservationRepository = (*ReservationRepository)(nil)
