package postgres

import (
	"context"
	"database/sql"

	"fleetshift/internal/domain"
	"fleetshift/internal/repository"
)

// tripColumns joins a trip with its route and vehicle. Trips without a
// vehicle report capacity 0.
const tripColumns = `
		SELECT t.id, t.route_id, r.origin, r.destination,
			COALESCE(t.vehicle_id, ''), COALESCE(v.operator_id, ''), COALESCE(v.capacity, 0),
			t.departure_at
		FROM trips t
		JOIN routes r ON r.id = t.route_id
		LEFT JOIN vehicles v ON v.id = t.vehicle_id
`

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

// NewTripRepositoryWithTx creates a trip repository using a transaction.
func NewTripRepositoryWithTx(tx *sql.Tx) *TripRepository {
	return &TripRepository{q: tx}
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := tripColumns + `WHERE t.id = $1`

	trip, err := scanTrip(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return trip, nil
}

// GetByIDForUpdate retrieves a trip and locks its row until the transaction ends.
// Only the trip row is locked; route and vehicle rows stay shared.
func (r *TripRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Trip, error) {
	query := tripColumns + `WHERE t.id = $1 FOR UPDATE OF t`

	trip, err := scanTrip(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return trip, nil
}

// ListByRoute retrieves the trips of a route except excludeID.
func (r *TripRepository) ListByRoute(ctx context.Context, routeID, excludeID string) ([]*domain.Trip, error) {
	query := tripColumns + `WHERE t.route_id = $1 AND t.id <> $2 ORDER BY t.departure_at`
	return r.list(ctx, query, routeID, excludeID)
}

// ListByOperator retrieves the trips whose vehicle belongs to the operator.
func (r *TripRepository) ListByOperator(ctx context.Context, operatorID string) ([]*domain.Trip, error) {
	query := tripColumns + `WHERE v.operator_id = $1 ORDER BY t.departure_at`
	return r.list(ctx, query, operatorID)
}

func (r *TripRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Trip, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var trips []*domain.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

func scanTrip(s rowScanner) (*domain.Trip, error) {
	var trip domain.Trip
	err := s.Scan(
		&trip.ID,
		&trip.RouteID,
		&trip.Route.Origin,
		&trip.Route.Destination,
		&trip.VehicleID,
		&trip.OperatorID,
		&trip.Capacity,
		&trip.DepartureAt,
	)
	if err != nil {
		return nil, err
	}
	trip.Route.ID = trip.RouteID
	return &trip, nil
}

// Ensure TripRepository implements repository.TripRepository.
var _ repository.TripRepository = (*TripRepository)(nil)
