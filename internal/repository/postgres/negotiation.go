package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"fleetshift/internal/domain"
	"fleetshift/internal/repository"
)

const negotiationColumns = `
		SELECT n.id, n.origin_trip_id, n.destination_trip_id, n.reservation_ids,
			n.cost_per_passenger, n.origin_comment, n.destination_operating_cost, n.minimum_compensation,
			n.destination_comment, n.offered_price, n.last_offer_by, n.state, n.final_price,
			n.version, n.created_at, n.updated_at
		FROM negotiations n
`

// NegotiationRepository is a PostgreSQL implementation of repository.NegotiationRepository.
type NegotiationRepository struct {
	q Querier
}

// NewNegotiationRepository creates a new PostgreSQL negotiation repository.
func NewNegotiationRepository(db *sql.DB) *NegotiationRepository {
	return &NegotiationRepository{q: db}
}

// NewNegotiationRepositoryWithTx creates a negotiation repository using a transaction.
func NewNegotiationRepositoryWithTx(tx *sql.Tx) *NegotiationRepository {
	return &NegotiationRepository{q: tx}
}

// Create persists a new negotiation.
func (r *NegotiationRepository) Create(ctx context.Context, n *domain.Negotiation) error {
	query := `
		INSERT INTO negotiations (id, origin_trip_id, destination_trip_id, reservation_ids,
			cost_per_passenger, origin_comment, destination_operating_cost, minimum_compensation,
			destination_comment, offered_price, last_offer_by, state, final_price,
			version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.q.ExecContext(ctx, query,
		n.ID,
		n.OriginTripID,
		n.DestinationTripID,
		pq.Array(n.ReservationIDs),
		n.CostPerPassenger,
		n.OriginComment,
		n.DestinationOperatingCost,
		n.MinimumCompensation,
		n.DestinationComment,
		n.OfferedPrice,
		n.LastOfferBy,
		n.State,
		nullDecimal(n.FinalPrice),
		n.Version,
		n.CreatedAt,
		n.UpdatedAt,
	)

	return mapError(err)
}

// GetByID retrieves a negotiation by ID.
func (r *NegotiationRepository) GetByID(ctx context.Context, id string) (*domain.Negotiation, error) {
	query := negotiationColumns + `WHERE n.id = $1`

	n, err := scanNegotiation(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return n, nil
}

// ListByDestinationOperator retrieves negotiations addressed to the operator in the given state.
func (r *NegotiationRepository) ListByDestinationOperator(ctx context.Context, operatorID string, state domain.NegotiationState) ([]*domain.Negotiation, error) {
	query := negotiationColumns + `
		JOIN trips t ON t.id = n.destination_trip_id
		JOIN vehicles v ON v.id = t.vehicle_id
		WHERE v.operator_id = $1 AND n.state = $2
		ORDER BY n.created_at
	`

	rows, err := r.q.QueryContext(ctx, query, operatorID, state)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var negotiations []*domain.Negotiation
	for rows.Next() {
		n, err := scanNegotiation(rows)
		if err != nil {
			return nil, err
		}
		negotiations = append(negotiations, n)
	}
	return negotiations, rows.Err()
}

// Update persists the negotiation guarded by its version.
func (r *NegotiationRepository) Update(ctx context.Context, n *domain.Negotiation) error {
	query := `
		UPDATE negotiations
		SET cost_per_passenger = $1, origin_comment = $2, destination_operating_cost = $3, minimum_compensation = $4,
			destination_comment = $5, offered_price = $6, last_offer_by = $7, state = $8, final_price = $9,
			updated_at = $10, version = version + 1
		WHERE id = $11 AND version = $12
	`

	result, err := r.q.ExecContext(ctx, query,
		n.CostPerPassenger,
		n.OriginComment,
		n.DestinationOperatingCost,
		n.MinimumCompensation,
		n.DestinationComment,
		n.OfferedPrice,
		n.LastOfferBy,
		n.State,
		nullDecimal(n.FinalPrice),
		n.UpdatedAt,
		n.ID,
		n.Version,
	)
	if err != nil {
		return mapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		var exists bool
		err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM negotiations WHERE id = $1)`, n.ID).Scan(&exists)
		if err != nil {
			return mapError(err)
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrStaleVersion
	}

	n.Version++
	return nil
}

func scanNegotiation(s rowScanner) (*domain.Negotiation, error) {
	var n domain.Negotiation
	var finalPrice decimal.NullDecimal

	err := s.Scan(
		&n.ID,
		&n.OriginTripID,
		&n.DestinationTripID,
		pq.Array(&n.ReservationIDs),
		&n.CostPerPassenger,
		&n.OriginComment,
		&n.DestinationOperatingCost,
		&n.MinimumCompensation,
		&n.DestinationComment,
		&n.OfferedPrice,
		&n.LastOfferBy,
		&n.State,
		&finalPrice,
		&n.Version,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if finalPrice.Valid {
		n.FinalPrice = &finalPrice.Decimal
	}
	return &n, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// Ensure NegotiationRepository implements repository.NegotiationRepository.
var _ repository.NegotiationRepository = (*NegotiationRepository)(nil)
