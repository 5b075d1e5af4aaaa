package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"fleetshift/internal/domain"
	"fleetshift/internal/repository"
)

// TransferLogRepository is a PostgreSQL implementation of repository.TransferLogRepository.
type TransferLogRepository struct {
	q Querier
}

// NewTransferLogRepository creates a new PostgreSQL transfer log repository.
func NewTransferLogRepository(db *sql.DB) *TransferLogRepository {
	return &TransferLogRepository{q: db}
}

// NewTransferLogRepositoryWithTx creates a transfer log repository using a transaction.
func NewTransferLogRepositoryWithTx(tx *sql.Tx) *TransferLogRepository {
	return &TransferLogRepository{q: tx}
}

// Create persists a new audit entry.
func (r *TransferLogRepository) Create(ctx context.Context, entry *domain.TransferLog) error {
	query := `
		INSERT INTO transfer_logs (id, created_at, actor_id, origin_trip_id, destination_trip_id, reservation_ids, passenger_count,
			origin_free_before, origin_free_after, destination_free_before, destination_free_after, outcome, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.q.ExecContext(ctx, query,
		entry.ID,
		entry.CreatedAt,
		nullString(entry.ActorID),
		entry.OriginTripID,
		entry.DestinationTripID,
		pq.Array(entry.ReservationIDs),
		entry.PassengerCount,
		entry.OriginFreeBefore,
		entry.OriginFreeAfter,
		entry.DestinationFreeBefore,
		entry.DestinationFreeAfter,
		entry.Outcome,
		entry.Message,
	)

	return mapError(err)
}

// ListByTrip retrieves entries where the trip is origin or destination, newest first.
func (r *TransferLogRepository) ListByTrip(ctx context.Context, tripID string, limit int) ([]*domain.TransferLog, error) {
	query := `
		SELECT id, created_at, actor_id, origin_trip_id, destination_trip_id, reservation_ids, passenger_count,
			origin_free_before, origin_free_after, destination_free_before, destination_free_after, outcome, message
		FROM transfer_logs
		WHERE origin_trip_id = $1 OR destination_trip_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.q.QueryContext(ctx, query, tripID, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var entries []*domain.TransferLog
	for rows.Next() {
		var entry domain.TransferLog
		var actorID sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&entry.CreatedAt,
			&actorID,
			&entry.OriginTripID,
			&entry.DestinationTripID,
			pq.Array(&entry.ReservationIDs),
			&entry.PassengerCount,
			&entry.OriginFreeBefore,
			&entry.OriginFreeAfter,
			&entry.DestinationFreeBefore,
			&entry.DestinationFreeAfter,
			&entry.Outcome,
			&entry.Message,
		); err != nil {
			return nil, err
		}

		if actorID.Valid {
			entry.ActorID = &actorID.String
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Ensure TransferLogRepository implements repository.TransferLogRepository.
var _ repository.TransferLogRepository = (*TransferLogRepository)(nil)
