package repository

import (
	"context"

	"fleetshift/internal/domain"
)

// TransferLogRepository persists the transfer audit trail. Entries are never
// updated or deleted.
type TransferLogRepository interface {
	// Create persists a new audit entry.
	Create(ctx context.Context, entry *domain.TransferLog) error

	// ListByTrip retrieves entries where the trip is origin or destination,
	// newest first.
	ListByTrip(ctx context.Context, tripID string, limit int) ([]*domain.TransferLog, error)
}
