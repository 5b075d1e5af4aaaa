package repository

import (
	"context"

	"fleetshift/internal/domain"
)

// TripRepository defines the read operations on trip master data.
type TripRepository interface {
	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// GetByIDForUpdate retrieves a trip and holds an exclusive row lock on it
	// until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Trip, error)

	// ListByRoute retrieves the trips of a route except excludeID,
	// ordered by departure time.
	ListByRoute(ctx context.Context, routeID, excludeID string) ([]*domain.Trip, error)

	// ListByOperator retrieves the trips whose vehicle belongs to the operator.
	ListByOperator(ctx context.Context, operatorID string) ([]*domain.Trip, error)
}
