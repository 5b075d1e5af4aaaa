package repository

import (
	"context"

	"fleetshift/internal/domain"
)

// NegotiationRepository defines the persistence operations for negotiations.
type NegotiationRepository interface {
	// Create persists a new negotiation.
	Create(ctx context.Context, negotiation *domain.Negotiation) error

	// GetByID retrieves a negotiation by ID.
	GetByID(ctx context.Context, id string) (*domain.Negotiation, error)

	// ListByDestinationOperator retrieves negotiations whose destination trip
	// belongs to the operator and that are in the given state.
	ListByDestinationOperator(ctx context.Context, operatorID string, state domain.NegotiationState) ([]*domain.Negotiation, error)

	// Update persists the negotiation if its stored version still equals
	// negotiation.Version, then increments the version.
	// Returns ErrStaleVersion otherwise.
	Update(ctx context.Context, negotiation *domain.Negotiation) error
}
