package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fleetshift/internal/domain"
)

var (
	// ErrValidation is matched by every transfer validation failure.
	ErrValidation = errors.New("transfer validation failed")

	// ErrConsistencyViolation is matched by fatal errors raised when the
	// seat-allocation invariants do not hold inside a transfer.
	ErrConsistencyViolation = errors.New("transfer consistency violation")

	// ErrNothingToTransfer is returned when a transfer has no reservations.
	ErrNothingToTransfer error = &validationError{msg: "No reservations were sent for transfer."}

	// ErrSameTrip is returned when origin and destination are the same trip.
	ErrSameTrip error = &validationError{msg: "The destination trip must differ from the origin trip."}
)

var (
	// ErrInvalidTripID is returned when a trip ID is empty.
	ErrInvalidTripID = errors.New("invalid trip id")

	// ErrInvalidOperatorID is returned when the acting operator is missing.
	ErrInvalidOperatorID = errors.New("invalid operator id")

	// ErrInvalidNegotiationID is returned when a negotiation ID is empty.
	ErrInvalidNegotiationID = errors.New("invalid negotiation id")

	// ErrInvalidPassengerCount is returned when a passenger count is not positive.
	ErrInvalidPassengerCount = errors.New("passenger count must be positive")

	// ErrSameOperator is returned when a negotiation is proposed between trips of one operator.
	ErrSameOperator = errors.New("origin and destination belong to the same operator; transfer directly")

	// ErrNotNegotiationParty is returned when the operator owns neither side of a negotiation.
	ErrNotNegotiationParty = errors.New("operator is not a party to this negotiation")

	// ErrNotYourTurn is returned when a party responds to its own pending offer.
	ErrNotYourTurn = errors.New("the pending offer must be answered by the other operator")

	// ErrNegotiationClosed is returned when acting on an accepted, rejected or withdrawn negotiation.
	ErrNegotiationClosed = errors.New("negotiation is closed")

	// ErrNegotiationBusy is returned when another action on the negotiation is in progress.
	ErrNegotiationBusy = errors.New("negotiation is being updated, retry shortly")

	// ErrStaleNegotiation is returned when the negotiation changed since it was read.
	ErrStaleNegotiation = errors.New("negotiation was modified concurrently")

	// ErrNotTripOwner is returned when an operator moves passengers of a trip it does not run.
	ErrNotTripOwner = errors.New("operator does not run the origin trip")

	// ErrCrossOperatorTransfer is returned when a direct transfer targets a
	// trip of another operator. Those moves go through a negotiation.
	ErrCrossOperatorTransfer = errors.New("cross-operator transfers require a negotiation")

	// ErrReservationNotOnOrigin is returned when a proposed reservation is not on the origin trip.
	ErrReservationNotOnOrigin = errors.New("reservation does not belong to the origin trip")
)

// validationError is a plain validation failure with an operator-facing message.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Is(target error) bool { return target == ErrValidation }

// InconsistentOriginError is returned when reservations come from different trips.
type InconsistentOriginError struct {
	OriginTripID   string
	ReservationIDs []string // Reservations not on OriginTripID
}

func (e *InconsistentOriginError) Error() string {
	return fmt.Sprintf("All reservations must share the same origin trip. Invalid reservations: %s",
		strings.Join(e.ReservationIDs, ", "))
}

func (e *InconsistentOriginError) Is(target error) bool { return target == ErrValidation }

// DuplicateReservationError is returned when a reservation is listed more
// than once in one request.
type DuplicateReservationError struct {
	ReservationIDs []string
}

func (e *DuplicateReservationError) Error() string {
	return "Each reservation can be sent only once. Repeated reservations: " + strings.Join(e.ReservationIDs, ", ")
}

func (e *DuplicateReservationError) Is(target error) bool { return target == ErrValidation }

// AlreadyTransferredError is returned when a reservation was moved before.
type AlreadyTransferredError struct {
	Reservations []*domain.Reservation
}

func (e *AlreadyTransferredError) Error() string {
	labels := make([]string, 0, len(e.Reservations))
	for _, r := range e.Reservations {
		labels = append(labels, r.Label())
	}
	return "Cannot transfer. The following reservations were already transferred: " + strings.Join(labels, ", ")
}

func (e *AlreadyTransferredError) Is(target error) bool { return target == ErrValidation }

// DestinationDepartedError is returned when the destination trip already left.
type DestinationDepartedError struct {
	TripID      string
	DepartureAt time.Time
}

func (e *DestinationDepartedError) Error() string {
	return "Cannot transfer to a trip that already departed."
}

func (e *DestinationDepartedError) Is(target error) bool { return target == ErrValidation }

// InsufficientCapacityError is returned when the destination lacks free seats.
type InsufficientCapacityError struct {
	Requested int
	Free      int
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("Cannot transfer %d passengers. Only %d seats are free.", e.Requested, e.Free)
}

func (e *InsufficientCapacityError) Is(target error) bool { return target == ErrValidation }

// ThresholdNotMetError is returned when a whole-trip transfer is requested
// for an origin the threshold policy does not flag.
type ThresholdNotMetError struct {
	TripID  string
	Percent float64
	Policy  string
}

func (e *ThresholdNotMetError) Error() string {
	return fmt.Sprintf("Trip occupancy %.2f%% does not meet the transfer threshold (%s).", e.Percent, e.Policy)
}

func (e *ThresholdNotMetError) Is(target error) bool { return target == ErrValidation }

// ConsistencyError reports a broken seat-allocation invariant. The unit of
// work it occurred in is always rolled back.
type ConsistencyError struct {
	DestinationTripID string
	Detail            string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("transfer to trip %s aborted: %s", e.DestinationTripID, e.Detail)
}

func (e *ConsistencyError) Is(target error) bool { return target == ErrConsistencyViolation }
