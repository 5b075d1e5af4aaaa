package domain

import "time"

// TransferOutcome represents the result recorded in the audit log.
type TransferOutcome string

const (
	TransferOutcomeOK    TransferOutcome = "OK"
	TransferOutcomeError TransferOutcome = "ERROR"
)

// TransferLog is the immutable audit record of a transfer attempt.
type TransferLog struct {
	ID                    string
	CreatedAt             time.Time
	ActorID               *string // nil when anonymous or the user was removed
	OriginTripID          string
	DestinationTripID     string
	ReservationIDs        []string // Order matches the transfer request
	PassengerCount        int
	OriginFreeBefore      int
	OriginFreeAfter       int
	DestinationFreeBefore int
	DestinationFreeAfter  int
	Outcome               TransferOutcome
	Message               string
}
