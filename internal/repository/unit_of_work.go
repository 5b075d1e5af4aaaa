package repository

import "context"

// UnitOfWork groups repositories bound to one database transaction.
// Either Commit or Rollback must be called exactly once; Rollback after
// Commit is a no-op so it can be deferred.
type UnitOfWork interface {
	Trips() TripRepository
	Reservations() ReservationRepository
	TransferLogs() TransferLogRepository
	Negotiations() NegotiationRepository

	Commit() error
	Rollback() error
}

// TxManager starts units of work.
type TxManager interface {
	// Begin starts a transaction. Row lock waits inside it are bounded by
	// the manager's lock timeout and surface as ErrLockTimeout.
	Begin(ctx context.Context) (UnitOfWork, error)
}
