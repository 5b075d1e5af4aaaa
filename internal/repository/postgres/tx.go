package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fleetshift/internal/repository"
)

// TxManager is a PostgreSQL implementation of repository.TxManager.
type TxManager struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// NewTxManager creates a transaction manager. A zero lockTimeout waits for
// row locks indefinitely.
func NewTxManager(db *sql.DB, lockTimeout time.Duration) *TxManager {
	return &TxManager{db: db, lockTimeout: lockTimeout}
}

// Begin starts a new unit of work.
func (m *TxManager) Begin(ctx context.Context) (repository.UnitOfWork, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	if m.lockTimeout > 0 {
		// SET does not accept bind parameters.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("set lock timeout: %w", err)
		}
	}

	return &unitOfWork{
		tx:           tx,
		trips:        NewTripRepositoryWithTx(tx),
		reservations: NewReservationRepositoryWithTx(tx),
		transferLogs: NewTransferLogRepositoryWithTx(tx),
		negotiations: NewNegotiationRepositoryWithTx(tx),
	}, nil
}

// unitOfWork binds transaction-scoped repositories to one *sql.Tx.
type unitOfWork struct {
	tx           *sql.Tx
	done         bool
	trips        *TripRepository
	reservations *ReservationRepository
	transferLogs *TransferLogRepository
	negotiations *NegotiationRepository
}

func (u *unitOfWork) Trips() repository.TripRepository               { return u.trips }
func (u *unitOfWork) Reservations() repository.ReservationRepository { return u.reservations }
func (u *unitOfWork) TransferLogs() repository.TransferLogRepository { return u.transferLogs }
func (u *unitOfWork) Negotiations() repository.NegotiationRepository { return u.negotiations }

// Commit commits the transaction.
func (u *unitOfWork) Commit() error {
	if u.done {
		return sql.ErrTxDone
	}
	u.done = true
	return mapError(u.tx.Commit())
}

// Rollback aborts the transaction. It is a no-op after Commit.
func (u *unitOfWork) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// Ensure TxManager implements repository.TxManager.
var _ repository.TxManager = (*TxManager)(nil)
