package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"go.uber.org/zap"

	"fleetshift/internal/domain"
	"fleetshift/internal/redis"
	"fleetshift/internal/repository"
)

// transferredMessage is returned for every committed transfer.
const transferredMessage = "Transfer completed successfully."

// TransferService moves reservations between trips. Every write of a
// transfer happens in one unit of work holding the destination lock.
type TransferService struct {
	txManager           repository.TxManager
	tripRepo            repository.TripRepository
	reservationRepo     repository.ReservationRepository
	transferLogRepo     repository.TransferLogRepository
	validator           *TransferValidator
	policy              domain.ThresholdPolicy
	cache               redis.OccupancyCacheInterface
	notificationService *NotificationService
	logger              *zap.Logger
	now                 func() time.Time
}

// NewTransferService creates a new TransferService. cache and
// notificationService may be nil. A nil policy uses the default floor.
func NewTransferService(
	txManager repository.TxManager,
	tripRepo repository.TripRepository,
	reservationRepo repository.ReservationRepository,
	transferLogRepo repository.TransferLogRepository,
	policy domain.ThresholdPolicy,
	cache redis.OccupancyCacheInterface,
	notificationService *NotificationService,
	logger *zap.Logger,
) *TransferService {
	if policy == nil {
		policy = domain.PercentageFloor{Min: DefaultThresholdFloor}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &TransferService{
		txManager:           txManager,
		tripRepo:            tripRepo,
		reservationRepo:     reservationRepo,
		transferLogRepo:     transferLogRepo,
		policy:              policy,
		cache:               cache,
		notificationService: notificationService,
		logger:              logger,
		now:                 time.Now,
	}
	s.validator = NewTransferValidator(func() time.Time { return s.now() })
	return s
}

// SetClock replaces the time source.
func (s *TransferService) SetClock(now func() time.Time) {
	s.now = now
}

// TransferRequest contains the parameters for a transfer.
type TransferRequest struct {
	Reservations []*domain.Reservation
	Destination  *domain.Trip
	ActorID      *string // Acting user, nil when unknown
}

// TransferResult is the outcome of a transfer attempt that was not aborted
// by an infrastructure or consistency error.
type TransferResult struct {
	OK      bool
	Message string
	Log     *domain.TransferLog // Set on success and on logged rejections
	Reason  error               // Validation error when OK is false
}

// inUnitHook runs inside the transfer's unit of work after the audit entry is
// written. A returned error rolls the whole transfer back.
type inUnitHook func(ctx context.Context, uow repository.UnitOfWork) error

// Transfer moves the reservations to the destination trip.
//
// Validation failures are returned as a result with OK false and a nil error.
// A *ConsistencyError means the transfer was aborted and rolled back.
func (s *TransferService) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	return s.execute(ctx, req, nil)
}

// TransferByIDs loads the reservations and destination trip, then transfers
// on behalf of operatorID, which must own the origin trip. Moves to another
// operator's trip are refused with ErrCrossOperatorTransfer.
// Unknown IDs return repository.ErrNotFound.
func (s *TransferService) TransferByIDs(ctx context.Context, operatorID string, reservationIDs []string, destinationTripID string, actorID *string) (*TransferResult, error) {
	if len(reservationIDs) == 0 {
		return rejected(ErrNothingToTransfer), nil
	}
	if dups := duplicateIDs(reservationIDs); len(dups) > 0 {
		return rejected(&DuplicateReservationError{ReservationIDs: dups}), nil
	}
	if operatorID == "" {
		return nil, ErrInvalidOperatorID
	}
	if destinationTripID == "" {
		return nil, ErrInvalidTripID
	}

	reservations, err := s.reservationRepo.GetByIDs(ctx, reservationIDs)
	if err != nil {
		return nil, err
	}

	destination, err := s.tripRepo.GetByID(ctx, destinationTripID)
	if err != nil {
		return nil, err
	}

	origin, err := s.tripRepo.GetByID(ctx, reservations[0].TripID)
	if err != nil {
		return nil, fmt.Errorf("load origin trip: %w", err)
	}
	if err := authorizeDirect(operatorID, origin, destination); err != nil {
		return nil, err
	}

	return s.Transfer(ctx, TransferRequest{
		Reservations: reservations,
		Destination:  destination,
		ActorID:      actorID,
	})
}

// TransferTrip moves every reservation of the origin trip to the destination
// when the threshold policy flags the origin's occupancy. Unflagged origins
// are rejected with a *ThresholdNotMetError.
func (s *TransferService) TransferTrip(ctx context.Context, operatorID, originTripID, destinationTripID string, actorID *string) (*TransferResult, error) {
	if operatorID == "" {
		return nil, ErrInvalidOperatorID
	}
	if originTripID == "" || destinationTripID == "" {
		return nil, ErrInvalidTripID
	}

	origin, err := s.tripRepo.GetByID(ctx, originTripID)
	if err != nil {
		return nil, err
	}
	destination, err := s.tripRepo.GetByID(ctx, destinationTripID)
	if err != nil {
		return nil, err
	}
	if err := authorizeDirect(operatorID, origin, destination); err != nil {
		return nil, err
	}

	used, err := s.reservationRepo.CountByTrip(ctx, origin.ID)
	if err != nil {
		return nil, err
	}
	occupancy := domain.CalculateOccupancy(origin.Capacity, used)
	if !s.policy.Flags(occupancy.Percent) {
		return rejected(&ThresholdNotMetError{
			TripID:  origin.ID,
			Percent: occupancy.Rounded(),
			Policy:  s.policy.Name(),
		}), nil
	}

	reservations, err := s.reservationRepo.ListByTrip(ctx, origin.ID)
	if err != nil {
		return nil, err
	}

	return s.Transfer(ctx, TransferRequest{
		Reservations: reservations,
		Destination:  destination,
		ActorID:      actorID,
	})
}

// authorizeDirect checks that operatorID may move passengers from origin to
// destination without a negotiation.
func authorizeDirect(operatorID string, origin, destination *domain.Trip) error {
	if origin.OperatorID != operatorID {
		return ErrNotTripOwner
	}
	if !origin.SameOperator(destination) {
		return ErrCrossOperatorTransfer
	}
	return nil
}

// History returns the latest audit entries of a trip.
func (s *TransferService) History(ctx context.Context, tripID string, limit int) ([]*domain.TransferLog, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	if limit <= 0 {
		limit = 50
	}
	return s.transferLogRepo.ListByTrip(ctx, tripID, limit)
}

func (s *TransferService) execute(ctx context.Context, req TransferRequest, hook inUnitHook) (*TransferResult, error) {
	if len(req.Reservations) == 0 {
		return rejected(ErrNothingToTransfer), nil
	}
	if req.Destination == nil {
		return nil, ErrInvalidTripID
	}

	origin, err := s.tripRepo.GetByID(ctx, req.Reservations[0].TripID)
	if err != nil {
		return nil, fmt.Errorf("load origin trip: %w", err)
	}

	// Unlocked pre-check; failures here write nothing.
	originUsed, err := s.reservationRepo.CountByTrip(ctx, origin.ID)
	if err != nil {
		return nil, err
	}
	destinationUsed, err := s.reservationRepo.CountByTrip(ctx, req.Destination.ID)
	if err != nil {
		return nil, err
	}

	_, err = s.validator.Validate(ValidationInput{
		Reservations:    req.Reservations,
		Origin:          origin,
		Destination:     req.Destination,
		OriginUsed:      originUsed,
		DestinationUsed: destinationUsed,
	})
	if err != nil {
		return rejected(err), nil
	}

	entry, destination, err := s.executeInUnit(ctx, req, origin, hook)
	switch {
	case err == nil:
	case errors.Is(err, ErrValidation):
		// The state changed between the pre-check and the lock.
		failure := s.recordFailure(ctx, req, origin, err)
		result := rejected(err)
		result.Log = failure
		return result, nil
	case errors.Is(err, ErrConsistencyViolation):
		s.logger.Error("transfer aborted",
			zap.String("origin_trip_id", origin.ID),
			zap.String("destination_trip_id", req.Destination.ID),
			zap.Strings("reservation_ids", domain.ReservationIDs(req.Reservations)),
			zap.Error(err),
		)
		if txn := newrelic.FromContext(ctx); txn != nil {
			txn.NoticeError(err)
		}
		s.recordFailure(ctx, req, origin, err)
		if s.notificationService != nil {
			_ = s.notificationService.NotifyTransferFailed(ctx, origin, req.Destination.ID, err.Error())
		}
		return nil, err
	default:
		return nil, err
	}

	s.logger.Info("transfer completed",
		zap.String("transfer_log_id", entry.ID),
		zap.String("origin_trip_id", entry.OriginTripID),
		zap.String("destination_trip_id", entry.DestinationTripID),
		zap.Int("passengers", entry.PassengerCount),
	)

	if s.cache != nil {
		if err := s.cache.InvalidateTrips(ctx, origin.ID, destination.ID); err != nil {
			s.logger.Warn("occupancy cache invalidation failed", zap.Error(err))
		}
	}

	if s.notificationService != nil {
		_ = s.notificationService.NotifyTransferCompleted(ctx, entry, origin, destination)
	}

	return &TransferResult{OK: true, Message: transferredMessage, Log: entry}, nil
}

// executeInUnit performs the locked part of a transfer and commits it.
func (s *TransferService) executeInUnit(ctx context.Context, req TransferRequest, origin *domain.Trip, hook inUnitHook) (*domain.TransferLog, *domain.Trip, error) {
	uow, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = uow.Rollback() }()

	// Lock order: destination trip, destination seats, moved reservations.
	destination, err := uow.Trips().GetByIDForUpdate(ctx, req.Destination.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("lock destination trip: %w", err)
	}

	occupied, err := uow.Reservations().OccupiedSeatsForUpdate(ctx, destination.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("lock destination seats: %w", err)
	}

	ids := domain.ReservationIDs(req.Reservations)
	reservations, err := uow.Reservations().GetByIDsForUpdate(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("lock reservations: %w", err)
	}

	originUsed, err := uow.Reservations().CountByTrip(ctx, origin.ID)
	if err != nil {
		return nil, nil, err
	}

	snapshot, err := s.validator.Validate(ValidationInput{
		Reservations:    reservations,
		Origin:          origin,
		Destination:     destination,
		OriginUsed:      originUsed,
		DestinationUsed: len(occupied),
	})
	if err != nil {
		return nil, nil, err
	}
	if reservations[0].TripID != origin.ID {
		return nil, nil, &InconsistentOriginError{OriginTripID: origin.ID, ReservationIDs: ids}
	}

	restricted := !origin.SameOperator(destination)
	allocator := domain.NewSeatAllocator(destination.Capacity, occupied)

	for _, reservation := range reservations {
		seat, ok := allocator.Next()
		if !ok {
			return nil, nil, &ConsistencyError{
				DestinationTripID: destination.ID,
				Detail:            "no free seat left after capacity check",
			}
		}

		taken, err := uow.Reservations().SeatTaken(ctx, destination.ID, seat)
		if err != nil {
			return nil, nil, err
		}
		if taken {
			return nil, nil, &ConsistencyError{
				DestinationTripID: destination.ID,
				Detail:            fmt.Sprintf("seat %d is already occupied", seat),
			}
		}

		reservation.TripID = destination.ID
		reservation.Seat = seat
		reservation.Transferred = true
		reservation.Restricted = restricted

		if err := uow.Reservations().Update(ctx, reservation); err != nil {
			return nil, nil, fmt.Errorf("move reservation %s: %w", reservation.ID, err)
		}
	}

	originUsedAfter, err := uow.Reservations().CountByTrip(ctx, origin.ID)
	if err != nil {
		return nil, nil, err
	}
	destinationUsedAfter, err := uow.Reservations().CountByTrip(ctx, destination.ID)
	if err != nil {
		return nil, nil, err
	}

	destinationFreeAfter := destination.Capacity - destinationUsedAfter
	if destinationFreeAfter < 0 {
		return nil, nil, &ConsistencyError{
			DestinationTripID: destination.ID,
			Detail:            fmt.Sprintf("destination over capacity by %d seats", -destinationFreeAfter),
		}
	}

	entry := &domain.TransferLog{
		ID:                    uuid.New().String(),
		CreatedAt:             s.now(),
		ActorID:               req.ActorID,
		OriginTripID:          origin.ID,
		DestinationTripID:     destination.ID,
		ReservationIDs:        ids,
		PassengerCount:        len(reservations),
		OriginFreeBefore:      origin.Capacity - snapshot.OriginBefore.Used,
		OriginFreeAfter:       origin.Capacity - originUsedAfter,
		DestinationFreeBefore: snapshot.DestinationBefore.Free(),
		DestinationFreeAfter:  destinationFreeAfter,
		Outcome:               domain.TransferOutcomeOK,
		Message:               transferredMessage,
	}

	if err := uow.TransferLogs().Create(ctx, entry); err != nil {
		return nil, nil, fmt.Errorf("write transfer log: %w", err)
	}

	if hook != nil {
		if err := hook(ctx, uow); err != nil {
			return nil, nil, err
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit transfer: %w", err)
	}

	return entry, destination, nil
}

// recordFailure writes an ERROR audit entry after the unit of work rolled
// back. Nothing was moved, so before and after counters are equal.
func (s *TransferService) recordFailure(ctx context.Context, req TransferRequest, origin *domain.Trip, cause error) *domain.TransferLog {
	entry := &domain.TransferLog{
		ID:                uuid.New().String(),
		CreatedAt:         s.now(),
		ActorID:           req.ActorID,
		OriginTripID:      origin.ID,
		DestinationTripID: req.Destination.ID,
		ReservationIDs:    domain.ReservationIDs(req.Reservations),
		PassengerCount:    len(req.Reservations),
		Outcome:           domain.TransferOutcomeError,
		Message:           cause.Error(),
	}

	if used, err := s.reservationRepo.CountByTrip(ctx, origin.ID); err == nil {
		entry.OriginFreeBefore = origin.Capacity - used
		entry.OriginFreeAfter = entry.OriginFreeBefore
	}
	if used, err := s.reservationRepo.CountByTrip(ctx, req.Destination.ID); err == nil {
		entry.DestinationFreeBefore = req.Destination.Capacity - used
		entry.DestinationFreeAfter = entry.DestinationFreeBefore
	}

	if err := s.transferLogRepo.Create(ctx, entry); err != nil {
		s.logger.Error("write failed transfer log",
			zap.String("origin_trip_id", origin.ID),
			zap.String("destination_trip_id", req.Destination.ID),
			zap.Error(err),
		)
		return nil
	}
	return entry
}

func rejected(err error) *TransferResult {
	return &TransferResult{OK: false, Message: err.Error(), Reason: err}
}
