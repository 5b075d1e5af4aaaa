package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fleetshift/internal/domain"
	"fleetshift/internal/redis"
	"fleetshift/internal/repository"
)

// DefaultNegotiationLockTTL bounds how long one action may hold a negotiation.
const DefaultNegotiationLockTTL = 10 * time.Second

// NegotiationService runs the cross-operator negotiation protocol.
type NegotiationService struct {
	negotiationRepo     repository.NegotiationRepository
	tripRepo            repository.TripRepository
	reservationRepo     repository.ReservationRepository
	transferService     *TransferService
	lockStore           redis.NegotiationLockInterface
	notificationService *NotificationService
	logger              *zap.Logger
	lockTTL             time.Duration
	now                 func() time.Time
}

// NewNegotiationService creates a new NegotiationService. lockStore and
// notificationService may be nil.
func NewNegotiationService(
	negotiationRepo repository.NegotiationRepository,
	tripRepo repository.TripRepository,
	reservationRepo repository.ReservationRepository,
	transferService *TransferService,
	lockStore redis.NegotiationLockInterface,
	notificationService *NotificationService,
	logger *zap.Logger,
	lockTTL time.Duration,
) *NegotiationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lockTTL <= 0 {
		lockTTL = DefaultNegotiationLockTTL
	}
	return &NegotiationService{
		negotiationRepo:     negotiationRepo,
		tripRepo:            tripRepo,
		reservationRepo:     reservationRepo,
		transferService:     transferService,
		lockStore:           lockStore,
		notificationService: notificationService,
		logger:              logger,
		lockTTL:             lockTTL,
		now:                 time.Now,
	}
}

// SetClock replaces the time source.
func (s *NegotiationService) SetClock(now func() time.Time) {
	s.now = now
}

// ProposeRequest contains the parameters for proposing a negotiation.
type ProposeRequest struct {
	OperatorID        string // Must own the origin trip
	OriginTripID      string
	DestinationTripID string
	ReservationIDs    []string
	CostPerPassenger  decimal.Decimal
	Comment           string
}

// Propose opens a negotiation from the origin operator to the destination
// operator. No reservation is touched until the offer is accepted.
func (s *NegotiationService) Propose(ctx context.Context, req ProposeRequest) (*domain.Negotiation, error) {
	if req.OperatorID == "" {
		return nil, ErrInvalidOperatorID
	}
	if req.OriginTripID == "" || req.DestinationTripID == "" {
		return nil, ErrInvalidTripID
	}
	if len(req.ReservationIDs) == 0 {
		return nil, ErrNothingToTransfer
	}
	if dups := duplicateIDs(req.ReservationIDs); len(dups) > 0 {
		return nil, &DuplicateReservationError{ReservationIDs: dups}
	}

	origin, err := s.tripRepo.GetByID(ctx, req.OriginTripID)
	if err != nil {
		return nil, err
	}

	if origin.OperatorID != req.OperatorID {
		return nil, ErrNotNegotiationParty
	}

	destination, err := s.tripRepo.GetByID(ctx, req.DestinationTripID)
	if err != nil {
		return nil, err
	}

	if origin.SameOperator(destination) {
		return nil, ErrSameOperator
	}

	if destination.HasDeparted(s.now()) {
		return nil, &DestinationDepartedError{TripID: destination.ID, DepartureAt: destination.DepartureAt}
	}

	reservations, err := s.reservationRepo.GetByIDs(ctx, req.ReservationIDs)
	if err != nil {
		return nil, err
	}

	var transferred []*domain.Reservation
	for _, r := range reservations {
		if r.TripID != origin.ID {
			return nil, ErrReservationNotOnOrigin
		}
		if r.Transferred {
			transferred = append(transferred, r)
		}
	}
	if len(transferred) > 0 {
		return nil, &AlreadyTransferredError{Reservations: transferred}
	}

	n, err := domain.NewNegotiation(
		uuid.New().String(),
		origin.ID,
		destination.ID,
		domain.ReservationIDs(reservations),
		req.CostPerPassenger,
		req.Comment,
		s.now(),
	)
	if err != nil {
		return nil, err
	}

	if err := s.negotiationRepo.Create(ctx, n); err != nil {
		return nil, err
	}

	s.logger.Info("negotiation proposed",
		zap.String("negotiation_id", n.ID),
		zap.String("origin_trip_id", n.OriginTripID),
		zap.String("destination_trip_id", n.DestinationTripID),
		zap.Int("passengers", n.PassengerCount()),
		zap.String("offered_price", n.OfferedPrice.StringFixed(2)),
	)

	if s.notificationService != nil {
		_ = s.notificationService.NotifyNegotiationUpdated(ctx, n, destination.OperatorID)
	}

	return n, nil
}

// AcceptResult contains the result of accepting a negotiation.
type AcceptResult struct {
	Negotiation *domain.Negotiation
	Transfer    *TransferResult
}

// Accept executes the transfer and closes the negotiation at the pending
// offer, both in one unit of work. When the transfer is rejected the
// negotiation is returned unchanged with Transfer.OK false.
func (s *NegotiationService) Accept(ctx context.Context, negotiationID, operatorID string, actorID *string) (*AcceptResult, error) {
	var result *AcceptResult

	err := s.withLock(ctx, negotiationID, func() error {
		n, parties, err := s.loadForAction(ctx, negotiationID, operatorID)
		if err != nil {
			return err
		}
		if err := checkTurn(n, parties.acting); err != nil {
			return err
		}

		reservations, err := s.reservationRepo.GetByIDs(ctx, n.ReservationIDs)
		if err != nil {
			return err
		}

		var moved []string
		for _, r := range reservations {
			if r.TripID != n.OriginTripID {
				moved = append(moved, r.ID)
			}
		}
		if len(moved) > 0 {
			result = &AcceptResult{
				Negotiation: n,
				Transfer:    rejected(&InconsistentOriginError{OriginTripID: n.OriginTripID, ReservationIDs: moved}),
			}
			return nil
		}

		accepted := *n
		transfer, err := s.transferService.execute(ctx, TransferRequest{
			Reservations: reservations,
			Destination:  parties.destination,
			ActorID:      actorID,
		}, func(ctx context.Context, uow repository.UnitOfWork) error {
			if err := accepted.Accept(s.now()); err != nil {
				return err
			}
			if err := uow.Negotiations().Update(ctx, &accepted); err != nil {
				if errors.Is(err, repository.ErrStaleVersion) {
					return ErrStaleNegotiation
				}
				return err
			}
			return nil
		})
		if err != nil {
			return err
		}

		if !transfer.OK {
			result = &AcceptResult{Negotiation: n, Transfer: transfer}
			return nil
		}

		result = &AcceptResult{Negotiation: &accepted, Transfer: transfer}

		s.logger.Info("negotiation accepted",
			zap.String("negotiation_id", accepted.ID),
			zap.String("final_price", accepted.FinalPrice.StringFixed(2)),
			zap.String("transfer_log_id", transfer.Log.ID),
		)
		s.notify(ctx, &accepted, parties.operatorOf(parties.acting.Counterparty()))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// CounterOfferRequest contains the parameters for a counter-offer.
type CounterOfferRequest struct {
	NegotiationID string
	OperatorID    string
	Price         decimal.Decimal
	Comment       string
}

// CounterOffer answers the pending offer with a new per-passenger price.
func (s *NegotiationService) CounterOffer(ctx context.Context, req CounterOfferRequest) (*domain.Negotiation, error) {
	return s.respond(ctx, req.NegotiationID, req.OperatorID, true, func(n *domain.Negotiation, by domain.Party) error {
		return n.CounterOffer(by, req.Price, req.Comment, s.now())
	})
}

// Reject closes the negotiation. Reservations stay where they are.
func (s *NegotiationService) Reject(ctx context.Context, negotiationID, operatorID, comment string) (*domain.Negotiation, error) {
	return s.respond(ctx, negotiationID, operatorID, true, func(n *domain.Negotiation, by domain.Party) error {
		return n.Reject(by, comment, s.now())
	})
}

// Withdraw closes the negotiation on behalf of either party, regardless of turn.
func (s *NegotiationService) Withdraw(ctx context.Context, negotiationID, operatorID string) (*domain.Negotiation, error) {
	return s.respond(ctx, negotiationID, operatorID, false, func(n *domain.Negotiation, by domain.Party) error {
		return n.Withdraw(by, s.now())
	})
}

// Get retrieves a negotiation visible to the operator.
func (s *NegotiationService) Get(ctx context.Context, negotiationID, operatorID string) (*domain.Negotiation, error) {
	n, _, err := s.loadForAction(ctx, negotiationID, operatorID)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// NegotiationSummary pairs a negotiation with its settlement breakdown.
type NegotiationSummary struct {
	Negotiation *domain.Negotiation
	Settlement  domain.Settlement
}

// ListForOperator returns the negotiations addressed to the operator in the
// given state. An empty state lists the pending proposals.
func (s *NegotiationService) ListForOperator(ctx context.Context, operatorID string, state domain.NegotiationState) ([]NegotiationSummary, error) {
	if operatorID == "" {
		return nil, ErrInvalidOperatorID
	}
	if state == "" {
		state = domain.NegotiationProposed
	}

	negotiations, err := s.negotiationRepo.ListByDestinationOperator(ctx, operatorID, state)
	if err != nil {
		return nil, err
	}

	summaries := make([]NegotiationSummary, 0, len(negotiations))
	for _, n := range negotiations {
		summaries = append(summaries, NegotiationSummary{Negotiation: n, Settlement: n.Settlement()})
	}
	return summaries, nil
}

// respond applies a non-transfer action and persists it.
func (s *NegotiationService) respond(
	ctx context.Context,
	negotiationID, operatorID string,
	requireTurn bool,
	apply func(n *domain.Negotiation, by domain.Party) error,
) (*domain.Negotiation, error) {
	var updated *domain.Negotiation

	err := s.withLock(ctx, negotiationID, func() error {
		n, parties, err := s.loadForAction(ctx, negotiationID, operatorID)
		if err != nil {
			return err
		}

		if n.State.IsTerminal() {
			return ErrNegotiationClosed
		}
		if requireTurn {
			if err := checkTurn(n, parties.acting); err != nil {
				return err
			}
		}

		if err := apply(n, parties.acting); err != nil {
			return err
		}

		if err := s.negotiationRepo.Update(ctx, n); err != nil {
			if errors.Is(err, repository.ErrStaleVersion) {
				return ErrStaleNegotiation
			}
			return err
		}

		s.logger.Info("negotiation updated",
			zap.String("negotiation_id", n.ID),
			zap.String("state", string(n.State)),
			zap.String("by", string(parties.acting)),
			zap.String("offered_price", n.OfferedPrice.StringFixed(2)),
		)
		s.notify(ctx, n, parties.operatorOf(parties.acting.Counterparty()))

		updated = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// negotiationParties resolves the trips of a negotiation and the acting side.
type negotiationParties struct {
	origin      *domain.Trip
	destination *domain.Trip
	acting      domain.Party
}

func (p negotiationParties) operatorOf(party domain.Party) string {
	if party == domain.PartyOrigin {
		return p.origin.OperatorID
	}
	return p.destination.OperatorID
}

// loadForAction loads a negotiation and maps the operator to its side.
func (s *NegotiationService) loadForAction(ctx context.Context, negotiationID, operatorID string) (*domain.Negotiation, negotiationParties, error) {
	if negotiationID == "" {
		return nil, negotiationParties{}, ErrInvalidNegotiationID
	}
	if operatorID == "" {
		return nil, negotiationParties{}, ErrInvalidOperatorID
	}

	n, err := s.negotiationRepo.GetByID(ctx, negotiationID)
	if err != nil {
		return nil, negotiationParties{}, err
	}

	origin, err := s.tripRepo.GetByID(ctx, n.OriginTripID)
	if err != nil {
		return nil, negotiationParties{}, err
	}
	destination, err := s.tripRepo.GetByID(ctx, n.DestinationTripID)
	if err != nil {
		return nil, negotiationParties{}, err
	}

	parties := negotiationParties{origin: origin, destination: destination}
	switch operatorID {
	case origin.OperatorID:
		parties.acting = domain.PartyOrigin
	case destination.OperatorID:
		parties.acting = domain.PartyDestination
	default:
		return nil, negotiationParties{}, ErrNotNegotiationParty
	}

	return n, parties, nil
}

func checkTurn(n *domain.Negotiation, party domain.Party) error {
	if n.State.IsTerminal() {
		return ErrNegotiationClosed
	}
	if n.Turn() != party {
		return ErrNotYourTurn
	}
	return nil
}

// withLock serialises actions on one negotiation across instances. If Redis
// is unavailable the action proceeds and the version check still applies.
func (s *NegotiationService) withLock(ctx context.Context, negotiationID string, fn func() error) error {
	if s.lockStore == nil || negotiationID == "" {
		return fn()
	}

	token, err := s.lockStore.AcquireNegotiationLock(ctx, negotiationID, s.lockTTL)
	if err != nil {
		s.logger.Warn("negotiation lock unavailable", zap.String("negotiation_id", negotiationID), zap.Error(err))
		return fn()
	}
	if token == "" {
		return ErrNegotiationBusy
	}

	defer func() {
		if err := s.lockStore.ReleaseNegotiationLock(ctx, negotiationID, token); err != nil {
			s.logger.Warn("negotiation lock release failed", zap.String("negotiation_id", negotiationID), zap.Error(err))
		}
	}()

	return fn()
}

func (s *NegotiationService) notify(ctx context.Context, n *domain.Negotiation, recipientOperatorID string) {
	if s.notificationService == nil {
		return
	}
	_ = s.notificationService.NotifyNegotiationUpdated(ctx, n, recipientOperatorID)
}
