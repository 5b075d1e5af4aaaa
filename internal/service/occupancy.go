package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"fleetshift/internal/domain"
	"fleetshift/internal/redis"
	"fleetshift/internal/repository"
)

// DefaultThresholdFloor is the occupancy percentage below which a trip is
// considered critical.
const DefaultThresholdFloor = 30.0

// OccupancyService computes trip occupancy for display and candidate search.
// Results are read without locks and may be stale; transfers always recount
// under the destination lock.
type OccupancyService struct {
	tripRepo        repository.TripRepository
	reservationRepo repository.ReservationRepository
	cache           redis.OccupancyCacheInterface
	policy          domain.ThresholdPolicy
	logger          *zap.Logger
	now             func() time.Time
}

// NewOccupancyService creates a new OccupancyService. cache may be nil.
// A nil policy uses PercentageFloor{Min: DefaultThresholdFloor}.
func NewOccupancyService(
	tripRepo repository.TripRepository,
	reservationRepo repository.ReservationRepository,
	cache redis.OccupancyCacheInterface,
	policy domain.ThresholdPolicy,
	logger *zap.Logger,
) *OccupancyService {
	if policy == nil {
		policy = domain.PercentageFloor{Min: DefaultThresholdFloor}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OccupancyService{
		tripRepo:        tripRepo,
		reservationRepo: reservationRepo,
		cache:           cache,
		policy:          policy,
		logger:          logger,
		now:             time.Now,
	}
}

// SetClock replaces the time source.
func (s *OccupancyService) SetClock(now func() time.Time) {
	s.now = now
}

// TripOccupancy pairs a trip with its current occupancy.
type TripOccupancy struct {
	Trip      *domain.Trip
	Occupancy domain.Occupancy
	Critical  bool // Flagged by the default threshold policy
}

// Policy returns the default threshold policy.
func (s *OccupancyService) Policy() domain.ThresholdPolicy {
	return s.policy
}

// CalculateOccupancy returns the occupancy of a trip.
func (s *OccupancyService) CalculateOccupancy(ctx context.Context, tripID string) (*TripOccupancy, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	occ, err := s.occupancyOf(ctx, trip)
	if err != nil {
		return nil, err
	}

	return &TripOccupancy{
		Trip:      trip,
		Occupancy: occ,
		Critical:  s.policy.Flags(occ.Percent),
	}, nil
}

// MeetsThreshold reports whether the trip's occupancy is flagged by policy.
// A nil policy uses the service default.
func (s *OccupancyService) MeetsThreshold(ctx context.Context, tripID string, policy domain.ThresholdPolicy) (bool, error) {
	if policy == nil {
		policy = s.policy
	}

	result, err := s.CalculateOccupancy(ctx, tripID)
	if err != nil {
		return false, err
	}

	return policy.Flags(result.Occupancy.Percent), nil
}

// Candidate is a trip that can currently absorb a group of passengers.
type Candidate struct {
	Trip      *domain.Trip
	Occupancy domain.Occupancy
}

// FindTransferCandidates returns the trips on the same route as the origin
// that have not departed and have at least passengers free seats, ordered
// by departure time.
func (s *OccupancyService) FindTransferCandidates(ctx context.Context, originTripID string, passengers int) ([]Candidate, error) {
	if originTripID == "" {
		return nil, ErrInvalidTripID
	}
	if passengers <= 0 {
		return nil, ErrInvalidPassengerCount
	}

	origin, err := s.tripRepo.GetByID(ctx, originTripID)
	if err != nil {
		return nil, err
	}

	trips, err := s.tripRepo.ListByRoute(ctx, origin.RouteID, origin.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	candidates := make([]Candidate, 0, len(trips))
	for _, trip := range trips {
		if trip.Capacity <= 0 || trip.HasDeparted(now) {
			continue
		}

		occ, err := s.occupancyOf(ctx, trip)
		if err != nil {
			return nil, err
		}

		if occ.Free() >= passengers {
			candidates = append(candidates, Candidate{Trip: trip, Occupancy: occ})
		}
	}

	return candidates, nil
}

// occupancyOf computes a trip's occupancy, serving it from the display cache
// when possible. Cache failures fall back to the database.
func (s *OccupancyService) occupancyOf(ctx context.Context, trip *domain.Trip) (domain.Occupancy, error) {
	if s.cache != nil {
		cached, err := s.cache.GetOccupancy(ctx, trip.ID)
		if err != nil {
			s.logger.Warn("occupancy cache read failed", zap.String("trip_id", trip.ID), zap.Error(err))
		} else if cached != nil && cached.Capacity == trip.Capacity {
			return domain.CalculateOccupancy(cached.Capacity, cached.Used), nil
		}
	}

	used, err := s.reservationRepo.CountByTrip(ctx, trip.ID)
	if err != nil {
		return domain.Occupancy{}, err
	}
	occ := domain.CalculateOccupancy(trip.Capacity, used)

	if s.cache != nil {
		err := s.cache.SetOccupancy(ctx, &redis.CachedOccupancy{
			TripID:   trip.ID,
			Percent:  occ.Percent,
			Used:     used,
			Capacity: trip.Capacity,
		})
		if err != nil {
			s.logger.Warn("occupancy cache write failed", zap.String("trip_id", trip.ID), zap.Error(err))
		}
	}

	return occ, nil
}
