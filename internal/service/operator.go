package service

import (
	"context"

	"fleetshift/internal/domain"
	"fleetshift/internal/repository"
)

// TripStatus classifies a trip on the operator dashboard.
type TripStatus string

const (
	TripStatusOK       TripStatus = "OK"
	TripStatusCritical TripStatus = "CRITICAL"
)

// OperatorService builds operator-facing overviews.
type OperatorService struct {
	tripRepo         repository.TripRepository
	negotiationRepo  repository.NegotiationRepository
	occupancyService *OccupancyService
}

// NewOperatorService creates a new OperatorService.
func NewOperatorService(
	tripRepo repository.TripRepository,
	negotiationRepo repository.NegotiationRepository,
	occupancyService *OccupancyService,
) *OperatorService {
	return &OperatorService{
		tripRepo:         tripRepo,
		negotiationRepo:  negotiationRepo,
		occupancyService: occupancyService,
	}
}

// DashboardTrip is one row of the operator dashboard.
type DashboardTrip struct {
	Trip      *domain.Trip
	Occupancy domain.Occupancy
	Status    TripStatus
}

// Dashboard summarises an operator's trips and its pending inbound offers.
type Dashboard struct {
	OperatorID          string
	Trips               []DashboardTrip
	CriticalTrips       int
	PendingNegotiations int
}

// Dashboard returns the occupancy of every trip of the operator.
func (s *OperatorService) Dashboard(ctx context.Context, operatorID string) (*Dashboard, error) {
	if operatorID == "" {
		return nil, ErrInvalidOperatorID
	}

	trips, err := s.tripRepo.ListByOperator(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	policy := s.occupancyService.Policy()
	dashboard := &Dashboard{
		OperatorID: operatorID,
		Trips:      make([]DashboardTrip, 0, len(trips)),
	}

	for _, trip := range trips {
		occ, err := s.occupancyService.occupancyOf(ctx, trip)
		if err != nil {
			return nil, err
		}

		row := DashboardTrip{Trip: trip, Occupancy: occ, Status: TripStatusOK}
		if policy.Flags(occ.Percent) {
			row.Status = TripStatusCritical
			dashboard.CriticalTrips++
		}
		dashboard.Trips = append(dashboard.Trips, row)
	}

	pending, err := s.negotiationRepo.ListByDestinationOperator(ctx, operatorID, domain.NegotiationProposed)
	if err != nil {
		return nil, err
	}
	dashboard.PendingNegotiations = len(pending)

	return dashboard, nil
}
