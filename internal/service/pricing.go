package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"fleetshift/internal/domain"
	"fleetshift/internal/repository"
)

// Pricing defaults.
var (
	DefaultTariff        = decimal.RequireFromString("15.00")
	DefaultOperatingCost = decimal.RequireFromString("4.80")
)

var (
	urgencyLow    = decimal.RequireFromString("1.0")
	urgencyMedium = decimal.RequireFromString("1.2")
	urgencyHigh   = decimal.RequireFromString("1.5")
)

// RouteKey identifies a tariff by terminal names.
type RouteKey struct {
	Origin      string
	Destination string
}

// PricingConfig holds the tariff table and operating cost.
type PricingConfig struct {
	DefaultTariff decimal.Decimal
	OperatingCost decimal.Decimal
	RouteTariffs  map[RouteKey]decimal.Decimal
}

// NewPricingConfig parses the pricing settings. routeTariffs has the form
// "Origin:Destination=12.50,Origin:Other=9.00"; empty values use the defaults.
func NewPricingConfig(defaultTariff, operatingCost, routeTariffs string) (PricingConfig, error) {
	cfg := PricingConfig{
		DefaultTariff: DefaultTariff,
		OperatingCost: DefaultOperatingCost,
		RouteTariffs:  make(map[RouteKey]decimal.Decimal),
	}

	if defaultTariff != "" {
		d, err := decimal.NewFromString(defaultTariff)
		if err != nil {
			return PricingConfig{}, fmt.Errorf("parse default tariff: %w", err)
		}
		cfg.DefaultTariff = d
	}

	if operatingCost != "" {
		d, err := decimal.NewFromString(operatingCost)
		if err != nil {
			return PricingConfig{}, fmt.Errorf("parse operating cost: %w", err)
		}
		cfg.OperatingCost = d
	}

	for _, entry := range strings.Split(routeTariffs, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		route, price, ok := strings.Cut(entry, "=")
		if !ok {
			return PricingConfig{}, fmt.Errorf("route tariff %q: missing '='", entry)
		}
		origin, destination, ok := strings.Cut(route, ":")
		if !ok {
			return PricingConfig{}, fmt.Errorf("route tariff %q: missing ':'", entry)
		}

		d, err := decimal.NewFromString(strings.TrimSpace(price))
		if err != nil {
			return PricingConfig{}, fmt.Errorf("route tariff %q: %w", entry, err)
		}
		cfg.RouteTariffs[RouteKey{
			Origin:      strings.TrimSpace(origin),
			Destination: strings.TrimSpace(destination),
		}] = d
	}

	return cfg, nil
}

// PricingService suggests the compensation one operator pays another for
// taking over its passengers. Figures are advisory.
type PricingService struct {
	tripRepo        repository.TripRepository
	reservationRepo repository.ReservationRepository
	config          PricingConfig
}

// NewPricingService creates a new PricingService.
func NewPricingService(
	tripRepo repository.TripRepository,
	reservationRepo repository.ReservationRepository,
	config PricingConfig,
) *PricingService {
	if config.RouteTariffs == nil {
		config.RouteTariffs = make(map[RouteKey]decimal.Decimal)
	}
	return &PricingService{
		tripRepo:        tripRepo,
		reservationRepo: reservationRepo,
		config:          config,
	}
}

// Tariff returns the per-passenger fare of a route.
func (s *PricingService) Tariff(route domain.Route) decimal.Decimal {
	if price, ok := s.config.RouteTariffs[RouteKey{Origin: route.Origin, Destination: route.Destination}]; ok {
		return price
	}
	return s.config.DefaultTariff
}

// UrgencyFactor scales the compensation by the origin trip's occupancy.
func UrgencyFactor(occupancyPercent float64) decimal.Decimal {
	switch {
	case occupancyPercent < 30:
		return urgencyLow
	case occupancyPercent < 80:
		return urgencyMedium
	default:
		return urgencyHigh
	}
}

// CompensationBreakdown is the full suggested-compensation computation.
type CompensationBreakdown struct {
	OriginTariff      decimal.Decimal
	DestinationTariff decimal.Decimal
	TariffDifference  decimal.Decimal
	OperatingCost     decimal.Decimal
	OriginOccupancy   domain.Occupancy
	UrgencyFactor     decimal.Decimal
	PerPassenger      decimal.Decimal
	Passengers        int
	TotalSuggested    decimal.Decimal
}

// Compensation computes the breakdown for the given trips and origin occupancy.
func (s *PricingService) Compensation(origin, destination *domain.Trip, originOccupancy domain.Occupancy, passengers int) CompensationBreakdown {
	originTariff := s.Tariff(origin.Route)
	destinationTariff := s.Tariff(destination.Route)
	difference := destinationTariff.Sub(originTariff)

	base := destinationTariff.Add(s.config.OperatingCost).Add(decimal.Max(decimal.Zero, difference))
	factor := UrgencyFactor(originOccupancy.Percent)
	perPassenger := base.Mul(factor)

	return CompensationBreakdown{
		OriginTariff:      originTariff,
		DestinationTariff: destinationTariff,
		TariffDifference:  difference,
		OperatingCost:     s.config.OperatingCost,
		OriginOccupancy:   originOccupancy,
		UrgencyFactor:     factor,
		PerPassenger:      perPassenger,
		Passengers:        passengers,
		TotalSuggested:    perPassenger.Mul(decimal.NewFromInt(int64(passengers))),
	}
}

// SuggestedCompensation loads both trips and the origin occupancy and
// computes the compensation for moving passengers.
func (s *PricingService) SuggestedCompensation(ctx context.Context, originTripID, destinationTripID string, passengers int) (*CompensationBreakdown, error) {
	if originTripID == "" || destinationTripID == "" {
		return nil, ErrInvalidTripID
	}
	if passengers <= 0 {
		return nil, ErrInvalidPassengerCount
	}

	origin, err := s.tripRepo.GetByID(ctx, originTripID)
	if err != nil {
		return nil, err
	}

	destination, err := s.tripRepo.GetByID(ctx, destinationTripID)
	if err != nil {
		return nil, err
	}

	used, err := s.reservationRepo.CountByTrip(ctx, origin.ID)
	if err != nil {
		return nil, err
	}

	breakdown := s.Compensation(origin, destination, domain.CalculateOccupancy(origin.Capacity, used), passengers)
	return &breakdown, nil
}
