package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fleetshift/internal/domain"
	"fleetshift/internal/service"
)

// TripHandler handles HTTP requests for trip occupancy and transfer planning.
type TripHandler struct {
	occupancyService *service.OccupancyService
	pricingService   *service.PricingService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(occupancyService *service.OccupancyService, pricingService *service.PricingService) *TripHandler {
	return &TripHandler{
		occupancyService: occupancyService,
		pricingService:   pricingService,
	}
}

// TripResponse describes a trip.
type TripResponse struct {
	TripID      string `json:"trip_id"`
	RouteID     string `json:"route_id"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	OperatorID  string `json:"operator_id"`
	VehicleID   string `json:"vehicle_id,omitempty"`
	DepartureAt string `json:"departure_at"`
}

// OccupancyResponse is the HTTP response for a trip's occupancy.
type OccupancyResponse struct {
	TripResponse
	Capacity         int     `json:"capacity"`
	Used             int     `json:"used"`
	Free             int     `json:"free"`
	OccupancyPercent float64 `json:"occupancy_percent"`
	Critical         bool    `json:"critical"`
}

// CompensationResponse is the HTTP response for a suggested compensation.
type CompensationResponse struct {
	OriginTripID             string  `json:"origin_trip_id"`
	DestinationTripID        string  `json:"destination_trip_id"`
	OriginTariff             string  `json:"origin_tariff"`
	DestinationTariff        string  `json:"destination_tariff"`
	TariffDifference         string  `json:"tariff_difference"`
	OperatingCost            string  `json:"operating_cost"`
	OriginOccupancyPercent   float64 `json:"origin_occupancy_percent"`
	UrgencyFactor            string  `json:"urgency_factor"`
	CompensationPerPassenger string  `json:"compensation_per_passenger"`
	Passengers               int     `json:"passengers"`
	TotalSuggested           string  `json:"total_suggested"`
}

// GetOccupancy handles GET /v1/trips/:id/occupancy
func (h *TripHandler) GetOccupancy(c *gin.Context) {
	result, err := h.occupancyService.CalculateOccupancy(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toOccupancyResponse(result.Trip, result.Occupancy, result.Critical))
}

// GetCandidates handles GET /v1/trips/:id/candidates?passengers=N
func (h *TripHandler) GetCandidates(c *gin.Context) {
	passengers, err := strconv.Atoi(c.Query("passengers"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "passengers must be an integer"})
		return
	}

	candidates, err := h.occupancyService.FindTransferCandidates(c.Request.Context(), c.Param("id"), passengers)
	if err != nil {
		respondError(c, err)
		return
	}

	policy := h.occupancyService.Policy()
	response := make([]OccupancyResponse, 0, len(candidates))
	for _, candidate := range candidates {
		response = append(response, toOccupancyResponse(candidate.Trip, candidate.Occupancy, policy.Flags(candidate.Occupancy.Percent)))
	}

	respondJSON(c, http.StatusOK, response)
}

// GetCompensation handles GET /v1/trips/:id/compensation?destination=ID&passengers=N
func (h *TripHandler) GetCompensation(c *gin.Context) {
	passengers, err := strconv.Atoi(c.Query("passengers"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "passengers must be an integer"})
		return
	}

	originTripID := c.Param("id")
	destinationTripID := c.Query("destination")

	breakdown, err := h.pricingService.SuggestedCompensation(c.Request.Context(), originTripID, destinationTripID, passengers)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, CompensationResponse{
		OriginTripID:             originTripID,
		DestinationTripID:        destinationTripID,
		OriginTariff:             breakdown.OriginTariff.StringFixed(2),
		DestinationTariff:        breakdown.DestinationTariff.StringFixed(2),
		TariffDifference:         breakdown.TariffDifference.StringFixed(2),
		OperatingCost:            breakdown.OperatingCost.StringFixed(2),
		OriginOccupancyPercent:   breakdown.OriginOccupancy.Rounded(),
		UrgencyFactor:            breakdown.UrgencyFactor.StringFixed(1),
		CompensationPerPassenger: breakdown.PerPassenger.StringFixed(2),
		Passengers:               breakdown.Passengers,
		TotalSuggested:           breakdown.TotalSuggested.StringFixed(2),
	})
}

func toTripResponse(trip *domain.Trip) TripResponse {
	return TripResponse{
		TripID:      trip.ID,
		RouteID:     trip.RouteID,
		Origin:      trip.Route.Origin,
		Destination: trip.Route.Destination,
		OperatorID:  trip.OperatorID,
		VehicleID:   trip.VehicleID,
		DepartureAt: trip.DepartureAt.Format(time.RFC3339),
	}
}

func toOccupancyResponse(trip *domain.Trip, occ domain.Occupancy, critical bool) OccupancyResponse {
	return OccupancyResponse{
		TripResponse:     toTripResponse(trip),
		Capacity:         trip.Capacity,
		Used:             occ.Used,
		Free:             occ.Free(),
		OccupancyPercent: occ.Rounded(),
		Critical:         critical,
	}
}
