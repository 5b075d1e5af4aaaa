package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetshift/internal/middleware"
	"fleetshift/internal/service"
)

// OperatorHandler handles HTTP requests for operator overviews.
type OperatorHandler struct {
	operatorService *service.OperatorService
}

// NewOperatorHandler creates a new OperatorHandler.
func NewOperatorHandler(operatorService *service.OperatorService) *OperatorHandler {
	return &OperatorHandler{operatorService: operatorService}
}

// DashboardTripResponse is one trip on the dashboard.
type DashboardTripResponse struct {
	OccupancyResponse
	Status string `json:"status"`
}

// DashboardResponse is the HTTP response for an operator dashboard.
type DashboardResponse struct {
	OperatorID          string                  `json:"operator_id"`
	Trips               []DashboardTripResponse `json:"trips"`
	CriticalTrips       int                     `json:"critical_trips"`
	PendingNegotiations int                     `json:"pending_negotiations"`
}

// GetDashboard handles GET /v1/operators/:id/dashboard
func (h *OperatorHandler) GetDashboard(c *gin.Context) {
	operatorID := c.Param("id")
	if caller := middleware.OperatorID(c); caller != "" && caller != operatorID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "dashboard belongs to another operator"})
		return
	}

	dashboard, err := h.operatorService.Dashboard(c.Request.Context(), operatorID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := DashboardResponse{
		OperatorID:          dashboard.OperatorID,
		Trips:               make([]DashboardTripResponse, 0, len(dashboard.Trips)),
		CriticalTrips:       dashboard.CriticalTrips,
		PendingNegotiations: dashboard.PendingNegotiations,
	}
	for _, row := range dashboard.Trips {
		response.Trips = append(response.Trips, DashboardTripResponse{
			OccupancyResponse: toOccupancyResponse(row.Trip, row.Occupancy, row.Status == service.TripStatusCritical),
			Status:            string(row.Status),
		})
	}

	respondJSON(c, http.StatusOK, response)
}
