package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fleetshift/internal/domain"
	"fleetshift/internal/middleware"
	"fleetshift/internal/service"
)

// TransferHandler handles HTTP requests for reservation transfers.
type TransferHandler struct {
	transferService *service.TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferService *service.TransferService) *TransferHandler {
	return &TransferHandler{transferService: transferService}
}

// CreateTransferRequest is the HTTP request body for a transfer.
type CreateTransferRequest struct {
	ReservationIDs    []string `json:"reservation_ids"`
	DestinationTripID string   `json:"destination_trip_id"`
}

// TransferResponse is the HTTP response for a transfer attempt.
type TransferResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	LogID   string `json:"log_id,omitempty"`
}

// TransferLogResponse is one audit entry.
type TransferLogResponse struct {
	ID                    string   `json:"id"`
	CreatedAt             string   `json:"created_at"`
	ActorID               *string  `json:"actor_id"`
	OriginTripID          string   `json:"origin_trip_id"`
	DestinationTripID     string   `json:"destination_trip_id"`
	ReservationIDs        []string `json:"reservation_ids"`
	PassengerCount        int      `json:"passenger_count"`
	OriginFreeBefore      int      `json:"origin_free_before"`
	OriginFreeAfter       int      `json:"origin_free_after"`
	DestinationFreeBefore int      `json:"destination_free_before"`
	DestinationFreeAfter  int      `json:"destination_free_after"`
	Outcome               string   `json:"outcome"`
	Message               string   `json:"message"`
}

// CreateTransfer handles POST /v1/transfers
func (h *TransferHandler) CreateTransfer(c *gin.Context) {
	var req CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.transferService.TransferByIDs(
		c.Request.Context(),
		middleware.OperatorID(c),
		req.ReservationIDs,
		req.DestinationTripID,
		middleware.ActorID(c),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	respondTransfer(c, result)
}

// TransferTripRequest is the HTTP request body for a whole-trip transfer.
type TransferTripRequest struct {
	DestinationTripID string `json:"destination_trip_id"`
}

// TransferTrip handles POST /v1/trips/:id/transfer
func (h *TransferHandler) TransferTrip(c *gin.Context) {
	var req TransferTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.transferService.TransferTrip(
		c.Request.Context(),
		middleware.OperatorID(c),
		c.Param("id"),
		req.DestinationTripID,
		middleware.ActorID(c),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	respondTransfer(c, result)
}

// ListTransferLogs handles GET /v1/trips/:id/transfer-logs
func (h *TransferHandler) ListTransferLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	entries, err := h.transferService.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]TransferLogResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, toTransferLogResponse(entry))
	}

	respondJSON(c, http.StatusOK, response)
}

// respondTransfer writes a transfer result: 200 on success, 422 when rejected.
func respondTransfer(c *gin.Context, result *service.TransferResult) {
	response := TransferResponse{OK: result.OK, Message: result.Message}
	if result.Log != nil && result.OK {
		response.LogID = result.Log.ID
	}

	code := http.StatusOK
	if !result.OK {
		code = http.StatusUnprocessableEntity
	}
	respondJSON(c, code, response)
}

func toTransferLogResponse(entry *domain.TransferLog) TransferLogResponse {
	return TransferLogResponse{
		ID:                    entry.ID,
		CreatedAt:             entry.CreatedAt.Format(time.RFC3339),
		ActorID:               entry.ActorID,
		OriginTripID:          entry.OriginTripID,
		DestinationTripID:     entry.DestinationTripID,
		ReservationIDs:        entry.ReservationIDs,
		PassengerCount:        entry.PassengerCount,
		OriginFreeBefore:      entry.OriginFreeBefore,
		OriginFreeAfter:       entry.OriginFreeAfter,
		DestinationFreeBefore: entry.DestinationFreeBefore,
		DestinationFreeAfter:  entry.DestinationFreeAfter,
		Outcome:               string(entry.Outcome),
		Message:               entry.Message,
	}
}
