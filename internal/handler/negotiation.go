package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"fleetshift/internal/domain"
	"fleetshift/internal/middleware"
	"fleetshift/internal/service"
)

// NegotiationHandler handles HTTP requests for cross-operator negotiations.
// The acting operator is taken from the identity middleware.
type NegotiationHandler struct {
	negotiationService *service.NegotiationService
}

// NewNegotiationHandler creates a new NegotiationHandler.
func NewNegotiationHandler(negotiationService *service.NegotiationService) *NegotiationHandler {
	return &NegotiationHandler{negotiationService: negotiationService}
}

// ProposeNegotiationRequest is the HTTP request body for opening a negotiation.
type ProposeNegotiationRequest struct {
	OriginTripID      string          `json:"origin_trip_id"`
	DestinationTripID string          `json:"destination_trip_id"`
	ReservationIDs    []string        `json:"reservation_ids"`
	CostPerPassenger  decimal.Decimal `json:"cost_per_passenger"`
	Comment           string          `json:"comment,omitempty"`
}

// CounterOfferRequest is the HTTP request body for a counter-offer.
type CounterOfferRequest struct {
	Price   decimal.Decimal `json:"price"`
	Comment string          `json:"comment,omitempty"`
}

// RejectRequest is the HTTP request body for a rejection.
type RejectRequest struct {
	Comment string `json:"comment,omitempty"`
}

// NegotiationResponse is the HTTP response for a negotiation.
type NegotiationResponse struct {
	ID                       string              `json:"id"`
	OriginTripID             string              `json:"origin_trip_id"`
	DestinationTripID        string              `json:"destination_trip_id"`
	ReservationIDs           []string            `json:"reservation_ids"`
	CostPerPassenger         string              `json:"cost_per_passenger"`
	OriginComment            string              `json:"origin_comment,omitempty"`
	DestinationOperatingCost string              `json:"destination_operating_cost"`
	MinimumCompensation      string              `json:"minimum_compensation"`
	DestinationComment       string              `json:"destination_comment,omitempty"`
	OfferedPrice             string              `json:"offered_price"`
	LastOfferBy              string              `json:"last_offer_by"`
	Turn                     string              `json:"turn,omitempty"`
	State                    string              `json:"state"`
	FinalPrice               string              `json:"final_price,omitempty"`
	Version                  int                 `json:"version"`
	CreatedAt                string              `json:"created_at"`
	UpdatedAt                string              `json:"updated_at"`
	Settlement               *SettlementResponse `json:"settlement,omitempty"`
}

// SettlementResponse is the financial breakdown of the current offer.
type SettlementResponse struct {
	Passengers        int    `json:"passengers"`
	PricePerPassenger string `json:"price_per_passenger"`
	OriginTotal       string `json:"origin_total"`
	DestinationCost   string `json:"destination_cost"`
	DestinationProfit string `json:"destination_profit"`
	AdminFee          string `json:"admin_fee"`
	SystemCommission  string `json:"system_commission"`
	OriginMargin      string `json:"origin_margin"`
	DestinationMargin string `json:"destination_margin"`
	BelowMinimumOffer bool   `json:"below_minimum_offer"`
}

// AcceptNegotiationResponse is the HTTP response for an acceptance.
type AcceptNegotiationResponse struct {
	Negotiation NegotiationResponse `json:"negotiation"`
	Transfer    TransferResponse    `json:"transfer"`
}

// Propose handles POST /v1/negotiations
func (h *NegotiationHandler) Propose(c *gin.Context) {
	var req ProposeNegotiationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	n, err := h.negotiationService.Propose(c.Request.Context(), service.ProposeRequest{
		OperatorID:        middleware.OperatorID(c),
		OriginTripID:      req.OriginTripID,
		DestinationTripID: req.DestinationTripID,
		ReservationIDs:    req.ReservationIDs,
		CostPerPassenger:  req.CostPerPassenger,
		Comment:           req.Comment,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toNegotiationResponse(n, nil))
}

// List handles GET /v1/negotiations?state=PROPOSED
func (h *NegotiationHandler) List(c *gin.Context) {
	summaries, err := h.negotiationService.ListForOperator(
		c.Request.Context(),
		middleware.OperatorID(c),
		domain.NegotiationState(c.Query("state")),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]NegotiationResponse, 0, len(summaries))
	for _, summary := range summaries {
		response = append(response, toNegotiationResponse(summary.Negotiation, &summary.Settlement))
	}

	respondJSON(c, http.StatusOK, response)
}

// Get handles GET /v1/negotiations/:id
func (h *NegotiationHandler) Get(c *gin.Context) {
	n, err := h.negotiationService.Get(c.Request.Context(), c.Param("id"), middleware.OperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toNegotiationResponse(n, openSettlement(n)))
}

// Accept handles POST /v1/negotiations/:id/accept
func (h *NegotiationHandler) Accept(c *gin.Context) {
	result, err := h.negotiationService.Accept(
		c.Request.Context(),
		c.Param("id"),
		middleware.OperatorID(c),
		middleware.ActorID(c),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	transfer := TransferResponse{OK: result.Transfer.OK, Message: result.Transfer.Message}
	if result.Transfer.OK && result.Transfer.Log != nil {
		transfer.LogID = result.Transfer.Log.ID
	}

	code := http.StatusOK
	if !result.Transfer.OK {
		code = http.StatusUnprocessableEntity
	}

	respondJSON(c, code, AcceptNegotiationResponse{
		Negotiation: toNegotiationResponse(result.Negotiation, nil),
		Transfer:    transfer,
	})
}

// CounterOffer handles POST /v1/negotiations/:id/counter-offer
func (h *NegotiationHandler) CounterOffer(c *gin.Context) {
	var req CounterOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	n, err := h.negotiationService.CounterOffer(c.Request.Context(), service.CounterOfferRequest{
		NegotiationID: c.Param("id"),
		OperatorID:    middleware.OperatorID(c),
		Price:         req.Price,
		Comment:       req.Comment,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toNegotiationResponse(n, openSettlement(n)))
}

// Reject handles POST /v1/negotiations/:id/reject
func (h *NegotiationHandler) Reject(c *gin.Context) {
	var req RejectRequest
	// The body is optional.
	_ = c.ShouldBindJSON(&req)

	n, err := h.negotiationService.Reject(c.Request.Context(), c.Param("id"), middleware.OperatorID(c), req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toNegotiationResponse(n, nil))
}

// Withdraw handles POST /v1/negotiations/:id/withdraw
func (h *NegotiationHandler) Withdraw(c *gin.Context) {
	n, err := h.negotiationService.Withdraw(c.Request.Context(), c.Param("id"), middleware.OperatorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toNegotiationResponse(n, nil))
}

// openSettlement returns the breakdown of a negotiation that is still open.
func openSettlement(n *domain.Negotiation) *domain.Settlement {
	if n.State.IsTerminal() {
		return nil
	}
	s := n.Settlement()
	return &s
}

func toNegotiationResponse(n *domain.Negotiation, s *domain.Settlement) NegotiationResponse {
	response := NegotiationResponse{
		ID:                       n.ID,
		OriginTripID:             n.OriginTripID,
		DestinationTripID:        n.DestinationTripID,
		ReservationIDs:           n.ReservationIDs,
		CostPerPassenger:         n.CostPerPassenger.StringFixed(2),
		OriginComment:            n.OriginComment,
		DestinationOperatingCost: n.DestinationOperatingCost.StringFixed(2),
		MinimumCompensation:      n.MinimumCompensation.StringFixed(2),
		DestinationComment:       n.DestinationComment,
		OfferedPrice:             n.OfferedPrice.StringFixed(2),
		LastOfferBy:              string(n.LastOfferBy),
		Turn:                     string(n.Turn()),
		State:                    string(n.State),
		Version:                  n.Version,
		CreatedAt:                n.CreatedAt.Format(time.RFC3339),
		UpdatedAt:                n.UpdatedAt.Format(time.RFC3339),
	}

	if n.FinalPrice != nil {
		response.FinalPrice = n.FinalPrice.StringFixed(2)
	}

	if s != nil {
		response.Settlement = &SettlementResponse{
			Passengers:        s.Passengers,
			PricePerPassenger: s.PricePerPassenger.StringFixed(2),
			OriginTotal:       s.OriginTotal.StringFixed(2),
			DestinationCost:   s.DestinationCost.StringFixed(2),
			DestinationProfit: s.DestinationProfit.StringFixed(2),
			AdminFee:          s.AdminFee.StringFixed(2),
			SystemCommission:  s.SystemCommission.StringFixed(2),
			OriginMargin:      s.OriginMargin.StringFixed(2),
			DestinationMargin: s.DestinationMargin.StringFixed(2),
			BelowMinimumOffer: s.BelowMinimumOffer,
		}
	}

	return response
}
