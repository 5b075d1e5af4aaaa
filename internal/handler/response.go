package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetshift/internal/domain"
	"fleetshift/internal/repository"
	"fleetshift/internal/service"
)

// fatalTransferMessage is shown instead of internal detail when a transfer
// is aborted by a consistency violation.
const fatalTransferMessage = "transfer could not be completed, contact support"

// lockRetryAfterSeconds is sent with 503 responses caused by lock timeouts.
const lockRetryAfterSeconds = "2"

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	message := err.Error()

	switch {
	case errors.Is(err, service.ErrConsistencyViolation):
		message = fatalTransferMessage
	case errors.Is(err, repository.ErrLockTimeout):
		c.Header("Retry-After", lockRetryAfterSeconds)
	case code == http.StatusInternalServerError:
		message = http.StatusText(http.StatusInternalServerError)
	}

	// Surfaced to the New Relic middleware.
	_ = c.Error(err)
	c.JSON(code, ErrorResponse{Error: message})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Transfer rules
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrReservationNotOnOrigin):
		return http.StatusUnprocessableEntity

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidTripID),
		errors.Is(err, service.ErrInvalidOperatorID),
		errors.Is(err, service.ErrInvalidNegotiationID),
		errors.Is(err, service.ErrInvalidPassengerCount),
		errors.Is(err, domain.ErrInvalidPrice):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrSameOperator),
		errors.Is(err, service.ErrNotYourTurn),
		errors.Is(err, service.ErrNegotiationClosed),
		errors.Is(err, service.ErrNegotiationBusy),
		errors.Is(err, service.ErrStaleNegotiation),
		errors.Is(err, service.ErrCrossOperatorTransfer),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict

	// Forbidden/Business rule errors
	case errors.Is(err, service.ErrNotNegotiationParty),
		errors.Is(err, service.ErrNotTripOwner):
		return http.StatusForbidden

	// Service unavailable
	case errors.Is(err, repository.ErrLockTimeout):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
