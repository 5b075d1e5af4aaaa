package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fleetshift/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationTransferCompleted    NotificationType = "TRANSFER_COMPLETED"
	NotificationTransferFailed       NotificationType = "TRANSFER_FAILED"
	NotificationNegotiationProposed  NotificationType = "NEGOTIATION_PROPOSED"
	NotificationNegotiationCounter   NotificationType = "NEGOTIATION_COUNTER_OFFERED"
	NotificationNegotiationAccepted  NotificationType = "NEGOTIATION_ACCEPTED"
	NotificationNegotiationRejected  NotificationType = "NEGOTIATION_REJECTED"
	NotificationNegotiationWithdrawn NotificationType = "NEGOTIATION_WITHDRAWN"
)

// Notification represents a notification to be sent to an operator.
type Notification struct {
	Type        NotificationType
	RecipientID string // Operator ID
	Title       string
	Message     string
	Data        map[string]interface{}
	CreatedAt   time.Time
}

// NotificationService delivers operator notifications. Delivery is a
// structured log line; a push or e-mail channel would plug in at send.
type NotificationService struct {
	logger *zap.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{logger: logger}
}

// NotifyTransferCompleted notifies both operators that passengers were moved.
func (s *NotificationService) NotifyTransferCompleted(ctx context.Context, entry *domain.TransferLog, origin, destination *domain.Trip) error {
	data := map[string]interface{}{
		"transfer_log_id":     entry.ID,
		"origin_trip_id":      entry.OriginTripID,
		"destination_trip_id": entry.DestinationTripID,
		"passengers":          entry.PassengerCount,
	}

	recipients := []string{origin.OperatorID}
	if !origin.SameOperator(destination) {
		recipients = append(recipients, destination.OperatorID)
	}

	for _, operatorID := range recipients {
		if operatorID == "" {
			continue
		}
		_ = s.send(ctx, Notification{
			Type:        NotificationTransferCompleted,
			RecipientID: operatorID,
			Title:       "Passengers Transferred",
			Message: fmt.Sprintf("%d passengers moved from trip %s to trip %s",
				entry.PassengerCount, entry.OriginTripID, entry.DestinationTripID),
			Data:      data,
			CreatedAt: entry.CreatedAt,
		})
	}
	return nil
}

// NotifyTransferFailed notifies the origin operator that a transfer was aborted.
func (s *NotificationService) NotifyTransferFailed(ctx context.Context, origin *domain.Trip, destinationTripID, reason string) error {
	if origin.OperatorID == "" {
		return nil
	}
	return s.send(ctx, Notification{
		Type:        NotificationTransferFailed,
		RecipientID: origin.OperatorID,
		Title:       "Transfer Failed",
		Message:     reason,
		Data: map[string]interface{}{
			"origin_trip_id":      origin.ID,
			"destination_trip_id": destinationTripID,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyNegotiationUpdated notifies the operator that has to act next, or
// the other party once the negotiation is closed.
func (s *NotificationService) NotifyNegotiationUpdated(ctx context.Context, n *domain.Negotiation, recipientOperatorID string) error {
	if recipientOperatorID == "" {
		return nil
	}

	var (
		notificationType NotificationType
		title            string
		message          string
	)

	switch n.State {
	case domain.NegotiationProposed:
		notificationType = NotificationNegotiationProposed
		title = "New Transfer Offer"
		message = fmt.Sprintf("Offer of %s per passenger for %d passengers", n.OfferedPrice.StringFixed(2), n.PassengerCount())
	case domain.NegotiationCounterOffered:
		notificationType = NotificationNegotiationCounter
		title = "Counter Offer"
		message = fmt.Sprintf("Counter offer of %s per passenger", n.OfferedPrice.StringFixed(2))
	case domain.NegotiationAccepted:
		notificationType = NotificationNegotiationAccepted
		title = "Offer Accepted"
		message = fmt.Sprintf("Offer accepted at %s per passenger; passengers transferred", n.FinalPrice.StringFixed(2))
	case domain.NegotiationRejected:
		notificationType = NotificationNegotiationRejected
		title = "Offer Rejected"
		message = fmt.Sprintf("Offer of %s per passenger was rejected", n.OfferedPrice.StringFixed(2))
	default:
		notificationType = NotificationNegotiationWithdrawn
		title = "Negotiation Withdrawn"
		message = "The negotiation was withdrawn"
	}

	return s.send(ctx, Notification{
		Type:        notificationType,
		RecipientID: recipientOperatorID,
		Title:       title,
		Message:     message,
		Data: map[string]interface{}{
			"negotiation_id":      n.ID,
			"origin_trip_id":      n.OriginTripID,
			"destination_trip_id": n.DestinationTripID,
			"offered_price":       n.OfferedPrice.StringFixed(2),
			"state":               n.State,
		},
		CreatedAt: n.UpdatedAt,
	})
}

// send delivers a notification.
func (s *NotificationService) send(ctx context.Context, notification Notification) error {
	s.logger.Info("notification",
		zap.String("type", string(notification.Type)),
		zap.String("recipient", notification.RecipientID),
		zap.String("title", notification.Title),
		zap.String("message", notification.Message),
		zap.Any("data", notification.Data),
	)
	return nil
}
