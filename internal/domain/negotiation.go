package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// NegotiationState represents the lifecycle state of a negotiation.
type NegotiationState string

const (
	NegotiationProposed       NegotiationState = "PROPOSED"
	NegotiationCounterOffered NegotiationState = "COUNTER_OFFERED"
	NegotiationAccepted       NegotiationState = "ACCEPTED"
	NegotiationRejected       NegotiationState = "REJECTED"
	NegotiationWithdrawn      NegotiationState = "WITHDRAWN"
)

// Party identifies one side of a cross-operator negotiation.
type Party string

const (
	PartyOrigin      Party = "ORIGIN"
	PartyDestination Party = "DESTINATION"
)

// Counterparty returns the other side.
func (p Party) Counterparty() Party {
	if p == PartyOrigin {
		return PartyDestination
	}
	return PartyOrigin
}

// Defaults applied to the destination side when a negotiation is proposed.
var (
	DefaultDestinationOperatingCost = decimal.RequireFromString("1.50")
	DefaultMinimumCompensation      = decimal.RequireFromString("3.00")
)

var (
	adminFeeRate   = decimal.RequireFromString("0.05")
	commissionRate = decimal.RequireFromString("0.08")
)

// negotiationTransitions maps a state to the states it may move to.
var negotiationTransitions = map[NegotiationState][]NegotiationState{
	NegotiationProposed: {
		NegotiationAccepted,
		NegotiationRejected,
		NegotiationCounterOffered,
		NegotiationWithdrawn,
	},
	NegotiationCounterOffered: {
		NegotiationAccepted,
		NegotiationRejected,
		NegotiationCounterOffered,
		NegotiationWithdrawn,
	},
	NegotiationAccepted:  {},
	NegotiationRejected:  {},
	NegotiationWithdrawn: {},
}

// CanTransition checks if a negotiation may move from one state to another.
func CanTransition(from, to NegotiationState) bool {
	for _, s := range negotiationTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s NegotiationState) IsTerminal() bool {
	return len(negotiationTransitions[s]) == 0
}

// Negotiation is a cross-operator proposal to move reservations from a trip
// of one cooperative to a trip of another, in exchange for compensation.
type Negotiation struct {
	ID                string
	OriginTripID      string
	DestinationTripID string
	ReservationIDs    []string

	// Terms sent by the origin cooperative.
	CostPerPassenger decimal.Decimal
	OriginComment    string

	// Terms of the destination cooperative.
	DestinationOperatingCost decimal.Decimal
	MinimumCompensation      decimal.Decimal
	DestinationComment       string

	OfferedPrice decimal.Decimal // Per-passenger price of the latest offer
	LastOfferBy  Party
	State        NegotiationState
	FinalPrice   *decimal.Decimal // Set once accepted

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewNegotiation creates a negotiation in PROPOSED state authored by the origin.
func NewNegotiation(id, originTripID, destinationTripID string, reservationIDs []string, costPerPassenger decimal.Decimal, comment string, now time.Time) (*Negotiation, error) {
	if !costPerPassenger.IsPositive() {
		return nil, ErrInvalidPrice
	}
	return &Negotiation{
		ID:                       id,
		OriginTripID:             originTripID,
		DestinationTripID:        destinationTripID,
		ReservationIDs:           reservationIDs,
		CostPerPassenger:         costPerPassenger,
		OriginComment:            comment,
		DestinationOperatingCost: DefaultDestinationOperatingCost,
		MinimumCompensation:      DefaultMinimumCompensation,
		OfferedPrice:             costPerPassenger,
		LastOfferBy:              PartyOrigin,
		State:                    NegotiationProposed,
		Version:                  1,
		CreatedAt:                now,
		UpdatedAt:                now,
	}, nil
}

// PassengerCount returns the number of reservations under negotiation.
func (n *Negotiation) PassengerCount() int {
	return len(n.ReservationIDs)
}

// Turn returns the party expected to respond to the pending offer, or an
// empty Party once the negotiation is closed.
func (n *Negotiation) Turn() Party {
	if n.State.IsTerminal() {
		return ""
	}
	return n.LastOfferBy.Counterparty()
}

// CounterOffer records a new per-passenger price authored by the given party.
func (n *Negotiation) CounterOffer(by Party, price decimal.Decimal, comment string, now time.Time) error {
	if !price.IsPositive() {
		return ErrInvalidPrice
	}
	if err := n.transition(NegotiationCounterOffered, now); err != nil {
		return err
	}
	n.OfferedPrice = price
	n.LastOfferBy = by
	n.setComment(by, comment)
	return nil
}

// Accept closes the negotiation at the currently offered price.
func (n *Negotiation) Accept(now time.Time) error {
	if err := n.transition(NegotiationAccepted, now); err != nil {
		return err
	}
	final := n.OfferedPrice
	n.FinalPrice = &final
	return nil
}

// Reject closes the negotiation without touching any reservation.
func (n *Negotiation) Reject(by Party, comment string, now time.Time) error {
	if err := n.transition(NegotiationRejected, now); err != nil {
		return err
	}
	if comment == "" {
		comment = "Offer rejected."
	}
	n.setComment(by, comment)
	return nil
}

// Withdraw closes the negotiation on behalf of either party.
func (n *Negotiation) Withdraw(by Party, now time.Time) error {
	if err := n.transition(NegotiationWithdrawn, now); err != nil {
		return err
	}
	n.setComment(by, "Negotiation withdrawn.")
	return nil
}

func (n *Negotiation) transition(to NegotiationState, now time.Time) error {
	if !CanTransition(n.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, n.State, to)
	}
	n.State = to
	n.UpdatedAt = now
	return nil
}

func (n *Negotiation) setComment(by Party, comment string) {
	if comment == "" {
		return
	}
	if by == PartyOrigin {
		n.OriginComment = comment
	} else {
		n.DestinationComment = comment
	}
}

// Settlement is the financial breakdown shown to the destination cooperative.
type Settlement struct {
	Passengers        int
	PricePerPassenger decimal.Decimal
	OriginTotal       decimal.Decimal
	DestinationCost   decimal.Decimal
	DestinationProfit decimal.Decimal
	AdminFee          decimal.Decimal
	SystemCommission  decimal.Decimal
	OriginMargin      decimal.Decimal
	DestinationMargin decimal.Decimal
	BelowMinimumOffer bool
}

// Settlement computes the breakdown for the current offer.
func (n *Negotiation) Settlement() Settlement {
	count := decimal.NewFromInt(int64(n.PassengerCount()))
	income := n.OfferedPrice.Mul(count)
	cost := n.DestinationOperatingCost.Mul(count)
	profit := income.Sub(cost)
	admin := income.Mul(adminFeeRate)
	commission := income.Mul(commissionRate)

	return Settlement{
		Passengers:        n.PassengerCount(),
		PricePerPassenger: n.OfferedPrice,
		OriginTotal:       income.Round(2),
		DestinationCost:   cost.Round(2),
		DestinationProfit: profit.Round(2),
		AdminFee:          admin.Round(2),
		SystemCommission:  commission.Round(2),
		OriginMargin:      income.Sub(admin).Sub(commission).Round(2),
		DestinationMargin: profit.Sub(admin).Round(2),
		BelowMinimumOffer: n.OfferedPrice.LessThan(n.MinimumCompensation),
	}
}
