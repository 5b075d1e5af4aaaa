package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newTestNegotiation(t *testing.T, price string, passengers int) *Negotiation {
	t.Helper()
	ids := make([]string, passengers)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	n, err := NewNegotiation("neg-1", "origin", "dest", ids, decimal.RequireFromString(price), "", testNow)
	require.NoError(t, err)
	return n
}

func TestNegotiation_Transitions(t *testing.T) {
	tests := []struct {
		from NegotiationState
		to   NegotiationState
		want bool
	}{
		{NegotiationProposed, NegotiationAccepted, true},
		{NegotiationProposed, NegotiationCounterOffered, true},
		{NegotiationCounterOffered, NegotiationCounterOffered, true},
		{NegotiationCounterOffered, NegotiationWithdrawn, true},
		{NegotiationAccepted, NegotiationRejected, false},
		{NegotiationRejected, NegotiationProposed, false},
		{NegotiationWithdrawn, NegotiationAccepted, false},
		{NegotiationProposed, NegotiationProposed, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}

	assert.True(t, NegotiationAccepted.IsTerminal())
	assert.True(t, NegotiationRejected.IsTerminal())
	assert.True(t, NegotiationWithdrawn.IsTerminal())
	assert.False(t, NegotiationProposed.IsTerminal())
	assert.False(t, NegotiationCounterOffered.IsTerminal())
}

func TestNewNegotiation_Defaults(t *testing.T) {
	n := newTestNegotiation(t, "10.00", 3)

	assert.Equal(t, NegotiationProposed, n.State)
	assert.Equal(t, PartyOrigin, n.LastOfferBy)
	assert.Equal(t, PartyDestination, n.Turn())
	assert.Equal(t, 1, n.Version)
	assert.True(t, n.DestinationOperatingCost.Equal(DefaultDestinationOperatingCost))
	assert.True(t, n.MinimumCompensation.Equal(DefaultMinimumCompensation))
	assert.Nil(t, n.FinalPrice)

	_, err := NewNegotiation("neg-2", "o", "d", []string{"a"}, decimal.NewFromInt(-1), "", testNow)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestNegotiation_CounterOfferAlternatesTurn(t *testing.T) {
	n := newTestNegotiation(t, "10.00", 2)
	later := testNow.Add(time.Minute)

	require.NoError(t, n.CounterOffer(PartyDestination, decimal.RequireFromString("12"), "More fuel", later))
	assert.Equal(t, NegotiationCounterOffered, n.State)
	assert.Equal(t, PartyOrigin, n.Turn())
	assert.Equal(t, "More fuel", n.DestinationComment)
	assert.Equal(t, later, n.UpdatedAt)

	err := n.CounterOffer(PartyOrigin, decimal.Zero, "", later)
	assert.ErrorIs(t, err, ErrInvalidPrice)
	assert.Equal(t, PartyDestination, n.LastOfferBy, "invalid offer must not change the negotiation")
}

func TestNegotiation_AcceptFixesFinalPrice(t *testing.T) {
	n := newTestNegotiation(t, "10.00", 2)
	require.NoError(t, n.CounterOffer(PartyDestination, decimal.RequireFromString("11.25"), "", testNow))

	require.NoError(t, n.Accept(testNow))
	require.NotNil(t, n.FinalPrice)
	assert.True(t, n.FinalPrice.Equal(decimal.RequireFromString("11.25")))
	assert.Equal(t, Party(""), n.Turn())

	err := n.Reject(PartyOrigin, "", testNow)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestNegotiation_RejectAndWithdrawComments(t *testing.T) {
	rejected := newTestNegotiation(t, "10.00", 1)
	require.NoError(t, rejected.Reject(PartyDestination, "", testNow))
	assert.Equal(t, "Offer rejected.", rejected.DestinationComment)

	withdrawn := newTestNegotiation(t, "10.00", 1)
	require.NoError(t, withdrawn.Withdraw(PartyOrigin, testNow))
	assert.Equal(t, NegotiationWithdrawn, withdrawn.State)
	assert.Equal(t, "Negotiation withdrawn.", withdrawn.OriginComment)
}

func TestNegotiation_Settlement(t *testing.T) {
	n := newTestNegotiation(t, "10.00", 4)

	s := n.Settlement()

	// income 40, cost 6, admin 2, commission 3.20
	assert.Equal(t, 4, s.Passengers)
	assert.Equal(t, "40.00", s.OriginTotal.StringFixed(2))
	assert.Equal(t, "6.00", s.DestinationCost.StringFixed(2))
	assert.Equal(t, "34.00", s.DestinationProfit.StringFixed(2))
	assert.Equal(t, "2.00", s.AdminFee.StringFixed(2))
	assert.Equal(t, "3.20", s.SystemCommission.StringFixed(2))
	assert.Equal(t, "34.80", s.OriginMargin.StringFixed(2))
	assert.Equal(t, "32.00", s.DestinationMargin.StringFixed(2))
	assert.False(t, s.BelowMinimumOffer)

	cheap := newTestNegotiation(t, "2.50", 1)
	assert.True(t, cheap.Settlement().BelowMinimumOffer)
}
