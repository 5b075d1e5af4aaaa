package domain

import "errors"

var (
	// ErrInvalidTransition is returned when a negotiation cannot move to the requested state.
	ErrInvalidTransition = errors.New("invalid negotiation state transition")

	// ErrInvalidPrice is returned when an offered price is zero or negative.
	ErrInvalidPrice = errors.New("offered price must be positive")
)
