package core

import "errors"

// Error kinds for every failure a public operation can surface.
// Operations wrap these with fmt.Errorf("%w: ...") so callers can classify
// with errors.Is while still seeing the offending quantities in the message.
var (
	// ErrValidation covers malformed, empty, or zero-valued input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound covers unknown assets and missing listings.
	ErrNotFound = errors.New("not found")

	// ErrAuthorization covers callers lacking the required role (e.g. not issuer).
	ErrAuthorization = errors.New("not authorized")

	// ErrState covers operations against an inactive asset or listing.
	ErrState = errors.New("invalid state")

	// ErrInsufficientBalance covers ledger or listing shortfalls.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrPayment covers inexact attached value and failed outbound delivery.
	ErrPayment = errors.New("payment failed")

	// ErrFunds covers a payout pool too small for a buyback.
	ErrFunds = errors.New("insufficient pool funds")

	// ErrReentrancy covers a guarded operation invoked while one is in flight.
	ErrReentrancy = errors.New("reentrant call")
)
