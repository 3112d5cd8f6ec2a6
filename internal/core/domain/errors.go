package domain

import "errors"

var (
	// ErrInvalidFee is returned when the declared fee does not match the
	// policy-computed fee for the amount and caller.
	ErrInvalidFee = errors.New("invalid fee")

	// ErrOrderExists is returned when an identical order (same fields, same
	// timestamp) is already pending.
	ErrOrderExists = errors.New("order already exists")

	// ErrOrderNotFound is returned when a resolution call references an id
	// that is not pending: never created, already resolved, or re-derived
	// from parameters that do not match the original.
	ErrOrderNotFound = errors.New("order not found")

	// ErrUnauthorized is returned when a caller lacks the role an operation
	// requires.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInsufficientFeeBalance is returned when a withdrawal exceeds the
	// accrued fee balance for the token.
	ErrInsufficientFeeBalance = errors.New("insufficient fee balance")

	// ErrTransferFailed is returned when the asset gateway rejects a pull or
	// push; the whole operation is rolled back.
	ErrTransferFailed = errors.New("asset transfer failed")

	ErrInvalidAmount = errors.New("invalid amount")
)
