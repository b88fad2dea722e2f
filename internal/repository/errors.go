// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios. For example, ErrForbidden indicates that the current user
// is not authorized to act on a resource owned by someone else, while
// ErrRevokeConsumed signals that a ledger grant cannot be withdrawn
// because part of it has already been spent.
package repository

import (
	"errors"
	"fmt"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as modifying a booking that has already
// been cancelled. Handlers should translate this into an HTTP 409
// response.
var ErrConflict = errors.New("conflict")

// Not-found sentinels for the individual aggregates. Handlers translate
// them into HTTP 404 responses without exposing row identifiers.
var (
	ErrBookingNotFound    = errors.New("booking not found")
	ErrRoomNotFound       = errors.New("room not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrCreditNotFound     = errors.New("credit transaction not found")
)

// ErrOverRefund is returned when a refund would exceed the consumed
// portion of a credit transaction, which would break the ledger
// invariant used + remaining == amount.
var ErrOverRefund = errors.New("refund exceeds used amount")

// ErrRevokeConsumed is returned when a revocation targets a grant that
// has been partially or fully consumed. Revoking spent credit would
// corrupt the audit history, so the operation must fail instead.
var ErrRevokeConsumed = errors.New("cannot revoke consumed credit")

// InsufficientCreditError reports a credit consumption that could not
// be covered by the user's available balance. No rows are mutated when
// it is returned; AvailablePence carries the true balance so callers
// can compute a card shortfall.
type InsufficientCreditError struct {
	RequestedPence int64
	AvailablePence int64
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("insufficient credit: requested %d pence, available %d pence",
		e.RequestedPence, e.AvailablePence)
}

// InsufficientVoucherError is the voucher-ledger counterpart of
// InsufficientCreditError, denominated in minutes.
type InsufficientVoucherError struct {
	RequestedMinutes int
	AvailableMinutes int
}

func (e *InsufficientVoucherError) Error() string {
	return fmt.Sprintf("insufficient voucher time: requested %d minutes, available %d minutes",
		e.RequestedMinutes, e.AvailableMinutes)
}
