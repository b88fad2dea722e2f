// Package service implements the booking transaction engine: pricing,
// funding allocation across vouchers, ledgered credit and card
// payment, and the atomic commit of bookings with their ledger
// mutations.
package service

import (
	"errors"
	"fmt"
)

// ValidationError marks input the caller can correct and retry:
// malformed spans, out-of-window dates, ineligible memberships, or a
// card shortfall with no payment gateway configured.  Handlers
// translate it into HTTP 400.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// validationf builds a *ValidationError from a format string.
func validationf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ErrSlotUnavailable is returned when the requested room/date span
// overlaps a confirmed booking.  The caller should re-query
// availability and retry; handlers translate it into HTTP 409.
var ErrSlotUnavailable = errors.New("slot no longer available")

// ErrTooLateToModify is returned when an update or cancellation is
// attempted less than 24 hours before the booking's local start time.
var ErrTooLateToModify = errors.New("bookings can only be changed more than 24 hours before start")

// ErrUnroutableIntent is returned when a settled payment intent's
// metadata cannot be mapped back to a booking operation.  The money has
// been taken, so these are logged loudly and resolved by support rather
// than retried.
var ErrUnroutableIntent = errors.New("payment intent metadata does not route to a booking operation")
