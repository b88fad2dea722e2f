package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwell/room-booking/internal/model"
	"github.com/oakwell/room-booking/internal/pricing"
)

func TestCheckBookingWindow(t *testing.T) {
	now := time.Date(2026, time.September, 10, 12, 0, 0, 0, pricing.London())

	// Tomorrow morning is fine.
	assert.NoError(t, checkBookingWindow("2026-09-11", 9*60, now))

	// Later today is fine as long as the start is in the future.
	assert.NoError(t, checkBookingWindow("2026-09-10", 14*60, now))

	// A start at or before now is rejected even on today's date.
	var ve *ValidationError
	err := checkBookingWindow("2026-09-10", 12*60, now)
	require.ErrorAs(t, err, &ve)

	// Yesterday is rejected.
	require.ErrorAs(t, checkBookingWindow("2026-09-09", 9*60, now), &ve)

	// Exactly one month ahead is the last allowed date.
	assert.NoError(t, checkBookingWindow("2026-10-10", 9*60, now))
	require.ErrorAs(t, checkBookingWindow("2026-10-11", 9*60, now), &ve)
}

func TestCheckLockout(t *testing.T) {
	b := &model.Booking{Date: "2026-09-12", StartMinute: 10 * 60}

	// More than 24 hours out: modifiable.
	early := time.Date(2026, time.September, 11, 9, 59, 0, 0, pricing.London())
	assert.NoError(t, checkLockout(b, early))

	// Exactly 24 hours before the start: locked.
	boundary := time.Date(2026, time.September, 11, 10, 0, 0, 0, pricing.London())
	assert.True(t, errors.Is(checkLockout(b, boundary), ErrTooLateToModify))

	// After the start: locked.
	late := time.Date(2026, time.September, 12, 11, 0, 0, 0, pricing.London())
	assert.True(t, errors.Is(checkLockout(b, late), ErrTooLateToModify))
}
