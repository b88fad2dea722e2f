package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/oakwell/room-booking/internal/pricing"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, pricing.London())
}

func TestProRataPence(t *testing.T) {
	// Full month from the first day charges the full amount.
	assert.Equal(t, int64(30000), ProRataPence(30000, day(2026, time.September, 1)))

	// Joining on the last day pays one day's worth.
	assert.Equal(t, int64(1000), ProRataPence(30000, day(2026, time.September, 30)))

	// Mid-month: 16 remaining days of 30, 30000*16/30 = 16000.
	assert.Equal(t, int64(16000), ProRataPence(30000, day(2026, time.September, 15)))

	// Half-up rounding: 10000*20/31 = 6451.6..., rounds to 6452.
	assert.Equal(t, int64(6452), ProRataPence(10000, day(2026, time.October, 12)))
}

func TestSuspensionDate(t *testing.T) {
	// Request in March suspends from the end of April.
	assert.Equal(t, day(2026, time.April, 30), SuspensionDate(day(2026, time.March, 10)))

	// A request on the last day of the month still gets the full
	// following month.
	assert.Equal(t, day(2026, time.April, 30), SuspensionDate(day(2026, time.March, 31)))

	// December rolls into the next year.
	assert.Equal(t, day(2027, time.January, 31), SuspensionDate(day(2026, time.December, 5)))
}

func TestSubscriptionWindow(t *testing.T) {
	// The paid window runs from the payment day to the end of that
	// month; the grant and the ad-hoc membership window are both cut
	// from these two dates, so they can never disagree.
	start, end := subscriptionWindow(day(2026, time.September, 14))
	assert.Equal(t, day(2026, time.September, 14), start)
	assert.Equal(t, day(2026, time.September, 30), end)

	// A payment instant is truncated to its London calendar day.
	start, end = subscriptionWindow(time.Date(2026, time.September, 14, 23, 45, 0, 0, time.UTC))
	assert.Equal(t, day(2026, time.September, 15), start)
	assert.Equal(t, day(2026, time.September, 30), end)

	// Paying on the last day of the month yields a one-day window.
	start, end = subscriptionWindow(day(2026, time.October, 31))
	assert.Equal(t, day(2026, time.October, 31), start)
	assert.Equal(t, day(2026, time.October, 31), end)
}

func TestEndOfMonth(t *testing.T) {
	assert.Equal(t, day(2026, time.February, 28), endOfMonth(day(2026, time.February, 10)))
	assert.Equal(t, day(2028, time.February, 29), endOfMonth(day(2028, time.February, 1)))
	assert.Equal(t, day(2026, time.December, 31), endOfMonth(day(2026, time.December, 31)))
}
