package service

import (
	"time"

	"github.com/oakwell/room-booking/internal/pricing"
)

// endOfMonth returns the last calendar day of t's month, at midnight in
// t's location.
func endOfMonth(t time.Time) time.Time {
	firstOfNext := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
	return firstOfNext.AddDate(0, 0, -1)
}

// dateOnly truncates t to midnight in its own location.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startAtLondon combines a YYYY-MM-DD date with minutes after midnight
// into an instant in the practice's civil timezone.  Booking-window and
// lock-out comparisons happen on these values, never on UTC, so a
// booking at 00:30 local does not slip a day.
func startAtLondon(date string, minute int) (time.Time, error) {
	day, err := pricing.ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(minute) * time.Minute), nil
}
