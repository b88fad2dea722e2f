// Package pricing computes the price of a room booking from the site,
// the calendar date and the booked time span.  It is a pure component:
// no I/O, no clock reads, and the same inputs always produce the same
// price, which the orchestrator relies on for idempotent retries.  All
// amounts are integer pence; rounding is half-up to the nearest penny
// per segment.
package pricing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // bundled zone data so Europe/London resolves everywhere
)

// Site codes for the practice's two locations.
const (
	LocationKensington = "KENSINGTON"
	LocationClapham    = "CLAPHAM"
)

// Bookable day window and the weekday morning/afternoon boundary, in
// minutes after midnight.
const (
	OpenMinute  = 8 * 60  // 08:00
	CloseMinute = 22 * 60 // 22:00
	SplitMinute = 15 * 60 // 15:00
)

// ErrUnknownLocation is returned when the site code has no rate card.
var ErrUnknownLocation = errors.New("unknown location")

// rateCard holds the hourly rates for one site in pence.  Weekdays use
// the morning rate before 15:00 and the afternoon rate from 15:00;
// weekends use a single flat rate.
type rateCard struct {
	weekdayMorning   int64
	weekdayAfternoon int64
	weekend          int64
}

var rateCards = map[string]rateCard{
	LocationKensington: {weekdayMorning: 1900, weekdayAfternoon: 2300, weekend: 2100},
	LocationClapham:    {weekdayMorning: 1500, weekdayAfternoon: 1900, weekend: 1700},
}

// london is the practice's civil timezone.  Weekend evaluation and all
// booking-window checks happen in this zone, never UTC.
var london *time.Location

func init() {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		panic("pricing: load Europe/London: " + err.Error())
	}
	london = loc
}

// London returns the practice's civil timezone.
func London() *time.Location { return london }

// Quote is the result of pricing one booking span.
type Quote struct {
	TotalPence       int64 // full price of the span
	RatePerHourPence int64 // blended hourly rate, half-up
	StartMinute      int   // inclusive start, minutes after midnight
	EndMinute        int   // exclusive end
	DurationMinutes  int   // EndMinute - StartMinute
	Weekend          bool  // whether the date fell on Sat/Sun in London
}

// ParseClock parses a strict 24h "HH:MM" string into minutes after
// midnight.  It rejects missing zero-padding, out-of-range fields and
// any trailing garbage.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("malformed time %q, want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("malformed time %q, want HH:MM", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("malformed time %q, want HH:MM", s)
	}
	return h*60 + m, nil
}

// ParseDate parses a "YYYY-MM-DD" calendar date in the London zone.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, london)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

// Price computes the price of a [start,end) span at the given site on
// the given date.  Weekday spans crossing 15:00 are priced as two
// sub-segments so that the total always equals the sum of the segment
// prices.  Errors indicate invalid input (malformed strings, span
// outside 08:00-22:00, or end <= start).
func Price(location, date, start, end string) (*Quote, error) {
	rc, ok := rateCards[location]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLocation, location)
	}
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	s, err := ParseClock(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return nil, err
	}
	if e <= s {
		return nil, fmt.Errorf("end %s must be after start %s on the same day", end, start)
	}
	if s < OpenMinute || e > CloseMinute {
		return nil, fmt.Errorf("span %s-%s outside bookable hours 08:00-22:00", start, end)
	}

	wd := day.Weekday()
	weekend := wd == time.Saturday || wd == time.Sunday

	var total int64
	if weekend {
		total = segmentPence(rc.weekend, e-s)
	} else {
		// Walk the span in sub-segments bounded by 15:00, pricing
		// each at its own rate.
		if s < SplitMinute {
			morningEnd := e
			if morningEnd > SplitMinute {
				morningEnd = SplitMinute
			}
			total += segmentPence(rc.weekdayMorning, morningEnd-s)
		}
		if e > SplitMinute {
			afternoonStart := s
			if afternoonStart < SplitMinute {
				afternoonStart = SplitMinute
			}
			total += segmentPence(rc.weekdayAfternoon, e-afternoonStart)
		}
	}

	dur := e - s
	return &Quote{
		TotalPence:       total,
		RatePerHourPence: halfUpDiv(total*60, int64(dur)),
		StartMinute:      s,
		EndMinute:        e,
		DurationMinutes:  dur,
		Weekend:          weekend,
	}, nil
}

// segmentPence prices a run of minutes at an hourly rate, rounding
// half-up to the nearest penny.
func segmentPence(ratePerHour int64, minutes int) int64 {
	return halfUpDiv(ratePerHour*int64(minutes), 60)
}

// halfUpDiv divides num by den rounding half away from zero.  Both
// arguments must be non-negative.
func halfUpDiv(num, den int64) int64 {
	return (2*num + den) / (2 * den)
}
