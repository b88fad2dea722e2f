package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd int
		want                       bool
	}{
		{"identical", 540, 600, 540, 600, true},
		{"contained", 540, 720, 600, 660, true},
		{"partial front", 540, 600, 570, 660, true},
		{"partial back", 570, 660, 540, 600, true},
		{"adjacent before", 480, 540, 540, 600, false},
		{"adjacent after", 540, 600, 480, 540, false},
		{"disjoint", 480, 540, 600, 660, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd))
		})
	}
}

func TestDurationMinutes(t *testing.T) {
	b := &Booking{StartMinute: 14 * 60, EndMinute: 16 * 60}
	assert.Equal(t, 120, b.DurationMinutes())
}
