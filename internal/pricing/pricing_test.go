package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceKensingtonWeekdayCrossingSplit(t *testing.T) {
	// 2026-09-02 is a Wednesday. 14:00-16:00 straddles the 15:00
	// boundary: one morning hour at 19.00 plus one afternoon hour at
	// 23.00 = 42.00.
	q, err := Price(LocationKensington, "2026-09-02", "14:00", "16:00")
	require.NoError(t, err)
	assert.Equal(t, int64(4200), q.TotalPence)
	assert.Equal(t, 120, q.DurationMinutes)
	assert.False(t, q.Weekend)
}

func TestPriceSplitAdditivity(t *testing.T) {
	whole, err := Price(LocationClapham, "2026-09-03", "13:30", "17:30")
	require.NoError(t, err)
	morning, err := Price(LocationClapham, "2026-09-03", "13:30", "15:00")
	require.NoError(t, err)
	afternoon, err := Price(LocationClapham, "2026-09-03", "15:00", "17:30")
	require.NoError(t, err)
	assert.Equal(t, whole.TotalPence, morning.TotalPence+afternoon.TotalPence)
}

func TestPriceWeekendFlatRate(t *testing.T) {
	// 2026-09-05 is a Saturday: flat rate regardless of the 15:00 split.
	q, err := Price(LocationKensington, "2026-09-05", "14:00", "16:00")
	require.NoError(t, err)
	assert.Equal(t, int64(4200), q.TotalPence)
	assert.True(t, q.Weekend)

	half, err := Price(LocationKensington, "2026-09-05", "09:00", "09:30")
	require.NoError(t, err)
	assert.Equal(t, int64(1050), half.TotalPence)
}

func TestPriceDeterministic(t *testing.T) {
	first, err := Price(LocationClapham, "2026-09-04", "08:00", "22:00")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Price(LocationClapham, "2026-09-04", "08:00", "22:00")
		require.NoError(t, err)
		assert.Equal(t, first.TotalPence, again.TotalPence)
	}
}

func TestPriceRejectsInvalidSpans(t *testing.T) {
	cases := []struct {
		name             string
		date, start, end string
	}{
		{"before opening", "2026-09-02", "07:30", "09:00"},
		{"after closing", "2026-09-02", "21:00", "22:30"},
		{"end equals start", "2026-09-02", "10:00", "10:00"},
		{"end before start", "2026-09-02", "16:00", "14:00"},
		{"malformed start", "2026-09-02", "9:00", "10:00"},
		{"malformed end", "2026-09-02", "09:00", "10:0"},
		{"nonsense time", "2026-09-02", "ab:cd", "10:00"},
		{"malformed date", "02-09-2026", "09:00", "10:00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Price(LocationKensington, tc.date, tc.start, tc.end)
			assert.Error(t, err)
		})
	}
}

func TestPriceUnknownLocation(t *testing.T) {
	_, err := Price("MAYFAIR", "2026-09-02", "09:00", "10:00")
	assert.ErrorIs(t, err, ErrUnknownLocation)
}

func TestParseClock(t *testing.T) {
	n, err := ParseClock("08:45")
	require.NoError(t, err)
	assert.Equal(t, 525, n)

	for _, bad := range []string{"", "08", "08:45:00", "24:00", "12:60", "-1:00"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
