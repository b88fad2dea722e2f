package model

import "time"

// Booking status values.  A confirmed booking occupies its room/date
// interval; cancellation is terminal (re-activation requires a new
// booking).  Completed is applied after the slot has passed.
const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
	BookingStatusCompleted = "completed"
)

// Booking type values.  Free and internal bookings are created by
// admins and carry no charge.
const (
	BookingTypePermanent = "permanent_recurring"
	BookingTypeAdHoc     = "ad_hoc"
	BookingTypeFree      = "free"
	BookingTypeInternal  = "internal"
)

// Booking records one reservation of a room for a same-day time span.
// Times are stored as minutes after midnight so interval comparisons
// and duration arithmetic stay integral; money is integer pence.
//
// Fields:
//  ID                 – primary key identifier.
//  RoomID             – room being reserved.
//  UserID             – owning practitioner.
//  Date               – calendar date (YYYY-MM-DD) in the practice's timezone.
//  StartMinute        – inclusive start, minutes after midnight.
//  EndMinute          – exclusive end, minutes after midnight.
//  PricePerHourPence  – hourly rate snapshot at booking time.
//  TotalPricePence    – full price of the span.
//  CreditUsedPence    – portion funded from the credit ledger.
//  VoucherMinutesUsed – portion funded from free-hour vouchers, in minutes.
//  Status             – confirmed, cancelled or completed.
//  BookingType        – permanent_recurring, ad_hoc, free or internal.
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last update timestamp.
type Booking struct {
	ID                 uint64    // bookings.id
	RoomID             uint64    // bookings.room_id
	UserID             uint64    // bookings.user_id
	Date               string    // bookings.date
	StartMinute        int       // bookings.start_minute
	EndMinute          int       // bookings.end_minute
	PricePerHourPence  int64     // bookings.price_per_hour_pence
	TotalPricePence    int64     // bookings.total_price_pence
	CreditUsedPence    int64     // bookings.credit_used_pence
	VoucherMinutesUsed int       // bookings.voucher_minutes_used
	Status             string    // bookings.status
	BookingType        string    // bookings.booking_type
	CreatedAt          time.Time // bookings.created_at
	UpdatedAt          time.Time // bookings.updated_at
}

// DurationMinutes returns the length of the booked span.
func (b *Booking) DurationMinutes() int { return b.EndMinute - b.StartMinute }

// Overlaps reports whether two half-open minute intervals intersect.
// Adjacent spans (aEnd == bStart) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && aEnd > bStart
}
