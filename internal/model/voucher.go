package model

import "time"

// FreeBookingVoucher is a grant of free room time, denominated in
// minutes rather than money.  Vouchers follow the same availability and
// FIFO-by-expiry discipline as credit transactions.  Minutes consumed
// by a booking are not returned on cancellation; they are "use it"
// allocations.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – owner of the voucher.
//  MinutesAllocated – total minutes granted.
//  MinutesUsed      – minutes consumed so far.
//  ExpiryDate       – last date the remaining minutes may be spent.
//  Reason           – optional free-text grant reason.
//  CreatedAt        – creation timestamp.
type FreeBookingVoucher struct {
	ID               uint64    // free_booking_vouchers.id
	UserID           uint64    // free_booking_vouchers.user_id
	MinutesAllocated int       // free_booking_vouchers.minutes_allocated
	MinutesUsed      int       // free_booking_vouchers.minutes_used
	ExpiryDate       time.Time // free_booking_vouchers.expiry_date
	Reason           *string   // free_booking_vouchers.reason (nullable)
	CreatedAt        time.Time // free_booking_vouchers.created_at
}

// RemainingMinutes returns the unconsumed minutes on the voucher.
func (v *FreeBookingVoucher) RemainingMinutes() int { return v.MinutesAllocated - v.MinutesUsed }
