// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingConfirmedEvent is published when a booking commits.  It carries
// enough information for the notification consumer to render a
// confirmation email without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID          uint64 `json:"booking_id"`
	UserID             uint64 `json:"user_id"`
	RoomID             uint64 `json:"room_id"`
	RoomName           string `json:"room_name"`
	Location           string `json:"location"`
	Date               string `json:"date"`
	StartTime          string `json:"start_time"`
	EndTime            string `json:"end_time"`
	TotalPricePence    int64  `json:"total_price_pence"`
	CreditUsedPence    int64  `json:"credit_used_pence"`
	VoucherMinutesUsed int    `json:"voucher_minutes_used"`
	ConfirmedAt        string `json:"confirmed_at"`
}

// BookingCancelledEvent is published when a booking is cancelled.
// RefundPence is the credit actually returned to the member's ledger,
// which can be less than the booking price when vouchers funded part of
// it.
type BookingCancelledEvent struct {
	BookingID   uint64 `json:"booking_id"`
	UserID      uint64 `json:"user_id"`
	RoomName    string `json:"room_name"`
	Location    string `json:"location"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	RefundPence int64  `json:"refund_pence"`
	CancelledAt string `json:"cancelled_at"`
}
