package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oakwell/room-booking/internal/model"
)

// BookingRepo provides CRUD operations for bookings.  Bookings store
// their span as minutes after midnight alongside a DATE column, which
// keeps the overlap predicate a pure integer comparison.  Mutations
// that participate in the booking transaction take a *sql.Tx.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle so services can begin transactions
// that span several repositories.
func (r *BookingRepo) DB() *sql.DB { return r.db }

// CreateTx inserts a new booking within the scope of an existing
// transaction and populates the generated ID and timestamps on the
// provided model.  The caller must commit or roll back.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings
	           (room_id, user_id, date, start_minute, end_minute,
	            price_per_hour_pence, total_price_pence, credit_used_pence,
	            voucher_minutes_used, status, booking_type)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		b.RoomID, b.UserID, b.Date, b.StartMinute, b.EndMinute,
		b.PricePerHourPence, b.TotalPricePence, b.CreditUsedPence,
		b.VoucherMinutesUsed, b.Status, b.BookingType,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	// Query back the row to populate timestamps and defaults.
	return tx.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM bookings WHERE id = ?`, b.ID,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
}

// HasOverlap reports whether any confirmed booking on the same room and
// date overlaps the half-open span [startMinute, endMinute).  Pass a
// non-zero excludeID to ignore one booking (its own prior row during an
// update).  This is the lock-free pre-check used for fast feedback; the
// commit path must call HasOverlapForUpdateTx.
func (r *BookingRepo) HasOverlap(ctx context.Context, roomID uint64, date string, startMinute, endMinute int, excludeID uint64) (bool, error) {
	q := `SELECT EXISTS(SELECT 1 FROM bookings
	      WHERE room_id = ? AND date = ? AND status = ?
	        AND start_minute < ? AND end_minute > ?`
	args := []interface{}{roomID, date, model.BookingStatusConfirmed, endMinute, startMinute}
	if excludeID != 0 {
		q += ` AND id <> ?`
		args = append(args, excludeID)
	}
	q += `)`
	var exists bool
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&exists)
	return exists, err
}

// HasOverlapForUpdateTx is the transactional variant of HasOverlap.  It
// scans the room/date index under SELECT ... FOR UPDATE so that two
// concurrent creations for the same slot serialize on the index range
// (InnoDB next-key locks cover the gap) instead of both passing the
// check and committing overlapping rows.
func (r *BookingRepo) HasOverlapForUpdateTx(ctx context.Context, tx *sql.Tx, roomID uint64, date string, startMinute, endMinute int, excludeID uint64) (bool, error) {
	q := `SELECT id FROM bookings
	      WHERE room_id = ? AND date = ? AND status = ?
	        AND start_minute < ? AND end_minute > ?`
	args := []interface{}{roomID, date, model.BookingStatusConfirmed, endMinute, startMinute}
	if excludeID != 0 {
		q += ` AND id <> ?`
		args = append(args, excludeID)
	}
	q += ` FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	conflict := rows.Next()
	if err := rows.Err(); err != nil {
		return false, err
	}
	return conflict, nil
}

// GetForUpdateTx loads one booking with an exclusive row lock, used by
// update and cancel to prevent interleaving with a concurrent
// modification of the same booking.  Returns ErrBookingNotFound when
// no row exists.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	const q = `SELECT id, room_id, user_id, date, start_minute, end_minute,
	                  price_per_hour_pence, total_price_pence, credit_used_pence,
	                  voucher_minutes_used, status, booking_type, created_at, updated_at
	           FROM bookings WHERE id = ? FOR UPDATE`
	b, err := scanBooking(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// UpdateSlotTx rewrites the slot and funding columns of a booking
// inside the supplied transaction.  The caller must already hold the
// row lock from GetForUpdateTx.
func (r *BookingRepo) UpdateSlotTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `UPDATE bookings
	           SET room_id = ?, date = ?, start_minute = ?, end_minute = ?,
	               price_per_hour_pence = ?, total_price_pence = ?,
	               credit_used_pence = ?, voucher_minutes_used = ?
	           WHERE id = ?`
	_, err := tx.ExecContext(ctx, q,
		b.RoomID, b.Date, b.StartMinute, b.EndMinute,
		b.PricePerHourPence, b.TotalPricePence,
		b.CreditUsedPence, b.VoucherMinutesUsed, b.ID,
	)
	return err
}

// CancelTx transitions a confirmed booking to cancelled.  The guard on
// the current status makes the transition terminal: cancelling an
// already-cancelled or completed booking returns ErrConflict.
func (r *BookingRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ? WHERE id = ? AND status = ?`,
		model.BookingStatusCancelled, id, model.BookingStatusConfirmed,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// MarkCompleted flips confirmed bookings whose date has passed to
// completed.  Run periodically; returns the number of rows updated.
func (r *BookingRepo) MarkCompleted(ctx context.Context, asOf time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = ? WHERE status = ? AND date < ?`,
		model.BookingStatusCompleted, model.BookingStatusConfirmed,
		asOf.Format("2006-01-02"),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// BookingDetail is a booking joined with its room for display to the
// owning practitioner.  Times are rendered back to HH:MM strings.
type BookingDetail struct {
	ID                 uint64 `json:"id"`
	RoomID             uint64 `json:"room_id"`
	RoomName           string `json:"room_name"`
	Location           string `json:"location"`
	Date               string `json:"date"`
	StartTime          string `json:"start_time"`
	EndTime            string `json:"end_time"`
	Status             string `json:"status"`
	BookingType        string `json:"booking_type"`
	TotalPricePence    int64  `json:"total_price_pence"`
	CreditUsedPence    int64  `json:"credit_used_pence"`
	VoucherMinutesUsed int    `json:"voucher_minutes_used"`
}

// GetByIDForUser returns one booking with room details, restricted to
// the owning user.  ErrBookingNotFound is returned when the booking
// does not exist at all; ErrForbidden when it belongs to someone else.
func (r *BookingRepo) GetByIDForUser(ctx context.Context, bookingID, userID uint64) (*BookingDetail, error) {
	const q = `SELECT b.id, b.user_id, b.room_id, rm.name, rm.location, b.date,
	                  b.start_minute, b.end_minute, b.status, b.booking_type,
	                  b.total_price_pence, b.credit_used_pence, b.voucher_minutes_used
	           FROM bookings b
	           JOIN rooms rm ON rm.id = b.room_id
	           WHERE b.id = ?`
	var det BookingDetail
	var ownerID uint64
	var date time.Time
	var startMin, endMin int
	err := r.db.QueryRowContext(ctx, q, bookingID).Scan(
		&det.ID, &ownerID, &det.RoomID, &det.RoomName, &det.Location, &date,
		&startMin, &endMin, &det.Status, &det.BookingType,
		&det.TotalPricePence, &det.CreditUsedPence, &det.VoucherMinutesUsed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if ownerID != userID {
		return nil, ErrForbidden
	}
	det.Date = date.Format("2006-01-02")
	det.StartTime = minuteClock(startMin)
	det.EndTime = minuteClock(endMin)
	return &det, nil
}

// ListByUser returns all bookings for the given user with room details,
// newest first.  An empty slice is returned when none exist.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]BookingDetail, error) {
	const q = `SELECT b.id, b.room_id, rm.name, rm.location, b.date,
	                  b.start_minute, b.end_minute, b.status, b.booking_type,
	                  b.total_price_pence, b.credit_used_pence, b.voucher_minutes_used
	           FROM bookings b
	           JOIN rooms rm ON rm.id = b.room_id
	           WHERE b.user_id = ?
	           ORDER BY b.date DESC, b.start_minute DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]BookingDetail, 0)
	for rows.Next() {
		var det BookingDetail
		var date time.Time
		var startMin, endMin int
		if err := rows.Scan(
			&det.ID, &det.RoomID, &det.RoomName, &det.Location, &date,
			&startMin, &endMin, &det.Status, &det.BookingType,
			&det.TotalPricePence, &det.CreditUsedPence, &det.VoucherMinutesUsed,
		); err != nil {
			return nil, err
		}
		det.Date = date.Format("2006-01-02")
		det.StartTime = minuteClock(startMin)
		det.EndTime = minuteClock(endMin)
		details = append(details, det)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

func scanBooking(row *sql.Row) (*model.Booking, error) {
	var b model.Booking
	var date time.Time
	if err := row.Scan(
		&b.ID, &b.RoomID, &b.UserID, &date, &b.StartMinute, &b.EndMinute,
		&b.PricePerHourPence, &b.TotalPricePence, &b.CreditUsedPence,
		&b.VoucherMinutesUsed, &b.Status, &b.BookingType, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.Date = date.Format("2006-01-02")
	return &b, nil
}

func minuteClock(m int) string { return fmt.Sprintf("%02d:%02d", m/60, m%60) }
