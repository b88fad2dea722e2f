package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// VoucherRepo provides access to the free_booking_vouchers ledger.  It
// mirrors the credit ledger's FIFO discipline but is denominated in
// minutes of free room time.  Consumption order is oldest expiry first
// so allocations closest to being lost are spent before newer ones.
type VoucherRepo struct {
	db *sql.DB
}

// NewVoucherRepo returns a new VoucherRepo bound to the given database.
func NewVoucherRepo(db *sql.DB) *VoucherRepo { return &VoucherRepo{db: db} }

const voucherAvailableWhere = `user_id = ? AND expiry_date >= ? AND minutes_used < minutes_allocated`

// GrantTx inserts a new voucher allocation within the supplied
// transaction.  minutes must be positive.
func (r *VoucherRepo) GrantTx(ctx context.Context, tx *sql.Tx, userID uint64, minutes int, expiryDate time.Time, reason *string) (uint64, error) {
	if minutes <= 0 {
		return 0, errors.New("voucher grant minutes must be positive")
	}
	const q = `INSERT INTO free_booking_vouchers
	           (user_id, minutes_allocated, minutes_used, expiry_date, reason)
	           VALUES (?, ?, 0, ?, ?)`
	res, err := tx.ExecContext(ctx, q, userID, minutes, expiryDate.Format("2006-01-02"), reason)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Grant inserts a voucher outside any transaction; used by the admin
// grant endpoint where no other write participates.
func (r *VoucherRepo) Grant(ctx context.Context, userID uint64, minutes int, expiryDate time.Time, reason *string) (uint64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	id, err := r.GrantTx(ctx, tx, userID, minutes, expiryDate, reason)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// UseTx consumes minutes from the user's available vouchers, oldest
// expiry first, locking the candidate rows before mutation.  It is
// all-or-nothing: a shortfall returns *InsufficientVoucherError with
// no rows touched.
func (r *VoucherRepo) UseTx(ctx context.Context, tx *sql.Tx, userID uint64, minutes int, asOf time.Time) error {
	if minutes <= 0 {
		return errors.New("voucher use minutes must be positive")
	}
	const q = `SELECT id, minutes_allocated, minutes_used FROM free_booking_vouchers
	           WHERE ` + voucherAvailableWhere + `
	           ORDER BY expiry_date ASC, id ASC
	           FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, userID, asOf.Format("2006-01-02"))
	if err != nil {
		return err
	}
	var cands []allocation
	for rows.Next() {
		var id uint64
		var alloc, used int
		if scanErr := rows.Scan(&id, &alloc, &used); scanErr != nil {
			rows.Close()
			return scanErr
		}
		cands = append(cands, allocation{id: id, amount: int64(alloc - used)})
	}
	if err = rows.Close(); err != nil {
		return err
	}
	takes, available := planAllocation(cands, int64(minutes))
	if takes == nil {
		return &InsufficientVoucherError{RequestedMinutes: minutes, AvailableMinutes: int(available)}
	}
	for _, tk := range takes {
		if _, err := tx.ExecContext(ctx,
			`UPDATE free_booking_vouchers SET minutes_used = minutes_used + ? WHERE id = ?`,
			tk.amount, tk.id,
		); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseTx returns minutes to the user's vouchers, reversing prior
// consumption most-recent-expiry first.  Used when a booking update
// lowers the voucher coverage.  Expired rows are still eligible: the
// reversal must land where the consumption happened.
func (r *VoucherRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, userID uint64, minutes int) error {
	if minutes <= 0 {
		return errors.New("voucher release minutes must be positive")
	}
	const q = `SELECT id, minutes_used FROM free_booking_vouchers
	           WHERE user_id = ? AND minutes_used > 0
	           ORDER BY expiry_date DESC, id DESC
	           FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, userID)
	if err != nil {
		return err
	}
	var crows []allocation
	for rows.Next() {
		var id uint64
		var used int
		if scanErr := rows.Scan(&id, &used); scanErr != nil {
			rows.Close()
			return scanErr
		}
		crows = append(crows, allocation{id: id, amount: int64(used)})
	}
	if err = rows.Close(); err != nil {
		return err
	}
	takes, _ := planAllocation(crows, int64(minutes))
	if takes == nil {
		return ErrOverRefund
	}
	for _, tk := range takes {
		if _, err := tx.ExecContext(ctx,
			`UPDATE free_booking_vouchers SET minutes_used = minutes_used - ? WHERE id = ?`,
			tk.amount, tk.id,
		); err != nil {
			return err
		}
	}
	return nil
}

// AvailableMinutes returns the user's spendable voucher minutes as of
// the given date.  Lock-free, like CreditRepo.AvailablePence; the
// locked re-read happens inside UseTx.
func (r *VoucherRepo) AvailableMinutes(ctx context.Context, userID uint64, asOf time.Time) (int, error) {
	const q = `SELECT COALESCE(SUM(minutes_allocated - minutes_used), 0) FROM free_booking_vouchers
	           WHERE ` + voucherAvailableWhere
	var total int
	err := r.db.QueryRowContext(ctx, q, userID, asOf.Format("2006-01-02")).Scan(&total)
	return total, err
}
