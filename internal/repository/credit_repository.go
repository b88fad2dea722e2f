package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// CreditRepo provides access to the credit_transactions ledger.  Each
// row is a dated, expiring grant of prepaid money; consumption and
// refunds mutate used_pence in place and rows are never deleted, so the
// table doubles as the audit trail.  All mutating operations take a
// caller-supplied *sql.Tx so they can be composed with booking writes
// into one atomic unit; the caller must commit or roll back.
type CreditRepo struct {
	db *sql.DB
}

// NewCreditRepo returns a new CreditRepo bound to the given database.
func NewCreditRepo(db *sql.DB) *CreditRepo { return &CreditRepo{db: db} }

// availableWhere is the ledger availability predicate: not revoked, not
// expired as of the supplied date, and carrying a positive remaining
// balance.
const creditAvailableWhere = `user_id = ? AND revoked = 0 AND expiry_date >= ? AND used_pence < amount_pence`

// CreditConsumption records how much of one ledger row a Use call
// consumed.  The orchestrator keeps these for logging; they are also
// what a targeted refund would need.
type CreditConsumption struct {
	TransactionID uint64
	Pence         int64
}

// GrantTx inserts a new ledger entry with nothing consumed.  amount
// must be positive.  sourceID, when non-nil, is the external dedup key
// (e.g. a payment-intent or invoice id); callers granting on behalf of
// a webhook should first check HasCreditForSource to avoid double
// grants on retried deliveries.
func (r *CreditRepo) GrantTx(ctx context.Context, tx *sql.Tx, userID uint64, amountPence int64, grantDate, expiryDate time.Time, sourceType string, sourceID *string, description string) (uint64, error) {
	if amountPence <= 0 {
		return 0, errors.New("credit grant amount must be positive")
	}
	const q = `INSERT INTO credit_transactions
	           (user_id, amount_pence, used_pence, grant_date, expiry_date, source_type, source_id, revoked, description)
	           VALUES (?, ?, 0, ?, ?, ?, ?, 0, ?)`
	res, err := tx.ExecContext(ctx, q, userID, amountPence,
		grantDate.Format("2006-01-02"), expiryDate.Format("2006-01-02"),
		sourceType, sourceID, description)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// HasCreditForSource reports whether any grant (revoked or not) already
// exists for the given user and external source id.  It is the ledger
// layer's defence against duplicate webhook deliveries.
func (r *CreditRepo) HasCreditForSource(ctx context.Context, userID uint64, sourceID string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM credit_transactions WHERE user_id = ? AND source_id = ?)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, userID, sourceID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// UseTx consumes amountPence from the user's available grants, oldest
// grant first.  The candidate rows are locked with SELECT ... FOR
// UPDATE before any mutation so two concurrent consumers cannot both
// observe the same balance and overdraw it, and so the FIFO order holds
// under concurrency.  The operation is all-or-nothing: when the
// available total is short it returns *InsufficientCreditError carrying
// the true balance and mutates no rows.  On success it returns the
// per-row consumption breakdown in FIFO order.
func (r *CreditRepo) UseTx(ctx context.Context, tx *sql.Tx, userID uint64, amountPence int64, asOf time.Time) ([]CreditConsumption, error) {
	if amountPence <= 0 {
		return nil, errors.New("credit use amount must be positive")
	}
	const q = `SELECT id, amount_pence, used_pence FROM credit_transactions
	           WHERE ` + creditAvailableWhere + `
	           ORDER BY grant_date ASC, id ASC
	           FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, userID, asOf.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	var cands []allocation
	for rows.Next() {
		var id uint64
		var amount, used int64
		if scanErr := rows.Scan(&id, &amount, &used); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		cands = append(cands, allocation{id: id, amount: amount - used})
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	takes, available := planAllocation(cands, amountPence)
	if takes == nil {
		return nil, &InsufficientCreditError{RequestedPence: amountPence, AvailablePence: available}
	}
	// The rows stay locked until the caller commits, so the
	// read-then-write below is serialized against other consumers.
	consumed := make([]CreditConsumption, 0, len(takes))
	for _, tk := range takes {
		if _, err := tx.ExecContext(ctx,
			`UPDATE credit_transactions SET used_pence = used_pence + ? WHERE id = ?`,
			tk.amount, tk.id,
		); err != nil {
			return nil, err
		}
		consumed = append(consumed, CreditConsumption{TransactionID: tk.id, Pence: tk.amount})
	}
	return consumed, nil
}

// RefundTx reverses up to used_pence on one specific transaction.  It
// locks the row, rejects refunds exceeding the consumed amount with
// ErrOverRefund, and returns ErrCreditNotFound when the transaction
// does not exist.
func (r *CreditRepo) RefundTx(ctx context.Context, tx *sql.Tx, transactionID uint64, amountPence int64) error {
	if amountPence <= 0 {
		return errors.New("credit refund amount must be positive")
	}
	var used int64
	err := tx.QueryRowContext(ctx,
		`SELECT used_pence FROM credit_transactions WHERE id = ? FOR UPDATE`,
		transactionID,
	).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCreditNotFound
	}
	if err != nil {
		return err
	}
	if amountPence > used {
		return ErrOverRefund
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE credit_transactions SET used_pence = used_pence - ? WHERE id = ?`,
		amountPence, transactionID,
	)
	return err
}

// ReleaseTx reverses amountPence of prior consumption across the
// user's ledger, most recent grant first (the mirror image of UseTx's
// FIFO).  It is used by booking updates whose new funding plan needs
// less credit than was recorded.  Expiry is deliberately not part of
// the filter: a reversal must land on the rows that were actually
// consumed even if they have since expired.
func (r *CreditRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, userID uint64, amountPence int64) error {
	if amountPence <= 0 {
		return errors.New("credit release amount must be positive")
	}
	const q = `SELECT id, used_pence FROM credit_transactions
	           WHERE user_id = ? AND revoked = 0 AND used_pence > 0
	           ORDER BY grant_date DESC, id DESC
	           FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, userID)
	if err != nil {
		return err
	}
	var crows []allocation
	for rows.Next() {
		var id uint64
		var used int64
		if scanErr := rows.Scan(&id, &used); scanErr != nil {
			rows.Close()
			return scanErr
		}
		crows = append(crows, allocation{id: id, amount: used})
	}
	if err = rows.Close(); err != nil {
		return err
	}
	takes, _ := planAllocation(crows, amountPence)
	if takes == nil {
		return ErrOverRefund
	}
	for _, tk := range takes {
		if _, err := tx.ExecContext(ctx,
			`UPDATE credit_transactions SET used_pence = used_pence - ? WHERE id = ?`,
			tk.amount, tk.id,
		); err != nil {
			return err
		}
	}
	return nil
}

// RevokeTx marks all grants matching the given source id as revoked.
// It refuses with ErrRevokeConsumed when any matching grant has been
// partially or fully consumed: such a row is referenced by committed
// bookings and withdrawing it would corrupt the audit history.  It
// returns the number of rows revoked; zero with a nil error means no
// matching grant existed.
func (r *CreditRepo) RevokeTx(ctx context.Context, tx *sql.Tx, userID uint64, sourceID string) (int64, error) {
	const q = `SELECT id, used_pence FROM credit_transactions
	           WHERE user_id = ? AND source_id = ? AND revoked = 0
	           FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, userID, sourceID)
	if err != nil {
		return 0, err
	}
	var ids []uint64
	for rows.Next() {
		var id uint64
		var used int64
		if scanErr := rows.Scan(&id, &used); scanErr != nil {
			rows.Close()
			return 0, scanErr
		}
		if used > 0 {
			rows.Close()
			return 0, ErrRevokeConsumed
		}
		ids = append(ids, id)
	}
	if err = rows.Close(); err != nil {
		return 0, err
	}
	var revoked int64
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE credit_transactions SET revoked = 1 WHERE id = ?`, id,
		); err != nil {
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}

// AvailablePence returns the user's spendable balance as of the given
// date.  This read is deliberately lock-free; the orchestrator uses it
// for the funding quote and relies on UseTx's locked re-read inside the
// commit transaction for correctness.
func (r *CreditRepo) AvailablePence(ctx context.Context, userID uint64, asOf time.Time) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount_pence - used_pence), 0) FROM credit_transactions
	           WHERE ` + creditAvailableWhere
	var total int64
	err := r.db.QueryRowContext(ctx, q, userID, asOf.Format("2006-01-02")).Scan(&total)
	return total, err
}

// MonthBalance is one row of the use-it-or-lose-it breakdown: the
// available balance expiring in a given calendar month.
type MonthBalance struct {
	Month          string `json:"month"` // "YYYY-MM"
	AvailablePence int64  `json:"available_pence"`
}

// BalanceSummary aggregates a user's credit position for display.
// Revoked grants are excluded from the lifetime totals because they
// never became spendable money.
type BalanceSummary struct {
	AvailablePence int64          `json:"available_pence"`
	GrantedPence   int64          `json:"granted_pence"`
	UsedPence      int64          `json:"used_pence"`
	ByExpiryMonth  []MonthBalance `json:"by_expiry_month"`
}

// Balance returns the available total, lifetime granted and used
// totals, and the available balance grouped by expiry month.
func (r *CreditRepo) Balance(ctx context.Context, userID uint64, asOf time.Time) (*BalanceSummary, error) {
	var sum BalanceSummary
	today := asOf.Format("2006-01-02")
	const totalsQ = `SELECT
	                   COALESCE(SUM(CASE WHEN revoked = 0 AND expiry_date >= ? AND used_pence < amount_pence
	                                     THEN amount_pence - used_pence ELSE 0 END), 0),
	                   COALESCE(SUM(CASE WHEN revoked = 0 THEN amount_pence ELSE 0 END), 0),
	                   COALESCE(SUM(CASE WHEN revoked = 0 THEN used_pence ELSE 0 END), 0)
	                 FROM credit_transactions WHERE user_id = ?`
	if err := r.db.QueryRowContext(ctx, totalsQ, today, userID).Scan(
		&sum.AvailablePence, &sum.GrantedPence, &sum.UsedPence,
	); err != nil {
		return nil, err
	}
	const monthQ = `SELECT DATE_FORMAT(expiry_date, '%Y-%m'), SUM(amount_pence - used_pence)
	                FROM credit_transactions
	                WHERE ` + creditAvailableWhere + `
	                GROUP BY DATE_FORMAT(expiry_date, '%Y-%m')
	                ORDER BY DATE_FORMAT(expiry_date, '%Y-%m')`
	rows, err := r.db.QueryContext(ctx, monthQ, userID, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sum.ByExpiryMonth = []MonthBalance{}
	for rows.Next() {
		var mb MonthBalance
		if err := rows.Scan(&mb.Month, &mb.AvailablePence); err != nil {
			return nil, err
		}
		sum.ByExpiryMonth = append(sum.ByExpiryMonth, mb)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sum, nil
}
