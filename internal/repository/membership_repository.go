package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/oakwell/room-booking/internal/model"
)

// MembershipRepo provides access to memberships.  There is at most one
// membership per user; the unique user_id index enforces it.
type MembershipRepo struct {
	db *sql.DB
}

// NewMembershipRepo returns a new MembershipRepo bound to the given database.
func NewMembershipRepo(db *sql.DB) *MembershipRepo { return &MembershipRepo{db: db} }

const membershipColumns = `id, user_id, type, stripe_customer_id, stripe_subscription_id,
	subscription_start_date, subscription_end_date, monthly_amount_pence,
	termination_requested_at, suspension_date, created_at, updated_at`

// GetByUserID returns the membership owned by the given user, or
// ErrMembershipNotFound.
func (r *MembershipRepo) GetByUserID(ctx context.Context, userID uint64) (*model.Membership, error) {
	return r.getWhere(ctx, `user_id = ?`, userID)
}

// GetByID returns the membership with the given primary key.
func (r *MembershipRepo) GetByID(ctx context.Context, id uint64) (*model.Membership, error) {
	return r.getWhere(ctx, `id = ?`, id)
}

// GetByStripeCustomer resolves a Stripe customer id back to the local
// membership; webhook handlers use it to route subscription payments.
func (r *MembershipRepo) GetByStripeCustomer(ctx context.Context, customerID string) (*model.Membership, error) {
	return r.getWhere(ctx, `stripe_customer_id = ?`, customerID)
}

func (r *MembershipRepo) getWhere(ctx context.Context, where string, arg interface{}) (*model.Membership, error) {
	q := `SELECT ` + membershipColumns + ` FROM memberships WHERE ` + where
	var m model.Membership
	var custID, subID sql.NullString
	var subStart, subEnd, termAt, suspension sql.NullTime
	err := r.db.QueryRowContext(ctx, q, arg).Scan(
		&m.ID, &m.UserID, &m.Type, &custID, &subID,
		&subStart, &subEnd, &m.MonthlyAmountPence,
		&termAt, &suspension, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, err
	}
	if custID.Valid {
		m.StripeCustomerID = &custID.String
	}
	if subID.Valid {
		m.StripeSubscriptionID = &subID.String
	}
	if subStart.Valid {
		m.SubscriptionStartDate = &subStart.Time
	}
	if subEnd.Valid {
		m.SubscriptionEndDate = &subEnd.Time
	}
	if termAt.Valid {
		m.TerminationRequestedAt = &termAt.Time
	}
	if suspension.Valid {
		m.SuspensionDate = &suspension.Time
	}
	return &m, nil
}

// LinkStripeCustomer stores the external customer id on a membership
// the first time the member pays by card.
func (r *MembershipRepo) LinkStripeCustomer(ctx context.Context, membershipID uint64, customerID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE memberships SET stripe_customer_id = ? WHERE id = ?`,
		customerID, membershipID,
	)
	return err
}

// SetSubscriptionPeriodTx records the paid window for an ad-hoc member
// after a successful subscription payment.  It runs in the
// caller-supplied transaction so the window advances in the same commit
// as the credit grant; a grant without the matching window would leave
// a paid member unable to book.
func (r *MembershipRepo) SetSubscriptionPeriodTx(ctx context.Context, tx *sql.Tx, membershipID uint64, start, end time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE memberships SET subscription_start_date = ?, subscription_end_date = ? WHERE id = ?`,
		start.Format("2006-01-02"), end.Format("2006-01-02"), membershipID,
	)
	return err
}

// Terminate records a termination request and the computed suspension
// date.  Returns ErrMembershipNotFound when no row was updated.
func (r *MembershipRepo) Terminate(ctx context.Context, membershipID uint64, requestedAt, suspensionDate time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE memberships SET termination_requested_at = ?, suspension_date = ? WHERE id = ?`,
		requestedAt.UTC().Format("2006-01-02 15:04:05"),
		suspensionDate.Format("2006-01-02"), membershipID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMembershipNotFound
	}
	return nil
}
