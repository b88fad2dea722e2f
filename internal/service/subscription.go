package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oakwell/room-booking/internal/model"
	"github.com/oakwell/room-booking/internal/payment"
	"github.com/oakwell/room-booking/internal/pricing"
	"github.com/oakwell/room-booking/internal/repository"
)

// SubscriptionService turns subscription payments into credit grants
// and handles the membership lifecycle around them.
type SubscriptionService struct {
	db          *sql.DB
	credits     *repository.CreditRepo
	memberships *repository.MembershipRepo
	gateway     payment.Gateway // nil when no card processor is configured
}

// NewSubscriptionService constructs the service.  gateway may be nil.
func NewSubscriptionService(db *sql.DB, credits *repository.CreditRepo, memberships *repository.MembershipRepo, gateway payment.Gateway) *SubscriptionService {
	if db == nil || credits == nil || memberships == nil {
		panic("nil dependency passed to NewSubscriptionService")
	}
	return &SubscriptionService{db: db, credits: credits, memberships: memberships, gateway: gateway}
}

// ProRataPence computes the first-month charge for a membership that
// starts mid-month: the monthly amount scaled by the remaining days of
// the month including today, rounded half-up.
func ProRataPence(monthlyPence int64, today time.Time) int64 {
	daysInMonth := endOfMonth(today).Day()
	remaining := daysInMonth - today.Day() + 1
	return halfUpDiv(monthlyPence*int64(remaining), int64(daysInMonth))
}

// SuspensionDate computes the last bookable date for a termination
// requested at the given instant: the final day of the month after the
// termination month.  A request on 10 March suspends from 30 April.
func SuspensionDate(requestedAt time.Time) time.Time {
	firstOfNext := time.Date(requestedAt.Year(), requestedAt.Month()+1, 1, 0, 0, 0, 0, requestedAt.Location())
	return endOfMonth(firstOfNext)
}

// subscriptionWindow returns the grant date and expiry for a
// subscription payment settled at paidAt: the paid window runs from the
// payment day to the end of that month, in London civil time.
func subscriptionWindow(paidAt time.Time) (grantDate, expiry time.Time) {
	paidAt = paidAt.In(pricing.London())
	return dateOnly(paidAt), endOfMonth(paidAt)
}

// HandleSubscriptionPayment records a successful subscription invoice
// as a credit grant.  The invoice id is the dedup key, so a redelivered
// webhook is a no-op.  Permanent members receive a grant expiring at
// the end of the paid month; ad-hoc members additionally have their
// bookable period advanced on the membership row, in the same
// transaction as the grant: a retried delivery short-circuits on the
// dedup check, so the window must never be able to lag a committed
// grant.
func (s *SubscriptionService) HandleSubscriptionPayment(ctx context.Context, customerID, invoiceID string, amountPence int64, paidAt time.Time) error {
	if amountPence <= 0 {
		return validationf("invoice %s carries non-positive amount %d", invoiceID, amountPence)
	}
	m, err := s.memberships.GetByStripeCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	has, err := s.credits.HasCreditForSource(ctx, m.UserID, invoiceID)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	paidAt = paidAt.In(pricing.London())
	grantDate, expiry := subscriptionWindow(paidAt)
	sourceType := model.CreditSourceMonthlySubscription
	if m.Type == model.MembershipTypeAdHoc {
		sourceType = model.CreditSourceAdHocSubscription
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	sid := invoiceID
	_, err = s.credits.GrantTx(ctx, tx, m.UserID, amountPence,
		grantDate, expiry, sourceType, &sid,
		fmt.Sprintf("subscription payment %s", paidAt.Format("2006-01")))
	if err != nil {
		return err
	}
	if m.Type == model.MembershipTypeAdHoc {
		if err := s.memberships.SetSubscriptionPeriodTx(ctx, tx, m.ID, grantDate, expiry); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// EnsureCustomer returns the member's payment-processor customer id,
// creating and linking one on first use.  Lookup by email comes first
// so a customer created out of band is adopted instead of duplicated.
func (s *SubscriptionService) EnsureCustomer(ctx context.Context, m *model.Membership, email, name string) (string, error) {
	if m.StripeCustomerID != nil && *m.StripeCustomerID != "" {
		return *m.StripeCustomerID, nil
	}
	if s.gateway == nil {
		return "", validationf("no payment gateway is configured")
	}
	id, err := s.gateway.FindCustomerByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if id == "" {
		id, err = s.gateway.CreateCustomer(ctx, email, name)
		if err != nil {
			return "", err
		}
	}
	if err := s.memberships.LinkStripeCustomer(ctx, m.ID, id); err != nil {
		return "", err
	}
	return id, nil
}

// Terminate records a termination request for the membership and stamps
// its suspension date per the one-full-month notice rule.
func (s *SubscriptionService) Terminate(ctx context.Context, membershipID uint64, requestedAt time.Time) (time.Time, error) {
	requestedAt = requestedAt.In(pricing.London())
	suspension := SuspensionDate(requestedAt)
	if err := s.memberships.Terminate(ctx, membershipID, requestedAt, suspension); err != nil {
		return time.Time{}, err
	}
	return suspension, nil
}
