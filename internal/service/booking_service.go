package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/oakwell/room-booking/internal/model"
	"github.com/oakwell/room-booking/internal/payment"
	"github.com/oakwell/room-booking/internal/pricing"
	"github.com/oakwell/room-booking/internal/queue"
	"github.com/oakwell/room-booking/internal/repository"
)

// BookingService is the booking transaction orchestrator.  For create,
// update and cancel it composes the pricing engine, the availability
// check, the two ledgers and the payment gateway into one atomic
// operation: either the booking row and every ledger mutation commit
// together, or none of them do.  A card shortfall is never settled
// inside that transaction — the service returns a payment-required
// result and the webhook-driven settlement path re-invokes the
// operation once the external charge succeeds.
type BookingService struct {
	db          *sql.DB
	rooms       *repository.RoomRepo
	bookings    *repository.BookingRepo
	credits     *repository.CreditRepo
	vouchers    *repository.VoucherRepo
	memberships *repository.MembershipRepo
	gateway     payment.Gateway // nil when no card processor is configured
	currency    string
}

// NewBookingService constructs the orchestrator.  gateway may be nil.
func NewBookingService(db *sql.DB, rooms *repository.RoomRepo, bookings *repository.BookingRepo, credits *repository.CreditRepo, vouchers *repository.VoucherRepo, memberships *repository.MembershipRepo, gateway payment.Gateway, currency string) *BookingService {
	if db == nil || rooms == nil || bookings == nil || credits == nil || vouchers == nil || memberships == nil {
		panic("nil dependency passed to NewBookingService")
	}
	if currency == "" {
		currency = "gbp"
	}
	return &BookingService{
		db:          db,
		rooms:       rooms,
		bookings:    bookings,
		credits:     credits,
		vouchers:    vouchers,
		memberships: memberships,
		gateway:     gateway,
		currency:    currency,
	}
}

// PaymentRequired is the two-phase-create envelope returned when part
// of the price needs a card payment.  The booking does not exist yet;
// the caller surfaces the client secret to the payer and the webhook
// settlement path retries the operation.
type PaymentRequired struct {
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	AmountPence     int64  `json:"amount_pence"`
}

// CreateRequest carries the parameters of a booking creation.
type CreateRequest struct {
	UserID      uint64
	RoomID      uint64
	Date        string // YYYY-MM-DD
	Start       string // HH:MM
	End         string // HH:MM
	BookingType string // empty derives from the membership type
}

// CreateOutcome holds either the committed booking or a
// payment-required envelope, never both.
type CreateOutcome struct {
	Booking *model.Booking
	Payment *PaymentRequired
}

// metadata keys used to route webhook events back to the right flow.
const (
	metaPurpose       = "purpose"
	purposeDifference = "pay_difference"
	purposeUpdate     = "booking_update"
)

// Create runs the booking creation state machine: eligibility, temporal
// validity, pricing, availability, funding, and the atomic commit.
func (s *BookingService) Create(ctx context.Context, req CreateRequest) (*CreateOutcome, error) {
	now := time.Now().In(pricing.London())

	bookingType := req.BookingType
	chargeable := bookingType != model.BookingTypeFree && bookingType != model.BookingTypeInternal

	// Free and internal bookings are staff-created and bypass
	// membership rules entirely; the target user may be the practice
	// itself with no membership row.
	var m *model.Membership
	if chargeable {
		var err error
		m, err = s.memberships.GetByUserID(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		if bookingType == "" {
			if m.Type == model.MembershipTypePermanent {
				bookingType = model.BookingTypePermanent
			} else {
				bookingType = model.BookingTypeAdHoc
			}
		}
	}

	room, err := s.rooms.GetByID(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, validationf("room %q is not accepting bookings", room.Name)
	}

	quote, err := pricing.Price(room.Location, req.Date, req.Start, req.End)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	if chargeable {
		if err := s.checkEligibility(m, req.Date, now); err != nil {
			return nil, err
		}
	}
	if err := checkBookingWindow(req.Date, quote.StartMinute, now); err != nil {
		return nil, err
	}

	// Fast pre-check outside the transaction for early feedback; the
	// authoritative check runs again under the row lock below.
	conflict, err := s.bookings.HasOverlap(ctx, room.ID, req.Date, quote.StartMinute, quote.EndMinute, 0)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ErrSlotUnavailable
	}

	plan := FundingPlan{}
	totalPence, ratePence := quote.TotalPence, quote.RatePerHourPence
	if chargeable {
		availMinutes, err := s.vouchers.AvailableMinutes(ctx, req.UserID, now)
		if err != nil {
			return nil, err
		}
		availCredit, err := s.credits.AvailablePence(ctx, req.UserID, now)
		if err != nil {
			return nil, err
		}
		plan = PlanFunding(quote.TotalPence, quote.DurationMinutes, availMinutes, availCredit)
		if !plan.FullyFunded() {
			pr, err := s.requestPayment(ctx, m, plan.ShortfallPence, map[string]string{
				metaPurpose:    purposeDifference,
				"user_id":      strconv.FormatUint(req.UserID, 10),
				"room_id":      strconv.FormatUint(req.RoomID, 10),
				"date":         req.Date,
				"start":        req.Start,
				"end":          req.End,
				"booking_type": bookingType,
			})
			if err != nil {
				return nil, err
			}
			return &CreateOutcome{Payment: pr}, nil
		}
	} else {
		// Free and internal bookings occupy the slot without moving
		// money; the price columns record zero.
		totalPence, ratePence = 0, 0
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Re-validate under the row lock: the pre-check above ran outside
	// the transaction and a concurrent creation may have won the slot.
	conflict, err = s.bookings.HasOverlapForUpdateTx(ctx, tx, room.ID, req.Date, quote.StartMinute, quote.EndMinute, 0)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ErrSlotUnavailable
	}

	b := &model.Booking{
		RoomID:             room.ID,
		UserID:             req.UserID,
		Date:               req.Date,
		StartMinute:        quote.StartMinute,
		EndMinute:          quote.EndMinute,
		PricePerHourPence:  ratePence,
		TotalPricePence:    totalPence,
		CreditUsedPence:    plan.CreditNeededPence,
		VoucherMinutesUsed: plan.VoucherMinutes,
		Status:             model.BookingStatusConfirmed,
		BookingType:        bookingType,
	}
	if err := s.bookings.CreateTx(ctx, tx, b); err != nil {
		return nil, err
	}
	if plan.VoucherMinutes > 0 {
		if err := s.vouchers.UseTx(ctx, tx, req.UserID, plan.VoucherMinutes, now); err != nil {
			return nil, err
		}
	}
	if plan.CreditNeededPence > 0 {
		if _, err := s.credits.UseTx(ctx, tx, req.UserID, plan.CreditNeededPence, now); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	s.notifyConfirmed(b, room)
	return &CreateOutcome{Booking: b}, nil
}

// CreateSettled is the webhook settlement half of the two-phase create.
// The external charge for intentID has succeeded: grant the amount as
// pay-the-difference credit (idempotently, keyed by the intent id) and
// re-invoke Create.  If creation then fails the grant is revoked so a
// real payment is never stranded as free credit.
func (s *BookingService) CreateSettled(ctx context.Context, req CreateRequest, intentID string, amountPence int64) (*model.Booking, error) {
	if err := s.grantDifference(ctx, req.UserID, intentID, amountPence); err != nil {
		return nil, err
	}
	outcome, err := s.Create(ctx, req)
	if err != nil {
		s.revokeDifference(ctx, req.UserID, intentID)
		return nil, err
	}
	if outcome.Payment != nil {
		// The granted amount no longer covers the shortfall (price or
		// balances moved between quote and settlement).  Undo the
		// grant rather than re-charging blindly.
		s.revokeDifference(ctx, req.UserID, intentID)
		return nil, validationf("payment of %d pence no longer covers the booking shortfall", amountPence)
	}
	return outcome.Booking, nil
}

// UpdateRequest carries the parameters of a booking modification.  The
// new slot is re-priced from scratch and reconciled against the
// booking's recorded funding.
type UpdateRequest struct {
	BookingID uint64
	UserID    uint64
	RoomID    uint64
	Date      string
	Start     string
	End       string
}

// UpdateOutcome mirrors CreateOutcome for modifications.
type UpdateOutcome struct {
	Booking *model.Booking
	Payment *PaymentRequired
}

// Update re-derives price and funding for the new room/date/span and
// applies only the deltas against what the booking already consumed:
// negative deltas release credit/voucher time back to the ledgers,
// positive deltas consume more and may surface a payment-required
// result.  The booking row stays locked for the whole reconciliation
// so a concurrent cancellation cannot interleave; the payment-required
// path writes nothing and releases the locks before calling the
// gateway.
func (s *BookingService) Update(ctx context.Context, req UpdateRequest) (*UpdateOutcome, error) {
	now := time.Now().In(pricing.London())

	room, err := s.rooms.GetByID(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, validationf("room %q is not accepting bookings", room.Name)
	}
	quote, err := pricing.Price(room.Location, req.Date, req.Start, req.End)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	if err := checkBookingWindow(req.Date, quote.StartMinute, now); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := s.bookings.GetForUpdateTx(ctx, tx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != req.UserID {
		return nil, repository.ErrForbidden
	}
	if b.Status != model.BookingStatusConfirmed {
		return nil, repository.ErrConflict
	}
	if err := checkLockout(b, now); err != nil {
		return nil, err
	}

	conflict, err := s.bookings.HasOverlapForUpdateTx(ctx, tx, room.ID, req.Date, quote.StartMinute, quote.EndMinute, b.ID)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ErrSlotUnavailable
	}

	// Reconcile against the recorded usage rather than starting from
	// zero: minutes already consumed by this booking count as
	// available again for the new span.
	availMinutes, err := s.vouchers.AvailableMinutes(ctx, req.UserID, now)
	if err != nil {
		return nil, err
	}
	plan := PlanReconciliation(quote.TotalPence, quote.DurationMinutes,
		availMinutes, b.VoucherMinutesUsed, b.CreditUsedPence)

	if plan.CreditDeltaPence > 0 {
		availCredit, err := s.credits.AvailablePence(ctx, req.UserID, now)
		if err != nil {
			return nil, err
		}
		if availCredit < plan.CreditDeltaPence {
			membership, err := s.memberships.GetByUserID(ctx, req.UserID)
			if err != nil {
				return nil, err
			}
			// No writes have happened yet; drop the row locks before
			// the gateway round-trip so an external outage cannot pin
			// the booking row or the overlap range.
			_ = tx.Rollback()
			pr, err := s.requestPayment(ctx, membership, plan.CreditDeltaPence-availCredit, map[string]string{
				metaPurpose:  purposeUpdate,
				"booking_id": strconv.FormatUint(req.BookingID, 10),
				"user_id":    strconv.FormatUint(req.UserID, 10),
				"room_id":    strconv.FormatUint(req.RoomID, 10),
				"date":       req.Date,
				"start":      req.Start,
				"end":        req.End,
			})
			if err != nil {
				return nil, err
			}
			return &UpdateOutcome{Payment: pr}, nil
		}
	}

	switch {
	case plan.VoucherDeltaMinutes > 0:
		if err := s.vouchers.UseTx(ctx, tx, req.UserID, plan.VoucherDeltaMinutes, now); err != nil {
			return nil, err
		}
	case plan.VoucherDeltaMinutes < 0:
		if err := s.vouchers.ReleaseTx(ctx, tx, req.UserID, -plan.VoucherDeltaMinutes); err != nil {
			return nil, err
		}
	}
	switch {
	case plan.CreditDeltaPence > 0:
		if _, err := s.credits.UseTx(ctx, tx, req.UserID, plan.CreditDeltaPence, now); err != nil {
			return nil, err
		}
	case plan.CreditDeltaPence < 0:
		if err := s.credits.ReleaseTx(ctx, tx, req.UserID, -plan.CreditDeltaPence); err != nil {
			return nil, err
		}
	}

	b.RoomID = room.ID
	b.Date = req.Date
	b.StartMinute = quote.StartMinute
	b.EndMinute = quote.EndMinute
	b.PricePerHourPence = quote.RatePerHourPence
	b.TotalPricePence = quote.TotalPence
	b.CreditUsedPence = plan.CreditTargetPence
	b.VoucherMinutesUsed = plan.VoucherTargetMinutes
	if err := s.bookings.UpdateSlotTx(ctx, tx, b); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	s.notifyConfirmed(b, room)
	return &UpdateOutcome{Booking: b}, nil
}

// UpdateSettled mirrors CreateSettled for the booking_update flow.
func (s *BookingService) UpdateSettled(ctx context.Context, req UpdateRequest, intentID string, amountPence int64) (*model.Booking, error) {
	if err := s.grantDifference(ctx, req.UserID, intentID, amountPence); err != nil {
		return nil, err
	}
	outcome, err := s.Update(ctx, req)
	if err != nil {
		s.revokeDifference(ctx, req.UserID, intentID)
		return nil, err
	}
	if outcome.Payment != nil {
		s.revokeDifference(ctx, req.UserID, intentID)
		return nil, validationf("payment of %d pence no longer covers the booking shortfall", amountPence)
	}
	return outcome.Booking, nil
}

// Cancel transitions a confirmed booking to cancelled and refunds the
// credit it actually consumed as a fresh manual grant expiring at the
// end of the booking's own month.  Voucher minutes are deliberately not
// returned: free-hour allocations are use-it-or-lose-it.  Status change
// and refund commit in the same transaction.
func (s *BookingService) Cancel(ctx context.Context, bookingID, userID uint64) error {
	now := time.Now().In(pricing.London())

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

	b, err := s.bookings.GetForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		return err
	}
	if b.UserID != userID {
		return repository.ErrForbidden
	}
	if b.Status != model.BookingStatusConfirmed {
		return repository.ErrConflict
	}
	if err := checkLockout(b, now); err != nil {
		return err
	}

	if err := s.bookings.CancelTx(ctx, tx, b.ID); err != nil {
		return err
	}
	refund := b.CreditUsedPence
	if refund > 0 {
		bookingDay, err := pricing.ParseDate(b.Date)
		if err != nil {
			return err
		}
		_, err = s.credits.GrantTx(ctx, tx, userID, refund,
			dateOnly(now), endOfMonth(bookingDay),
			model.CreditSourceManual, nil,
			fmt.Sprintf("refund for cancelled booking on %s", b.Date))
		if err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	room, roomErr := s.rooms.GetByID(ctx, b.RoomID)
	if roomErr != nil {
		log.Printf("booking-service: load room for cancellation notice: %v", roomErr)
		return nil
	}
	ev := queue.BookingCancelledEvent{
		BookingID:   b.ID,
		UserID:      b.UserID,
		RoomName:    room.Name,
		Location:    room.Location,
		Date:        b.Date,
		StartTime:   minuteClock(b.StartMinute),
		EndTime:     minuteClock(b.EndMinute),
		RefundPence: refund,
		CancelledAt: now.Format(time.RFC3339),
	}
	go func() {
		if err := queue.PublishBookingCancelled(context.Background(), ev); err != nil {
			log.Printf("booking-service: publish cancellation notice: %v", err)
		}
	}()
	return nil
}

// checkEligibility enforces membership rules: the member must not be
// past their suspension date for the booking's date, and ad-hoc members
// must currently be inside their paid period.
func (s *BookingService) checkEligibility(m *model.Membership, date string, now time.Time) error {
	day, err := pricing.ParseDate(date)
	if err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	if m.SuspensionDate != nil && day.After(dateOnly(m.SuspensionDate.In(pricing.London()))) {
		return validationf("membership is suspended from %s", m.SuspensionDate.Format("2006-01-02"))
	}
	if m.Type == model.MembershipTypeAdHoc {
		today := dateOnly(now)
		if m.SubscriptionStartDate == nil || m.SubscriptionEndDate == nil {
			return validationf("ad-hoc membership has no active subscription period")
		}
		start := dateOnly(m.SubscriptionStartDate.In(pricing.London()))
		end := dateOnly(m.SubscriptionEndDate.In(pricing.London()))
		if today.Before(start) || today.After(end) {
			return validationf("ad-hoc subscription is not within its paid period")
		}
	}
	return nil
}

// checkBookingWindow enforces the temporal validity rules in London
// civil time: the date must not be in the past, the start must be
// strictly in the future, and the date must be at most one calendar
// month ahead.
func checkBookingWindow(date string, startMinute int, now time.Time) error {
	startAt, err := startAtLondon(date, startMinute)
	if err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	today := dateOnly(now)
	day := dateOnly(startAt)
	if day.Before(today) {
		return validationf("booking date %s is in the past", date)
	}
	if !startAt.After(now) {
		return validationf("booking start must be in the future")
	}
	if day.After(today.AddDate(0, 1, 0)) {
		return validationf("bookings can be made at most one month ahead")
	}
	return nil
}

// checkLockout enforces the 24-hour modification window before the
// booking's local start time.
func checkLockout(b *model.Booking, now time.Time) error {
	startAt, err := startAtLondon(b.Date, b.StartMinute)
	if err != nil {
		return err
	}
	if !now.Before(startAt.Add(-24 * time.Hour)) {
		return ErrTooLateToModify
	}
	return nil
}

// requestPayment creates a payment intent for the shortfall, attaching
// the routing metadata the webhook handler reads back.  A fresh uuid is
// used as the idempotency key so caller retries of the same HTTP
// request cannot double-charge.
func (s *BookingService) requestPayment(ctx context.Context, m *model.Membership, shortfallPence int64, metadata map[string]string) (*PaymentRequired, error) {
	if s.gateway == nil {
		return nil, validationf("insufficient credit and no payment gateway is configured")
	}
	intent, err := s.gateway.CreatePaymentIntent(ctx, payment.IntentRequest{
		AmountPence:    shortfallPence,
		Currency:       s.currency,
		CustomerID:     m.StripeCustomerID,
		Metadata:       metadata,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}
	return &PaymentRequired{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		AmountPence:     intent.AmountPence,
	}, nil
}

// grantDifference books the settled card amount into the credit ledger
// as a pay_difference grant expiring at the end of the current month.
// The intent id is the dedup key: a retried webhook finds the existing
// grant and does nothing.
func (s *BookingService) grantDifference(ctx context.Context, userID uint64, intentID string, amountPence int64) error {
	has, err := s.credits.HasCreditForSource(ctx, userID, intentID)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	now := time.Now().In(pricing.London())
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	sid := intentID
	_, err = s.credits.GrantTx(ctx, tx, userID, amountPence,
		dateOnly(now), endOfMonth(now),
		model.CreditSourcePayDifference, &sid,
		"card payment for booking shortfall")
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// revokeDifference undoes a pay_difference grant after a failed
// settlement retry.  A grant that was already partially consumed is
// left alone (ErrRevokeConsumed) and logged for manual follow-up.
func (s *BookingService) revokeDifference(ctx context.Context, userID uint64, intentID string) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("booking-service: begin revoke tx: %v", err)
		return
	}
	if _, err := s.credits.RevokeTx(ctx, tx, userID, intentID); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, repository.ErrRevokeConsumed) {
			log.Printf("booking-service: grant for intent %s already consumed, not revoked", intentID)
			return
		}
		log.Printf("booking-service: revoke grant for intent %s: %v", intentID, err)
		return
	}
	if err := tx.Commit(); err != nil {
		log.Printf("booking-service: commit revoke for intent %s: %v", intentID, err)
	}
}

// notifyConfirmed publishes the confirmation event without awaiting the
// broker: notification failure is logged but never affects the already
// committed financial transaction.
func (s *BookingService) notifyConfirmed(b *model.Booking, room *model.Room) {
	ev := queue.BookingConfirmedEvent{
		BookingID:          b.ID,
		UserID:             b.UserID,
		RoomID:             b.RoomID,
		RoomName:           room.Name,
		Location:           room.Location,
		Date:               b.Date,
		StartTime:          minuteClock(b.StartMinute),
		EndTime:            minuteClock(b.EndMinute),
		TotalPricePence:    b.TotalPricePence,
		CreditUsedPence:    b.CreditUsedPence,
		VoucherMinutesUsed: b.VoucherMinutesUsed,
		ConfirmedAt:        time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		if err := queue.PublishBookingConfirmed(context.Background(), ev); err != nil {
			log.Printf("booking-service: publish confirmation notice: %v", err)
		}
	}()
}

func minuteClock(m int) string { return fmt.Sprintf("%02d:%02d", m/60, m%60) }
