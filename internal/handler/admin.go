package handler

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/oakwell/room-booking/internal/model"
	"github.com/oakwell/room-booking/internal/pricing"
	"github.com/oakwell/room-booking/internal/repository"
	"github.com/oakwell/room-booking/internal/service"
)

// AdminHandler groups operations reserved for practice staff: manual
// credit and voucher grants, zero-charge bookings on behalf of members,
// and membership termination.
type AdminHandler struct {
	DB            *sql.DB
	Credits       *repository.CreditRepo
	Vouchers      *repository.VoucherRepo
	Memberships   *repository.MembershipRepo
	Bookings      *service.BookingService
	Subscriptions *service.SubscriptionService
}

// NewAdminHandler constructs an AdminHandler.  All dependencies must be
// non-nil.
func NewAdminHandler(db *sql.DB, credits *repository.CreditRepo, vouchers *repository.VoucherRepo, memberships *repository.MembershipRepo, bookings *service.BookingService, subs *service.SubscriptionService) *AdminHandler {
	if db == nil || credits == nil || vouchers == nil || memberships == nil || bookings == nil || subs == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{DB: db, Credits: credits, Vouchers: vouchers, Memberships: memberships, Bookings: bookings, Subscriptions: subs}
}

// GrantCredit handles POST /v1/admin/credits.  It creates a manual
// credit grant for a member, typically a goodwill gesture or an
// off-platform payment.  Expiry defaults to the end of the current
// month when omitted.
func (h *AdminHandler) GrantCredit(c echo.Context) error {
	var body struct {
		UserID      uint64 `json:"user_id"`
		AmountPence int64  `json:"amount_pence"`
		ExpiryDate  string `json:"expiry_date"` // YYYY-MM-DD, optional
		Description string `json:"description"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.UserID == 0 || body.AmountPence <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id and a positive amount_pence are required"})
	}
	now := time.Now().In(pricing.London())
	expiry := endOfMonth(now)
	if body.ExpiryDate != "" {
		d, err := pricing.ParseDate(body.ExpiryDate)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid expiry_date"})
		}
		expiry = d
	}

	ctx := c.Request().Context()
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return writeServiceError(c, err)
	}
	id, err := h.Credits.GrantTx(ctx, tx, body.UserID, body.AmountPence,
		dateOnly(now), expiry, model.CreditSourceManual, nil, body.Description)
	if err != nil {
		_ = tx.Rollback()
		return writeServiceError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"transaction_id": id,
		"expiry_date":    expiry.Format("2006-01-02"),
	})
}

// GrantVoucher handles POST /v1/admin/vouchers.  Hours are accepted as
// minutes so fractional-hour grants stay integral.
func (h *AdminHandler) GrantVoucher(c echo.Context) error {
	var body struct {
		UserID     uint64  `json:"user_id"`
		Minutes    int     `json:"minutes"`
		ExpiryDate string  `json:"expiry_date"` // YYYY-MM-DD
		Reason     *string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.UserID == 0 || body.Minutes <= 0 || body.ExpiryDate == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id, positive minutes and expiry_date are required"})
	}
	expiry, err := pricing.ParseDate(body.ExpiryDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid expiry_date"})
	}
	id, err := h.Vouchers.Grant(c.Request().Context(), body.UserID, body.Minutes, expiry, body.Reason)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"voucher_id": id})
}

// CreateBooking handles POST /v1/admin/bookings.  Staff can book rooms
// on behalf of a member at zero charge (booking_type free) or block a
// room for the practice itself (booking_type internal).
func (h *AdminHandler) CreateBooking(c echo.Context) error {
	var body struct {
		UserID      uint64 `json:"user_id"`
		RoomID      uint64 `json:"room_id"`
		Date        string `json:"date"`
		Start       string `json:"start"`
		End         string `json:"end"`
		BookingType string `json:"booking_type"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.BookingType != model.BookingTypeFree && body.BookingType != model.BookingTypeInternal {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking_type must be free or internal"})
	}
	if body.UserID == 0 || body.RoomID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id and room_id are required"})
	}
	outcome, err := h.Bookings.Create(c.Request().Context(), service.CreateRequest{
		UserID:      body.UserID,
		RoomID:      body.RoomID,
		Date:        body.Date,
		Start:       body.Start,
		End:         body.End,
		BookingType: body.BookingType,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, viewOf(outcome.Booking))
}

// RefundCredit handles POST /v1/admin/credits/:id/refund.  It reverses
// consumption on one specific ledger row, used by staff to correct an
// erroneous deduction.  The amount cannot exceed what the row has
// actually consumed.
func (h *AdminHandler) RefundCredit(c echo.Context) error {
	txID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || txID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction id"})
	}
	var body struct {
		AmountPence int64 `json:"amount_pence"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.AmountPence <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "a positive amount_pence is required"})
	}

	ctx := c.Request().Context()
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return writeServiceError(c, err)
	}
	if err := h.Credits.RefundTx(ctx, tx, txID, body.AmountPence); err != nil {
		_ = tx.Rollback()
		if err == repository.ErrOverRefund {
			return c.JSON(http.StatusConflict, echo.Map{"error": "refund exceeds the consumed amount"})
		}
		if err == repository.ErrCreditNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "credit transaction not found"})
		}
		return writeServiceError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "refunded"})
}

// LinkCustomer handles POST /v1/admin/memberships/:id/customer.  It
// attaches a payment-processor customer to the membership, adopting an
// existing customer with the same email before creating a new one.
func (h *AdminHandler) LinkCustomer(c echo.Context) error {
	membershipID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || membershipID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid membership id"})
	}
	var body struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}
	ctx := c.Request().Context()
	m, err := h.Memberships.GetByID(ctx, membershipID)
	if err != nil {
		return writeServiceError(c, err)
	}
	customerID, err := h.Subscriptions.EnsureCustomer(ctx, m, body.Email, body.Name)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"customer_id": customerID})
}

// Terminate handles POST /v1/admin/memberships/:id/terminate and stamps
// the membership's suspension date per the notice rule.
func (h *AdminHandler) Terminate(c echo.Context) error {
	membershipID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || membershipID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid membership id"})
	}
	suspension, err := h.Subscriptions.Terminate(c.Request().Context(), membershipID, time.Now())
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"suspension_date": suspension.Format("2006-01-02")})
}

// endOfMonth and dateOnly mirror the service helpers for the small
// amount of date arithmetic the admin surface needs.
func endOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location()).AddDate(0, 0, -1)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
