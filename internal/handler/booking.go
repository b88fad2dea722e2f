package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/oakwell/room-booking/internal/model"
	"github.com/oakwell/room-booking/internal/repository"
	"github.com/oakwell/room-booking/internal/service"
)

// BookingHandler exposes booking creation, modification, cancellation
// and listing for authenticated members.  Money never moves in this
// layer: the handlers translate HTTP to service calls and map the
// outcome, including the 402 payment-required envelope when part of
// the price needs a card charge.
type BookingHandler struct {
	Bookings *repository.BookingRepo
	Service  *service.BookingService
}

// NewBookingHandler constructs a BookingHandler.  All dependencies must
// be non-nil.
func NewBookingHandler(bookings *repository.BookingRepo, svc *service.BookingService) *BookingHandler {
	if bookings == nil || svc == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings, Service: svc}
}

// bookingView is the response shape for a freshly created or modified
// booking.  Listing endpoints return repository.BookingDetail instead,
// which joins the room name.
type bookingView struct {
	ID                 uint64 `json:"id"`
	RoomID             uint64 `json:"room_id"`
	Date               string `json:"date"`
	StartTime          string `json:"start_time"`
	EndTime            string `json:"end_time"`
	Status             string `json:"status"`
	BookingType        string `json:"booking_type"`
	TotalPricePence    int64  `json:"total_price_pence"`
	CreditUsedPence    int64  `json:"credit_used_pence"`
	VoucherMinutesUsed int    `json:"voucher_minutes_used"`
}

func viewOf(b *model.Booking) bookingView {
	return bookingView{
		ID:                 b.ID,
		RoomID:             b.RoomID,
		Date:               b.Date,
		StartTime:          minuteClock(b.StartMinute),
		EndTime:            minuteClock(b.EndMinute),
		Status:             b.Status,
		BookingType:        b.BookingType,
		TotalPricePence:    b.TotalPricePence,
		CreditUsedPence:    b.CreditUsedPence,
		VoucherMinutesUsed: b.VoucherMinutesUsed,
	}
}

func minuteClock(m int) string { return fmt.Sprintf("%02d:%02d", m/60, m%60) }

type bookingRequest struct {
	RoomID uint64 `json:"room_id"`
	Date   string `json:"date"`  // YYYY-MM-DD
	Start  string `json:"start"` // HH:MM
	End    string `json:"end"`   // HH:MM
}

func (b *bookingRequest) validate() error {
	if b.RoomID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "room_id is required")
	}
	if b.Date == "" || b.Start == "" || b.End == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date, start and end are required")
	}
	return nil
}

// Create handles POST /v1/bookings.  On success it returns 201 with the
// booking; when the member's credit and vouchers do not cover the price
// it returns 402 with a payment intent envelope and creates nothing.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body bookingRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := body.validate(); err != nil {
		return err
	}
	outcome, err := h.Service.Create(c.Request().Context(), service.CreateRequest{
		UserID: userID,
		RoomID: body.RoomID,
		Date:   body.Date,
		Start:  body.Start,
		End:    body.End,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	if outcome.Payment != nil {
		return c.JSON(http.StatusPaymentRequired, outcome.Payment)
	}
	return c.JSON(http.StatusCreated, viewOf(outcome.Booking))
}

// Update handles PATCH /v1/bookings/:id.  The new slot is fully
// re-priced; the response mirrors Create, including the 402 envelope
// when the change needs a card payment.
func (h *BookingHandler) Update(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body bookingRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := body.validate(); err != nil {
		return err
	}
	outcome, err := h.Service.Update(c.Request().Context(), service.UpdateRequest{
		BookingID: bookingID,
		UserID:    userID,
		RoomID:    body.RoomID,
		Date:      body.Date,
		Start:     body.Start,
		End:       body.End,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	if outcome.Payment != nil {
		return c.JSON(http.StatusPaymentRequired, outcome.Payment)
	}
	return c.JSON(http.StatusOK, viewOf(outcome.Booking))
}

// Cancel handles DELETE /v1/bookings/:id.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	if err := h.Service.Cancel(c.Request().Context(), bookingID, userID); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "cancelled"})
}

// List handles GET /v1/bookings and returns the caller's bookings,
// newest first.
func (h *BookingHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Bookings.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": items})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	detail, err := h.Bookings.GetByIDForUser(c.Request().Context(), bookingID, userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}
