package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/oakwell/room-booking/internal/model"
	"github.com/oakwell/room-booking/internal/payment"
	"github.com/oakwell/room-booking/internal/service"
)

// WebhookHandler receives Stripe events.  The endpoint is
// unauthenticated (Stripe cannot present a member JWT) and trusts the
// webhook signature instead.  Every event passes through the dedup
// store first so Stripe's at-least-once delivery cannot double-settle a
// payment; the ledger's source_id check backs that up.
type WebhookHandler struct {
	Secret        string // webhook signing secret, empty skips verification
	Dedup         *payment.DedupStore
	Bookings      *service.BookingService
	Subscriptions *service.SubscriptionService
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(secret string, dedup *payment.DedupStore, bookings *service.BookingService, subs *service.SubscriptionService) *WebhookHandler {
	if dedup == nil || bookings == nil || subs == nil {
		panic("nil dependency passed to NewWebhookHandler")
	}
	return &WebhookHandler{Secret: secret, Dedup: dedup, Bookings: bookings, Subscriptions: subs}
}

// Handle processes POST /v1/webhooks/stripe.  Unknown event types are
// acknowledged with 200 so Stripe stops redelivering them; processing
// failures return 500 and release the dedup claim so the retry can
// succeed.
func (h *WebhookHandler) Handle(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}

	var event stripe.Event
	if h.Secret != "" {
		event, err = webhook.ConstructEvent(body, c.Request().Header.Get("Stripe-Signature"), h.Secret)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
		}
	} else if err := json.Unmarshal(body, &event); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	ctx := c.Request().Context()
	if !h.Dedup.FirstDelivery(ctx, event.ID) {
		return c.JSON(http.StatusOK, echo.Map{"status": "duplicate"})
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed payment intent"})
		}
		if err := h.settleIntent(c, &pi); err != nil {
			h.Dedup.Forget(ctx, event.ID)
			return writeServiceError(c, err)
		}
	case "invoice.payment_succeeded":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed invoice"})
		}
		if inv.Customer == nil || inv.Customer.ID == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invoice has no customer"})
		}
		paidAt := time.Unix(event.Created, 0)
		if inv.StatusTransitions != nil && inv.StatusTransitions.PaidAt > 0 {
			paidAt = time.Unix(inv.StatusTransitions.PaidAt, 0)
		}
		if err := h.Subscriptions.HandleSubscriptionPayment(ctx, inv.Customer.ID, inv.ID, inv.AmountPaid, paidAt); err != nil {
			h.Dedup.Forget(ctx, event.ID)
			return writeServiceError(c, err)
		}
	default:
		// Acknowledge everything else; only the two settlement events
		// move money.
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "processed"})
}

// settleIntent routes a succeeded payment intent by the purpose we
// stamped into its metadata when the intent was created.
func (h *WebhookHandler) settleIntent(c echo.Context, pi *stripe.PaymentIntent) error {
	ctx := c.Request().Context()
	meta := pi.Metadata

	switch meta["purpose"] {
	case "pay_difference":
		userID, err := strconv.ParseUint(meta["user_id"], 10, 64)
		if err != nil {
			return service.ErrUnroutableIntent
		}
		roomID, err := strconv.ParseUint(meta["room_id"], 10, 64)
		if err != nil {
			return service.ErrUnroutableIntent
		}
		_, err = h.Bookings.CreateSettled(ctx, service.CreateRequest{
			UserID:      userID,
			RoomID:      roomID,
			Date:        meta["date"],
			Start:       meta["start"],
			End:         meta["end"],
			BookingType: bookingTypeOrDefault(meta["booking_type"]),
		}, pi.ID, pi.Amount)
		return err
	case "booking_update":
		bookingID, err := strconv.ParseUint(meta["booking_id"], 10, 64)
		if err != nil {
			return service.ErrUnroutableIntent
		}
		userID, err := strconv.ParseUint(meta["user_id"], 10, 64)
		if err != nil {
			return service.ErrUnroutableIntent
		}
		roomID, err := strconv.ParseUint(meta["room_id"], 10, 64)
		if err != nil {
			return service.ErrUnroutableIntent
		}
		_, err = h.Bookings.UpdateSettled(ctx, service.UpdateRequest{
			BookingID: bookingID,
			UserID:    userID,
			RoomID:    roomID,
			Date:      meta["date"],
			Start:     meta["start"],
			End:       meta["end"],
		}, pi.ID, pi.Amount)
		return err
	default:
		// An intent we did not create (or one created before metadata
		// stamping): nothing to settle.
		return nil
	}
}

func bookingTypeOrDefault(t string) string {
	if t == "" {
		return model.BookingTypeAdHoc
	}
	return t
}
