package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/oakwell/room-booking/internal/middleware"
	"github.com/oakwell/room-booking/internal/repository"
	"github.com/oakwell/room-booking/internal/service"
)

// getUserID extracts the authenticated user id placed in the context by
// the JWT middleware.
func getUserID(c echo.Context) (uint64, error) {
	if v, ok := c.Get(middleware.ContextUserID).(uint64); ok && v != 0 {
		return v, nil
	}
	return 0, errors.New("no user in context")
}

// writeServiceError maps errors from the service and repository layers
// to HTTP responses.  Validation problems are 400; contested state
// (slot taken, lockout window, insufficient funds detected inside the
// commit transaction) is 409; the rest follow the usual not-found and
// forbidden conventions.
func writeServiceError(c echo.Context, err error) error {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Reason})
	}
	var ice *repository.InsufficientCreditError
	if errors.As(err, &ice) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":           "insufficient credit",
			"requested_pence": ice.RequestedPence,
			"available_pence": ice.AvailablePence,
		})
	}
	var ive *repository.InsufficientVoucherError
	if errors.As(err, &ive) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":             "insufficient voucher balance",
			"requested_minutes": ive.RequestedMinutes,
			"available_minutes": ive.AvailableMinutes,
		})
	}
	switch {
	case errors.Is(err, service.ErrSlotUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "slot unavailable"})
	case errors.Is(err, service.ErrTooLateToModify):
		return c.JSON(http.StatusConflict, echo.Map{"error": "bookings cannot change within 24 hours of the start time"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflicting booking state"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, repository.ErrRoomNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
	case errors.Is(err, repository.ErrMembershipNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "membership not found"})
	default:
		c.Logger().Errorf("internal error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
