package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/oakwell/room-booking/internal/pricing"
	"github.com/oakwell/room-booking/internal/repository"
)

// BalanceHandler reports a member's spendable position: credit totals
// grouped by expiry month plus remaining voucher minutes.
type BalanceHandler struct {
	Credits  *repository.CreditRepo
	Vouchers *repository.VoucherRepo
}

// NewBalanceHandler constructs a BalanceHandler.
func NewBalanceHandler(credits *repository.CreditRepo, vouchers *repository.VoucherRepo) *BalanceHandler {
	if credits == nil || vouchers == nil {
		panic("nil repository passed to NewBalanceHandler")
	}
	return &BalanceHandler{Credits: credits, Vouchers: vouchers}
}

// Get handles GET /v1/balance.
func (h *BalanceHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	now := time.Now().In(pricing.London())

	credit, err := h.Credits.Balance(ctx, userID, now)
	if err != nil {
		return writeServiceError(c, err)
	}
	minutes, err := h.Vouchers.AvailableMinutes(ctx, userID, now)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"credit":          credit,
		"voucher_minutes": minutes,
	})
}
