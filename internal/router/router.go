package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/oakwell/room-booking/internal/handler"
	"github.com/oakwell/room-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  The health check is used by load
// balancers to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers unauthenticated browse endpoints.  Guests
// can see the room catalogue before signing up.
func RegisterPublic(e *echo.Echo, rooms *handler.RoomHandler) {
	e.GET("/v1/rooms", rooms.List)
}

// RegisterMember registers member-facing booking and balance endpoints
// under /v1, protected by JWT authentication.  Admins pass the role
// check too so staff can exercise the member surface while testing.
func RegisterMember(e *echo.Echo, b *handler.BookingHandler, bal *handler.BalanceHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(middleware.RoleMember, middleware.RoleAdmin))

	g.POST("/bookings", b.Create)
	g.GET("/bookings", b.List)
	g.GET("/bookings/:id", b.Get)
	g.PATCH("/bookings/:id", b.Update)
	g.DELETE("/bookings/:id", b.Cancel)
	g.GET("/balance", bal.Get)
}

// RegisterAdmin registers staff-only endpoints under /v1/admin.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(middleware.RoleAdmin))

	g.POST("/credits", a.GrantCredit)
	g.POST("/credits/:id/refund", a.RefundCredit)
	g.POST("/vouchers", a.GrantVoucher)
	g.POST("/bookings", a.CreateBooking)
	g.POST("/memberships/:id/customer", a.LinkCustomer)
	g.POST("/memberships/:id/terminate", a.Terminate)
}

// RegisterWebhooks registers the payment processor callback.  No JWT:
// the handler authenticates the request by its webhook signature.
func RegisterWebhooks(e *echo.Echo, w *handler.WebhookHandler) {
	e.POST("/v1/webhooks/stripe", w.Handle)
}
