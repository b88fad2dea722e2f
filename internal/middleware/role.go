package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Roles recognised by the booking platform.
const (
	RoleMember = "MEMBER"
	RoleAdmin  = "ADMIN"
)

// RequireRole returns a middleware that enforces that the authenticated
// user's role claim is one of the allowed values.  It assumes JWTAuth
// already ran and stored the role under ContextRole; a missing or
// unexpected role aborts the request with 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(ContextRole).(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
