package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/treat_shop/pkg/logging"
)

// Authenticated reads the session cookie and reports whether it verifies.
func (a *Authenticator) Authenticated(c echo.Context) bool {
	ck, err := c.Cookie(CookieName)
	if err != nil || ck.Value == "" {
		return false
	}
	return a.Verify(ck.Value) == nil
}

// RequireAdmin rejects the request with 401 before the wrapped handler runs.
func (a *Authenticator) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ck, err := c.Cookie(CookieName)
		if err != nil || ck.Value == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
		}
		if err := a.Verify(ck.Value); err != nil {
			logging.FromContext(c.Request().Context()).Warn("admin_auth_failed", "status", 401, "error", err)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
		}
		c.Set("admin", true)
		return next(c)
	}
}
