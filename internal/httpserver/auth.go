package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/treat_shop/internal/auth"
	"github.com/Skotchmaster/treat_shop/internal/domain"
	"github.com/Skotchmaster/treat_shop/internal/transport"
	"github.com/Skotchmaster/treat_shop/pkg/logging"
)

type AuthHTTP struct {
	Auth *auth.Authenticator
}

func (h *AuthHTTP) Post(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.auth")

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		l.Warn("admin_auth_failed", "status", 400, "reason", "unreadable body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := transport.Validate(transport.AuthSchema, body); err != nil {
		l.Warn("admin_auth_failed", "status", 400, "reason", "schema", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid action")
	}
	var req transport.AuthRequest
	if err := json.Unmarshal(body, &req); err != nil {
		l.Warn("admin_auth_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if req.Action == "logout" {
		c.SetCookie(h.Auth.ClearCookie())
		l.Info("logout_success")
		return c.JSON(http.StatusOK, echo.Map{"success": true})
	}

	session, err := h.Auth.Login(ctx, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			l.Warn("login_failed", "status", 400, "reason", "password missing", "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, "password is required")
		case errors.Is(err, domain.ErrInvalidCredentials):
			l.Warn("login_failed", "status", 401, "reason", "invalid password", "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid password")
		default:
			l.Error("login_failed", "status", 500, "reason", "cannot create session", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot create session")
		}
	}

	c.SetCookie(h.Auth.Cookie(session))
	l.Info("login_success")
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *AuthHTTP) Check(c echo.Context) error {
	return c.JSON(http.StatusOK, transport.AuthStatusResponse{Authenticated: h.Auth.Authenticated(c)})
}
