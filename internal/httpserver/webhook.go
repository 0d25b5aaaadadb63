package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/treat_shop/internal/domain"
	"github.com/Skotchmaster/treat_shop/pkg/logging"
)

const signatureHeader = "Stripe-Signature"

type Webhooks interface {
	Handle(ctx context.Context, payload []byte, sigHeader string) error
}

type WebhookHTTP struct {
	Svc Webhooks
}

// Processing failures answer 500 so the provider redelivers the event.
func (h *WebhookHTTP) Stripe(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "webhook.stripe")

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBytes))
	if err != nil {
		l.Warn("webhook_failed", "status", 400, "reason", "unreadable body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	sig := c.Request().Header.Get(signatureHeader)
	if sig == "" {
		l.Warn("webhook_failed", "status", 400, "reason", "missing signature header")
		return echo.NewHTTPError(http.StatusBadRequest, "missing stripe-signature header")
	}

	if err := h.Svc.Handle(ctx, payload, sig); err != nil {
		switch {
		case errors.Is(err, domain.ErrSignatureInvalid):
			l.Warn("webhook_failed", "status", 400, "reason", "signature verification failed", "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, "webhook signature verification failed")
		case errors.Is(err, domain.ErrValidation):
			l.Warn("webhook_failed", "status", 400, "reason", "malformed event", "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, "malformed event")
		default:
			l.Error("webhook_failed", "status", 500, "reason", "processing failed", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "webhook processing failed")
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
