package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/treat_shop/internal/catalog"
	"github.com/Skotchmaster/treat_shop/internal/checkout"
	"github.com/Skotchmaster/treat_shop/internal/domain"
	"github.com/Skotchmaster/treat_shop/internal/transport"
	"github.com/Skotchmaster/treat_shop/pkg/logging"
)

type Checkout interface {
	Create(ctx context.Context, req checkout.Request) (string, error)
}

type CheckoutHTTP struct {
	Svc Checkout
	// BaseURL is the public origin used for the post-payment redirect. Empty
	// means the request's own origin.
	BaseURL string
}

func (h *CheckoutHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.create")

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		l.Warn("checkout_failed", "status", 400, "reason", "unreadable body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := transport.Validate(transport.CheckoutSchema, body); err != nil {
		l.Warn("checkout_failed", "status", 400, "reason", "schema", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid checkout request")
	}
	var req transport.CheckoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		l.Warn("checkout_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	items := make([]checkout.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, checkout.Item{PriceID: it.PriceID, Quantity: it.Quantity})
	}
	base := h.BaseURL
	if base == "" {
		base = c.Scheme() + "://" + c.Request().Host
	}

	url, err := h.Svc.Create(ctx, checkout.Request{
		Items:    items,
		Delivery: catalog.DeliveryKind(req.DeliveryMethod),
		BaseURL:  base,
	})
	if err != nil {
		var unavailable *domain.ItemsUnavailableError
		switch {
		case errors.As(err, &unavailable):
			l.Warn("checkout_failed", "status", 409, "reason", "items unavailable", "items", unavailable.Items)
			return c.JSON(http.StatusConflict, transport.UnavailableResponse{
				Error:            "Some items are no longer available",
				UnavailableItems: unavailable.Items,
			})
		case errors.Is(err, domain.ErrValidation):
			l.Warn("checkout_failed", "status", 400, "reason", "invalid items", "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, "invalid checkout request")
		default:
			l.Error("checkout_failed", "status", 500, "reason", "payment link failed", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to create payment link")
		}
	}

	l.Info("checkout_success")
	return c.JSON(http.StatusOK, transport.CheckoutResponse{URL: url})
}
