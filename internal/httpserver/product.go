package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/treat_shop/internal/catalog"
	"github.com/Skotchmaster/treat_shop/internal/domain"
	"github.com/Skotchmaster/treat_shop/internal/models"
	"github.com/Skotchmaster/treat_shop/internal/transport"
	"github.com/Skotchmaster/treat_shop/pkg/logging"
)

type Catalog interface {
	ListPublic(ctx context.Context) ([]models.PublicProduct, error)
	ListAdmin(ctx context.Context) ([]models.AdminProduct, error)
	Get(ctx context.Context, id string) (*models.PublicProduct, error)
	Update(ctx context.Context, id string, patch catalog.Patch) (*models.AdminProduct, error)
	DeliveryPrice(ctx context.Context, kind catalog.DeliveryKind) (string, error)
}

type CatalogHTTP struct {
	Svc Catalog
}

func (h *CatalogHTTP) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_products")

	items, err := h.Svc.ListPublic(ctx)
	if err != nil {
		l.Error("get_products_failed", "status", 500, "reason", "cannot list products", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch products")
	}

	l.Info("get_products_success", "count", len(items))
	return c.JSON(http.StatusOK, items)
}

func (h *CatalogHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_product")

	id := c.Param("id")
	product, err := h.Svc.Get(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrValidation):
			l.Warn("get_product_failed", "status", 404, "reason", "product not found", "product_id", id, "error", err)
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		default:
			l.Error("get_product_failed", "status", 500, "reason", "cannot get product", "product_id", id, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch product")
		}
	}

	return c.JSON(http.StatusOK, product)
}

func (h *CatalogHTTP) AdminProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.get_products")

	items, err := h.Svc.ListAdmin(ctx)
	if err != nil {
		l.Error("admin_get_products_failed", "status", 500, "reason", "cannot list products", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch products")
	}

	l.Info("admin_get_products_success", "count", len(items))
	return c.JSON(http.StatusOK, items)
}

func (h *CatalogHTTP) PatchProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.patch_product")

	id := c.Param("id")
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		l.Warn("product_patch_failed", "status", 400, "reason", "unreadable body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := transport.Validate(transport.PatchProductSchema, body); err != nil {
		l.Warn("product_patch_failed", "status", 400, "reason", "schema", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var req transport.PatchProductRequest
	if err := json.Unmarshal(body, &req); err != nil {
		l.Warn("product_patch_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	prod, err := h.Svc.Update(ctx, id, catalog.Patch{
		Name:          req.Name,
		Description:   req.Description,
		IsUnavailable: req.IsUnavailable,
		Price:         req.Price,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoOp):
			l.Warn("product_patch_failed", "status", 400, "reason", "no fields", "product_id", id)
			return echo.NewHTTPError(http.StatusBadRequest, "no fields to update")
		case errors.Is(err, domain.ErrValidation):
			l.Warn("product_patch_failed", "status", 400, "reason", "invalid field", "product_id", id, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrNotFound):
			l.Warn("product_patch_failed", "status", 404, "reason", "product not found", "product_id", id, "error", err)
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		default:
			l.Error("product_patch_failed", "status", 500, "reason", "provider update failed", "product_id", id, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to update product")
		}
	}

	l.Info("patch_product_success", "product_id", id)
	return c.JSON(http.StatusOK, prod)
}

func (h *CatalogHTTP) deliveryPrice(c echo.Context, kind catalog.DeliveryKind) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "delivery.price", "kind", kind)

	priceID, err := h.Svc.DeliveryPrice(ctx, kind)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			l.Warn("delivery_price_failed", "status", 404, "reason", "no active price", "error", err)
			return echo.NewHTTPError(http.StatusNotFound, "delivery price not found")
		default:
			l.Error("delivery_price_failed", "status", 500, "reason", "cannot resolve price", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch delivery price")
		}
	}
	return c.JSON(http.StatusOK, transport.DeliveryPriceResponse{PriceID: priceID})
}

func (h *CatalogHTTP) LocalDeliveryPrice(c echo.Context) error {
	return h.deliveryPrice(c, catalog.DeliveryLocal)
}

func (h *CatalogHTTP) ShippingPrice(c echo.Context) error {
	return h.deliveryPrice(c, catalog.DeliveryShipping)
}
