package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/Skotchmaster/treat_shop/internal/auth"
	"github.com/Skotchmaster/treat_shop/internal/middleware/csrf"
)

const (
	maxBodyBytes    = 64 << 10
	maxWebhookBytes = 1 << 20
)

type Deps struct {
	Auth            *auth.Authenticator
	CatalogHandler  *CatalogHTTP
	CheckoutHandler *CheckoutHTTP
	WebhookHandler  *WebhookHTTP

	LoginRatePerMinute float64
	LoginBurst         int
	AdminOrigins       []string
}

// loginLimiter throttles admin auth posts per client IP.
func loginLimiter(perMinute float64, burst int) echo.MiddlewareFunc {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = 5
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perMinute / 60),
		Burst:     burst,
		ExpiresIn: 10 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "cannot identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts")
		},
	})
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	api := e.Group("/api")

	sameOrigin := csrf.SameOrigin(csrf.Config{AllowedOrigins: d.AdminOrigins})

	authHTTP := &AuthHTTP{Auth: d.Auth}
	api.POST("/admin/auth", authHTTP.Post, sameOrigin, loginLimiter(d.LoginRatePerMinute, d.LoginBurst))
	api.GET("/admin/auth", authHTTP.Check)

	admin := api.Group("/admin", d.Auth.RequireAdmin, sameOrigin)
	admin.GET("/products", d.CatalogHandler.AdminProducts)
	admin.PATCH("/products/:id", d.CatalogHandler.PatchProduct)

	api.GET("/products", d.CatalogHandler.GetProducts)
	api.GET("/products/:id", d.CatalogHandler.GetProduct)
	api.GET("/delivery/local-price", d.CatalogHandler.LocalDeliveryPrice)
	api.GET("/delivery/shipping-price", d.CatalogHandler.ShippingPrice)

	api.POST("/checkout", d.CheckoutHandler.Create)
	api.POST("/webhooks/stripe", d.WebhookHandler.Stripe)
}
