package csrf

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/treat_shop/pkg/logging"
)

type Config struct {
	// AllowedOrigins are accepted in addition to the request's own host.
	AllowedOrigins []string
	// RequireOrigin rejects unsafe requests that carry neither Origin nor Referer.
	RequireOrigin bool
}

// SameOrigin rejects state-changing requests whose Origin (or Referer)
// does not match the serving host. Safe methods pass through.
func SameOrigin(cfg Config) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			allowed[strings.ToLower(u.Scheme+"://"+u.Host)] = struct{}{}
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			origin := req.Header.Get(echo.HeaderOrigin)
			if origin == "" {
				origin = req.Header.Get("Referer")
			}
			if origin == "" {
				if cfg.RequireOrigin {
					return reject(c, "missing origin")
				}
				return next(c)
			}

			u, err := url.Parse(origin)
			if err != nil || u.Host == "" {
				return reject(c, "unparseable origin")
			}
			if strings.EqualFold(u.Host, req.Host) && strings.EqualFold(u.Scheme, c.Scheme()) {
				return next(c)
			}
			if _, ok := allowed[strings.ToLower(u.Scheme+"://"+u.Host)]; ok {
				return next(c)
			}
			return reject(c, "cross-origin request")
		}
	}
}

func reject(c echo.Context, reason string) error {
	logging.FromContext(c.Request().Context()).Warn("csrf_rejected",
		"status", 403,
		"reason", reason,
		"path", c.Path(),
	)
	return echo.NewHTTPError(http.StatusForbidden, "invalid origin")
}
