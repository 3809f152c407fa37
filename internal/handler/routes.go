package handler

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"drone-dashboard-proxy/internal/config"
	"drone-dashboard-proxy/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
//
// Proxy dispatch runs as the last pre-router middleware: echo's router only
// knows a fixed method set, and the upstream must see every method.
// Everything outside the prefix goes through the router, which falls back to
// the static handler.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, proxy *ProxyHandler, static *StaticHandler, health *HealthHandler, m *metrics.Metrics) {
	e.Pre(Dispatch(cfg.Proxy.Prefix, proxy.Handle))

	e.GET(config.HealthzPath, health.Healthz)
	e.GET(config.StatusPath, health.Status)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	e.Any("/*", static.Serve)
}

// Dispatch sends requests whose path is prefix, or lies under prefix/, to h
// and lets every other request continue to the router.
func Dispatch(prefix string, h echo.HandlerFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := c.Request().URL.EscapedPath()
			if p == prefix || strings.HasPrefix(p, prefix+"/") {
				return h(c)
			}
			return next(c)
		}
	}
}
