package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"drone-dashboard-proxy/internal/service"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	proxy   *service.ProxyService
	version Version
	now     func() time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(svc *service.ProxyService, v Version) *HealthHandler {
	return &HealthHandler{proxy: svc, version: v, now: time.Now}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": strconv.FormatInt(h.now().Unix(), 10),
	})
}

// Status returns proxy status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":       "ok",
		"version":      string(h.version),
		"upstream_url": redactURL(h.proxy.BaseURL()),
		"api_prefix":   h.proxy.Prefix(),
	})
}

// redactURL hides any password in the userinfo part of raw.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Redacted()
}
