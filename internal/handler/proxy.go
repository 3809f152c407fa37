package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"

	"github.com/labstack/echo/v4"

	"drone-dashboard-proxy/internal/model"
	"drone-dashboard-proxy/internal/service"
)

// queryPattern matches query strings of URLs embedded in error messages.
// Upstream queries may carry tokens, so they never reach the logs.
var queryPattern = regexp.MustCompile(`\?[^"\s]*`)

// ProxyHandler forwards prefixed requests to the upstream API.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle proxies the request upstream and streams the response back.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		// BodyLimit reports an oversized body as an *echo.HTTPError.
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		h.logger.Warn("reading request body", "err", err, "path", req.URL.Path)
		return c.NoContent(http.StatusBadRequest)
	}

	pr := &model.ProxyRequest{
		Ctx:      req.Context(),
		Method:   req.Method,
		Path:     req.URL.EscapedPath(),
		RawQuery: req.URL.RawQuery,
		Header:   req.Header,
		Body:     body,
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Upstream values replace anything middleware set under the same name.
	header := c.Response().Header()
	for key, vals := range resp.Header {
		header[key] = vals
	}

	c.Response().WriteHeader(resp.StatusCode)

	// The status is already sent, so a mid-stream failure can only truncate
	// the body. Log it and move on.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"path", req.URL.Path,
		)
	}

	return nil
}

// mapError turns a forwarding failure into an empty-bodied response. The
// error text stays in the operator log.
func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	if errors.Is(err, service.ErrOutsidePrefix) {
		return c.NoContent(http.StatusNotFound)
	}

	h.logger.Error("proxy error",
		"err", sanitizeError(err),
		"reason", failureReason(err),
		"method", c.Request().Method,
		"path", c.Request().URL.Path,
	)
	return c.NoContent(http.StatusBadGateway)
}

// failureReason classifies a transport error for the log line.
func failureReason(err error) string {
	var (
		dnsErr *net.DNSError
		netErr net.Error
		urlErr *url.Error
	)
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &dnsErr):
		return "dns"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &urlErr):
		return "connection"
	default:
		return "unknown"
	}
}

// sanitizeError redacts query strings from URLs in error messages.
func sanitizeError(err error) string {
	return queryPattern.ReplaceAllString(err.Error(), "?[REDACTED]")
}
