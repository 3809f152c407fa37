// Package service implements the core proxy forwarding logic.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"drone-dashboard-proxy/internal/client"
	"drone-dashboard-proxy/internal/config"
	"drone-dashboard-proxy/internal/model"
)

// ErrOutsidePrefix is returned when a request path does not sit under the proxy prefix.
var ErrOutsidePrefix = errors.New("path is outside the proxy prefix")

// ProxyService translates inbound requests into upstream requests and
// upstream responses into client responses. It holds no mutable state.
type ProxyService struct {
	client  *client.UpstreamClient
	logger  *slog.Logger
	baseURL string // scheme://host[/path] without a trailing slash
	prefix  string
}

// NewProxyService creates a ProxyService.
func NewProxyService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger) (*ProxyService, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream base_url %q must be absolute", cfg.Upstream.BaseURL)
	}

	return &ProxyService{
		client:  c,
		logger:  logger.With("component", "proxy_service"),
		baseURL: strings.TrimSuffix(cfg.Upstream.BaseURL, "/"),
		prefix:  cfg.Proxy.Prefix,
	}, nil
}

// Forward sends a ProxyRequest upstream and returns the response.
// The caller is responsible for closing the response body.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	upstreamPath, err := s.UpstreamPath(pr.Path)
	if err != nil {
		return nil, err
	}

	target := s.BuildUpstreamURL(upstreamPath, pr.RawQuery)
	header := FilterRequestHeaders(pr.Header)

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"path", pr.Path,
		"upstream_path", upstreamPath,
		"body_bytes", len(pr.Body),
	)

	resp, err := s.client.Send(pr.Ctx, pr.Method, target, header, pr.Body)
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}

	resp.Header = FilterResponseHeaders(resp.Header)
	return resp, nil
}

// UpstreamPath strips the proxy prefix from path. The remainder is empty or
// begins with '/': "/api/races/5" becomes "/races/5" and "/api" becomes "".
func (s *ProxyService) UpstreamPath(path string) (string, error) {
	rest, ok := strings.CutPrefix(path, s.prefix)
	if !ok || (rest != "" && rest[0] != '/') {
		return "", fmt.Errorf("%w: %q", ErrOutsidePrefix, path)
	}
	return rest, nil
}

// BuildUpstreamURL appends upstreamPath and, when present, the raw query
// string to the base URL. The query is copied verbatim.
func (s *ProxyService) BuildUpstreamURL(upstreamPath, rawQuery string) string {
	var b strings.Builder
	b.Grow(len(s.baseURL) + len(upstreamPath) + len(rawQuery) + 1)
	b.WriteString(s.baseURL)
	b.WriteString(upstreamPath)
	if rawQuery != "" {
		b.WriteByte('?')
		b.WriteString(rawQuery)
	}
	return b.String()
}

// Prefix returns the inbound path prefix this service forwards.
func (s *ProxyService) Prefix() string {
	return s.prefix
}

// BaseURL returns the upstream base URL requests are forwarded to.
func (s *ProxyService) BaseURL() string {
	return s.baseURL
}
