package handler

import (
	"io"
	"log/slog"
	"testing"

	"drone-dashboard-proxy/internal/client"
	"drone-dashboard-proxy/internal/config"
	"drone-dashboard-proxy/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Upstream: config.UpstreamConfig{
			BaseURL:         baseURL,
			TimeoutSeconds:  10,
			IdleConnections: 10,
		},
		Proxy:   config.ProxyConfig{Prefix: "/api"},
		Metrics: config.MetricsConfig{Path: "/metrics"},
	}
}

// newTestProxyService creates a ProxyService forwarding /api to baseURL.
func newTestProxyService(t *testing.T, cfg *config.Config) *service.ProxyService {
	t.Helper()
	logger := discardLogger()
	svc, err := service.NewProxyService(client.NewUpstreamClient(cfg, logger, nil), cfg, logger)
	if err != nil {
		t.Fatalf("NewProxyService: %v", err)
	}
	return svc
}
