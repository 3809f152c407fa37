package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"

	"drone-dashboard-proxy/internal/assets"
	"drone-dashboard-proxy/internal/client"
	"drone-dashboard-proxy/internal/config"
	"drone-dashboard-proxy/internal/handler"
	"drone-dashboard-proxy/internal/metrics"
	"drone-dashboard-proxy/internal/middleware"
	"drone-dashboard-proxy/internal/service"
	"drone-dashboard-proxy/web"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("drone-dashboard"),
		kong.Description("Serves the drone dashboard and proxies /api to the VelociDrone API."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(appOptions(&cli)).Run()
}

func appOptions(cli *config.CLI) fx.Option {
	return fx.Options(
		fx.Provide(
			func() *config.CLI { return cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			newMetrics,
			newEcho,
			newAssetStore,
			client.NewUpstreamClient,
			service.NewProxyService,
			handler.NewProxyHandler,
			handler.NewStaticHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterRoutes, warnConfigPermissions, startServer),
	)
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

func newMetrics(cfg *config.Config) *metrics.Metrics {
	return metrics.New(cfg.Proxy.Prefix, config.HealthzPath, config.StatusPath, cfg.Metrics.Path)
}

func newAssetStore(cfg *config.Config) *assets.Store {
	return assets.New(web.Dist(), cfg.Static.SPAFallback)
}

// newEcho registers every middleware with Pre so that it also wraps the proxy
// dispatcher, which runs ahead of the router.
func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Inbound timeouts to mitigate slow-client attacks.
	e.Server.ReadTimeout = 30 * time.Second
	// WriteTimeout is disabled (0) so long upstream responses are not cut off.
	// The upstream client timeout bounds them instead.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Pre(echomw.Recover())
	e.Pre(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Pre(middleware.RequestLogger(logger, config.HealthzPath))
	if cfg.Metrics.Enabled {
		e.Pre(middleware.MetricsMiddleware(m))
	}

	limit := cfg.Server.BodyLimitBytes()
	e.Pre(echomw.BodyLimit(fmt.Sprintf("%dB", limit)))
	logger.Debug("request body limit", "limit", humanize.Bytes(limit))

	// Only real preflights are answered locally; a plain OPTIONS request under
	// the proxy prefix still goes upstream.
	e.Pre(echomw.CORSWithConfig(echomw.CORSConfig{
		Skipper: func(c echo.Context) bool {
			req := c.Request()
			return req.Method != http.MethodOptions || req.Header.Get(echo.HeaderAccessControlRequestMethod) == ""
		},
		AllowOrigins: []string{"*"},
	}))
	e.Pre(middleware.AllowAnyOrigin())

	return e
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("pointing to upstream API", "url", cfg.Upstream.BaseURL, "prefix", cfg.Proxy.Prefix)
			logger.Info("server running",
				"addr", addr,
				"url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port),
				"config", cfg.FilePath(),
			)
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
