// Package config handles TOML configuration loading and validation.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	toml "github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/drone-dashboard/config.toml",
	"configs/config.toml",
}

// Routes served by the process itself; the proxy prefix and metrics path may
// not shadow them.
const (
	HealthzPath = "/healthz"
	StatusPath  = "/proxy/status"
)

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config   string           `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Upstream string           `kong:"name='velocidrone-api',short='u',help='Upstream API base URL (overrides config).',env='VELOCIDRONE_API'"`
	Host     string           `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port     int              `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	LogLevel string           `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
	Version  kong.VersionFlag `kong:"help='Print version and exit.'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Proxy    ProxyConfig    `toml:"proxy"`
	Static   StaticConfig   `toml:"static"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path, empty when running on defaults
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`       // 0 means "use default" (3000)
	BodyLimit string `toml:"body_limit"` // human readable, e.g. "10 MB"
}

// UpstreamConfig holds upstream connection settings.
type UpstreamConfig struct {
	BaseURL         string `toml:"base_url"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	IdleConnections int    `toml:"idle_connections"`
}

// ProxyConfig controls which inbound paths are forwarded upstream.
type ProxyConfig struct {
	Prefix string `toml:"prefix"`
}

// StaticConfig controls the embedded asset server.
type StaticConfig struct {
	// SPAFallback serves index.html for unknown extensionless paths.
	SPAFallback bool `toml:"spa_fallback"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file (if any) and applies CLI overrides.
// An explicit path (--config or CONFIG_PATH) must exist. Without one, the
// search paths are tried and built-in defaults are used when none exists.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	p := cli.Config
	if p == "" {
		p = findConfig()
	}
	if p != "" {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", p, err)
		}
		dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", p, err)
		}
		cfg.filePath = p
	}

	cfg.applyCLI(cli)
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Upstream != "" {
		c.Upstream.BaseURL = cli.Upstream
	}
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

// setDefaults fills zero-valued fields. Zero integers mean "unset" because TOML
// cannot distinguish an explicit 0 from an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.BodyLimit == "" {
		c.Server.BodyLimit = "10 MB"
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = "http://localhost:8080"
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 30
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Proxy.Prefix == "" {
		c.Proxy.Prefix = "/api"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// validate reports every problem at once rather than stopping at the first.
func (c *Config) validate() error {
	var err error

	u, perr := url.Parse(c.Upstream.BaseURL)
	switch {
	case perr != nil:
		err = multierr.Append(err, fmt.Errorf("upstream.base_url is not a valid URL: %w", perr))
	case u.Scheme != "http" && u.Scheme != "https":
		err = multierr.Append(err, fmt.Errorf("upstream.base_url must use http or https; got %q", c.Upstream.BaseURL))
	case u.Host == "":
		err = multierr.Append(err, fmt.Errorf("upstream.base_url must include a host; got %q", c.Upstream.BaseURL))
	case u.RawQuery != "" || u.Fragment != "":
		err = multierr.Append(err, fmt.Errorf("upstream.base_url must not carry a query or fragment; got %q", c.Upstream.BaseURL))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("server.port must be 1–65535; got %d", c.Server.Port))
	}
	if _, berr := humanize.ParseBytes(c.Server.BodyLimit); berr != nil {
		err = multierr.Append(err, fmt.Errorf("server.body_limit %q: %w", c.Server.BodyLimit, berr))
	}
	if c.Upstream.TimeoutSeconds < 0 {
		err = multierr.Append(err, fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds))
	}
	if c.Upstream.IdleConnections < 0 {
		err = multierr.Append(err, fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections))
	}

	if perr := validateRoutePath("proxy.prefix", c.Proxy.Prefix); perr != nil {
		err = multierr.Append(err, perr)
	} else if reserved := conflictsWithReserved(c.Proxy.Prefix, HealthzPath, StatusPath); reserved != "" {
		err = multierr.Append(err, fmt.Errorf("proxy.prefix %q conflicts with reserved route %q", c.Proxy.Prefix, reserved))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		err = multierr.Append(err, fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format))
	}

	if c.Metrics.Enabled {
		if perr := validateRoutePath("metrics.path", c.Metrics.Path); perr != nil {
			err = multierr.Append(err, perr)
		} else if reserved := conflictsWithReserved(c.Metrics.Path, HealthzPath, StatusPath, c.Proxy.Prefix); reserved != "" {
			err = multierr.Append(err, fmt.Errorf("metrics.path %q conflicts with reserved route %q", c.Metrics.Path, reserved))
		}
	}

	return err
}

var errRoutePath = errors.New("must start with '/', not end with '/', and be clean")

func validateRoutePath(field, p string) error {
	if p == "" || p[0] != '/' || p == "/" || strings.HasSuffix(p, "/") || path.Clean(p) != p {
		return fmt.Errorf("%s %w; got %q", field, errRoutePath, p)
	}
	return nil
}

// conflictsWithReserved returns the first reserved route that p equals, nests
// under, or contains; empty when there is no overlap.
func conflictsWithReserved(p string, reserved ...string) string {
	for _, r := range reserved {
		if p == r || strings.HasPrefix(p, r+"/") || strings.HasPrefix(r, p+"/") {
			return r
		}
	}
	return ""
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BodyLimitBytes returns the parsed inbound body limit.
// Load has already validated the value.
func (c *ServerConfig) BodyLimitBytes() uint64 {
	n, _ := humanize.ParseBytes(c.BodyLimit)
	return n
}

// Timeout returns the upstream round-trip timeout.
func (c *UpstreamConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FilePath returns the config file that was loaded, or "" for defaults only.
func (c *Config) FilePath() string {
	return c.filePath
}

// WarnPermissions logs a warning if the config file is writable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o022 != 0 {
		logger.Warn("config file is writable by group/others; consider chmod 644",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
