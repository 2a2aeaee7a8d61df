// Package config loads kiosk configuration from KIOSK_* environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable name.
const Prefix = "KIOSK"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Kiosk     KioskConfig
	Browser   BrowserConfig
	Logging   LogConfig
	RateLimit RateLimitConfig `split_words:"true"`
	Ngrok     NgrokConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `split_words:"true" default:"localhost"`
	Port int    `split_words:"true" default:"8080"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// KioskConfig holds view lifecycle and idle settings.
type KioskConfig struct {
	CatalogPath      string        `split_words:"true" default:"configs/pages.yaml"`
	RecordPath       string        `split_words:"true" default:"data/kiosk.json"`
	IdleTimeout      time.Duration `split_words:"true" default:"60s"`
	LoadTimeout      time.Duration `split_words:"true" default:"15s"`
	SettleDelay      time.Duration `split_words:"true" default:"100ms"`
	MaskDelay        time.Duration `split_words:"true" default:"100ms"`
	TeardownTimeout  time.Duration `split_words:"true" default:"5s"`
	URLRetryAttempts int           `split_words:"true" default:"10"`
	URLRetryDelay    time.Duration `split_words:"true" default:"100ms"`
	SweepInterval    time.Duration `split_words:"true" default:"10s"`
	HostWidth        int           `split_words:"true" default:"1920"`
	HostHeight       int           `split_words:"true" default:"1080"`
}

// BrowserConfig holds the native browser settings.
type BrowserConfig struct {
	Headless    bool   `split_words:"true" default:"false"`
	UserDataDir string `split_words:"true" default:"data/browser"`
	Install     bool   `split_words:"true" default:"false"`
	Channel     string `split_words:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `split_words:"true" default:"info"`
	Development bool   `split_words:"true" default:"false"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64 `split_words:"true" default:"20"`
	Burst             int     `split_words:"true" default:"40"`
	Enabled           bool    `split_words:"true" default:"true"`
}

// NgrokConfig holds the optional operator tunnel settings.
type NgrokConfig struct {
	Enabled   bool   `split_words:"true" default:"false"`
	AuthToken string `split_words:"true"`
	Domain    string `split_words:"true"`
}

// Load loads configuration from environment variables, e.g.
// KIOSK_SERVER_PORT or KIOSK_KIOSK_IDLE_TIMEOUT.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the kiosk cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	case c.Kiosk.IdleTimeout <= 0:
		return fmt.Errorf("idle timeout must be positive, got %s", c.Kiosk.IdleTimeout)
	case c.Kiosk.LoadTimeout <= 0:
		return fmt.Errorf("load timeout must be positive, got %s", c.Kiosk.LoadTimeout)
	case c.Kiosk.HostWidth <= 0 || c.Kiosk.HostHeight <= 0:
		return fmt.Errorf("invalid host size %dx%d", c.Kiosk.HostWidth, c.Kiosk.HostHeight)
	case c.Kiosk.CatalogPath == "":
		return fmt.Errorf("catalog path is required")
	}
	return nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "localhost", Port: 8080},
		Kiosk: KioskConfig{
			CatalogPath:      "configs/pages.yaml",
			RecordPath:       "data/kiosk.json",
			IdleTimeout:      60 * time.Second,
			LoadTimeout:      15 * time.Second,
			SettleDelay:      100 * time.Millisecond,
			MaskDelay:        100 * time.Millisecond,
			TeardownTimeout:  5 * time.Second,
			URLRetryAttempts: 10,
			URLRetryDelay:    100 * time.Millisecond,
			SweepInterval:    10 * time.Second,
			HostWidth:        1920,
			HostHeight:       1080,
		},
		Browser: BrowserConfig{UserDataDir: "data/browser"},
		Logging: LogConfig{Level: "info"},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
	}
}
