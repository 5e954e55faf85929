// Package config loads the relogin service configuration from a TOML
// file, merged over built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/bvisser/relogin/internal/logging"
)

// Config is the merged relogin configuration.
type Config struct {
	Site     SiteConfig     `toml:"site"`
	Data     DataConfig     `toml:"data"`
	Browser  BrowserConfig  `toml:"browser"`
	Session  SessionConfig  `toml:"session"`
	HTTP     HTTPConfig     `toml:"http"`
	Logging  LoggingConfig  `toml:"logging"`
}

type SiteConfig struct {
	BaseURL    string `toml:"baseUrl"`    // Target site root, e.g. https://www.example-site.com
	TablesFile string `toml:"tablesFile"` // Optional dialect table override file (YAML)
}

type DataConfig struct {
	Dir            string `toml:"dir"`            // Data root (empty = ~/.relogin)
	RetentionHours int    `toml:"retentionHours"` // Artifact bundles older than this are ignored
}

type BrowserConfig struct {
	AutoDownload bool   `toml:"autoDownload"` // Download Chromium if missing
	Headless     bool   `toml:"headless"`
	NoSandbox    bool   `toml:"noSandbox"` // Needed for Docker/root
	Stealth      bool   `toml:"stealth"`
	Timeout      string `toml:"timeout"`     // Default page action timeout, e.g. "30s"
	TypeDelayMs  int    `toml:"typeDelayMs"` // Per-character typing delay
}

type SessionConfig struct {
	SecondFactorTimeout string `toml:"secondFactorTimeout"` // Suspended session teardown, e.g. "30m"
	ProbeTimeout        string `toml:"probeTimeout"`        // Per-selector visibility wait, e.g. "2s"
	SubmitWait          string `toml:"submitWait"`          // Wait for submit to leave busy state
	SettleDelay         string `toml:"settleDelay"`         // Inter-step settling delay
}

type HTTPConfig struct {
	Listen string `toml:"listen"`
}

type LoggingConfig struct {
	Level      string `toml:"level"` // error, warn, info, debug
	ShowCaller bool   `toml:"showCaller"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL: "https://www.example-site.com",
		},
		Data: DataConfig{
			RetentionHours: 168, // 7 days
		},
		Browser: BrowserConfig{
			AutoDownload: true,
			Headless:     true,
			Stealth:      true,
			Timeout:      "30s",
			TypeDelayMs:  80,
		},
		Session: SessionConfig{
			SecondFactorTimeout: "30m",
			ProbeTimeout:        "2s",
			SubmitWait:          "10s",
			SettleDelay:         "1s",
		},
		HTTP: HTTPConfig{
			Listen: "127.0.0.1:8743",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path (empty = ~/.relogin/relogin.toml) and
// merges it over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, ".relogin", "relogin.toml")
		}
	}

	if path != "" {
		var fileCfg Config
		if _, err := toml.DecodeFile(path, &fileCfg); err == nil {
			if err := mergo.Merge(cfg, fileCfg, mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("failed to merge config: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	return cfg, nil
}

// ResolveDataDir returns the data root, defaulting to ~/.relogin.
func (c *Config) ResolveDataDir() string {
	if c.Data.Dir != "" {
		return c.Data.Dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".relogin"
	}
	return filepath.Join(home, ".relogin")
}

// ResolveArtifactsDir returns the artifact bundle directory.
func (c *Config) ResolveArtifactsDir() string {
	return filepath.Join(c.ResolveDataDir(), "artifacts")
}

// ResolveCacheDir returns the per-account browser cache root.
func (c *Config) ResolveCacheDir() string {
	return filepath.Join(c.ResolveDataDir(), "cache")
}

// ResolveBinDir returns the Chromium binary directory.
func (c *Config) ResolveBinDir() string {
	return filepath.Join(c.ResolveDataDir(), "bin")
}

// Retention returns the artifact retention window.
func (c *Config) Retention() time.Duration {
	if c.Data.RetentionHours <= 0 {
		return 168 * time.Hour
	}
	return time.Duration(c.Data.RetentionHours) * time.Hour
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// BrowserTimeout returns the default page action timeout.
func (c *Config) BrowserTimeout() time.Duration {
	return parseDuration(c.Browser.Timeout, 30*time.Second)
}

// TypeDelay returns the per-character typing delay.
func (c *Config) TypeDelay() time.Duration {
	if c.Browser.TypeDelayMs <= 0 {
		return 80 * time.Millisecond
	}
	return time.Duration(c.Browser.TypeDelayMs) * time.Millisecond
}

// SecondFactorTimeout returns how long a suspended session may wait for a
// code before it is torn down.
func (c *Config) SecondFactorTimeout() time.Duration {
	return parseDuration(c.Session.SecondFactorTimeout, 30*time.Minute)
}

// ProbeTimeout returns the per-selector visibility wait.
func (c *Config) ProbeTimeout() time.Duration {
	return parseDuration(c.Session.ProbeTimeout, 2*time.Second)
}

// SubmitWait returns how long to wait for the submit control to become
// clickable.
func (c *Config) SubmitWait() time.Duration {
	return parseDuration(c.Session.SubmitWait, 10*time.Second)
}

// SettleDelay returns the deliberate inter-step delay used to let page
// transitions settle.
func (c *Config) SettleDelay() time.Duration {
	return parseDuration(c.Session.SettleDelay, time.Second)
}

// LogLevel maps the configured level name to the logging package's level.
func (c *Config) LogLevel() int {
	switch c.Logging.Level {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
