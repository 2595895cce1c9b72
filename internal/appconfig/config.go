// Package appconfig manages application configuration and runtime file paths.
package appconfig

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/treykane/gostly/internal/util"
)

const appDirName = "gostly"

// EngineConfig controls how the gost binary is found and run.
type EngineConfig struct {
	Binary   string `yaml:"binary"`
	LogLevel string `yaml:"log_level"`
}

// PollConfig holds the dashboard polling cadence.
type PollConfig struct {
	ServiceSeconds     int `yaml:"service_seconds"`
	RouterSeconds      int `yaml:"router_seconds"`
	ListTimeoutSeconds int `yaml:"list_timeout_seconds"`
}

// RouterConfig holds host router defaults.
type RouterConfig struct {
	DefaultAddr      string `yaml:"default_addr"`
	FallbackUpstream string `yaml:"fallback_upstream"`
}

// BridgeConfig describes the websocket bridge between the dashboard/CLI and a
// running `gostly serve` daemon.
type BridgeConfig struct {
	URL    string `yaml:"url"`
	Listen string `yaml:"listen"`
	Token  string `yaml:"token"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Config holds application-level configuration.
type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Poll   PollConfig   `yaml:"poll"`
	Router RouterConfig `yaml:"router"`
	Bridge BridgeConfig `yaml:"bridge"`
	Log    LogConfig    `yaml:"log"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Engine: EngineConfig{LogLevel: "info"},
		Poll: PollConfig{
			ServiceSeconds:     int(util.ServicePollInterval / time.Second),
			RouterSeconds:      int(util.RouterPollInterval / time.Second),
			ListTimeoutSeconds: int(util.ListTimeout / time.Second),
		},
		Router: RouterConfig{DefaultAddr: util.DefaultRouterAddr},
		Bridge: BridgeConfig{
			URL:    "ws://127.0.0.1:7878/bridge",
			Listen: "127.0.0.1:7878",
		},
		Log: LogConfig{Level: "info"},
	}
}

// ServiceInterval returns the engine status poll interval.
func (c Config) ServiceInterval() time.Duration {
	return time.Duration(c.Poll.ServiceSeconds) * time.Second
}

// RouterInterval returns the host router poll interval.
func (c Config) RouterInterval() time.Duration {
	return time.Duration(c.Poll.RouterSeconds) * time.Second
}

// ListTimeout returns the bounded wait for profile listing.
func (c Config) ListTimeout() time.Duration {
	return time.Duration(c.Poll.ListTimeoutSeconds) * time.Second
}

// SlogLevel maps log.level to a slog.Level; unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConfigDir returns the application config directory path.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/gostly.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return filepath.Join(home, ".config", appDirName), nil
}

func pathIn(name string) (string, error) {
	d, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, name), nil
}

// ConfigFilePath returns the full path to config.yaml.
func ConfigFilePath() (string, error) { return pathIn("config.yaml") }

// DatabasePath returns the full path to the local SQLite database.
func DatabasePath() (string, error) { return pathIn("gostly.db") }

// LogFilePath is where the dashboard writes its own logs.
func LogFilePath() (string, error) { return pathIn("gostly.log") }

// EngineDir holds the rendered per-profile engine configs.
func EngineDir() (string, error) { return pathIn("engine") }

// Load reads config.yaml from the config directory.
// If the file doesn't exist, creates it with defaults.
func Load() (Config, error) {
	d, err := ConfigDir()
	if err != nil {
		return Config{}, err
	}
	if err := os.MkdirAll(d, 0o700); err != nil {
		return Config{}, err
	}
	path := filepath.Join(d, "config.yaml")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if err := Save(cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return Config{}, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	normalize(&cfg)
	return cfg, nil
}

func normalize(cfg *Config) {
	def := Default()
	if cfg.Poll.ServiceSeconds <= 0 {
		cfg.Poll.ServiceSeconds = def.Poll.ServiceSeconds
	}
	if cfg.Poll.RouterSeconds <= 0 {
		cfg.Poll.RouterSeconds = def.Poll.RouterSeconds
	}
	if cfg.Poll.ListTimeoutSeconds <= 0 {
		cfg.Poll.ListTimeoutSeconds = def.Poll.ListTimeoutSeconds
	}
	if _, err := util.ParsePortOnlyAddr(cfg.Router.DefaultAddr); err != nil {
		cfg.Router.DefaultAddr = def.Router.DefaultAddr
	}
	switch strings.ToLower(cfg.Engine.LogLevel) {
	case "debug", "info", "warn", "error":
		cfg.Engine.LogLevel = strings.ToLower(cfg.Engine.LogLevel)
	default:
		cfg.Engine.LogLevel = def.Engine.LogLevel
	}
	if strings.TrimSpace(cfg.Bridge.Listen) == "" {
		cfg.Bridge.Listen = def.Bridge.Listen
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = def.Log.Level
	}
}

// Save writes config to config.yaml.
func Save(cfg Config) error {
	d, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d, 0o700); err != nil {
		return err
	}
	path := filepath.Join(d, "config.yaml")
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	// The bridge token may live here.
	return os.WriteFile(path, b, 0o600)
}
