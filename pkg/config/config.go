// Package config loads horizon settings from <data dir>/config.yaml with
// environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stefanpenner/horizon/pkg/store"
)

// FileName is the config file inside the data dir.
const FileName = "config.yaml"

// Environment overrides.
const (
	EnvDir      = "HORIZON_DIR"
	EnvRemote   = "HORIZON_REMOTE"
	EnvDebounce = "HORIZON_DEBOUNCE"
	EnvLogLevel = "HORIZON_LOG_LEVEL"
)

// Config holds client and server settings.
type Config struct {
	// Dir is the data dir. It is never read from the file itself.
	Dir string `yaml:"-"`

	RemoteURL     string        `yaml:"remote_url"`
	RemoteTimeout time.Duration `yaml:"remote_timeout"`
	Debounce      time.Duration `yaml:"debounce"`
	// RetryRate caps outgoing saves per second; zero means unlimited.
	RetryRate float64 `yaml:"retry_rate"`
	LogLevel  string  `yaml:"log_level"`

	Server Server `yaml:"server"`
}

// Server configures horizond.
type Server struct {
	Addr           string  `yaml:"addr"`
	Backend        string  `yaml:"backend"`
	DSN            string  `yaml:"dsn"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// Default returns the built-in settings for dir.
func Default(dir string) Config {
	return Config{
		Dir:           dir,
		RemoteTimeout: 10 * time.Second,
		Debounce:      400 * time.Millisecond,
		LogLevel:      "info",
		Server: Server{
			Addr:           ":8080",
			Backend:        "sqlite",
			DSN:            filepath.Join(dir, "server.db"),
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
	}
}

// Load resolves the data dir (explicit dir, then HORIZON_DIR, then the OS
// default), reads its config file if present and applies environment
// overrides. A missing file is not an error.
func Load(dir string) (Config, error) {
	if dir == "" {
		dir = os.Getenv(EnvDir)
	}
	if dir == "" {
		dir = store.DefaultDataDir()
	}
	cfg := Default(dir)

	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
		cfg.Dir = dir
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvRemote); v != "" {
		c.RemoteURL = v
	}
	if v := os.Getenv(EnvDebounce); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDebounce, err)
		}
		c.Debounce = d
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate rejects settings that cannot work.
func (c Config) Validate() error {
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative, got %s", c.Debounce)
	}
	if c.RetryRate < 0 {
		return fmt.Errorf("retry_rate must not be negative, got %v", c.RetryRate)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level for LogLevel.
func (c Config) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// ParseLevel maps debug, info, warn and error (any case) to slog levels. An
// empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Save writes cfg to its data dir.
func Save(cfg Config) error {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", cfg.Dir, err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(filepath.Join(cfg.Dir, FileName), data, 0o644)
}
