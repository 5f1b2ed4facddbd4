// Package config handles application configuration.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/natefinch/atomic"
)

const (
	configFileName = "config.json"

	// DefaultHost is the only interface the API listens on by default.
	DefaultHost = "127.0.0.1"
	// DefaultPort is the port the Studio plugin expects.
	DefaultPort = 4850
)

// Environment overrides.
const (
	EnvPort     = "COMPANION_PORT"
	EnvHost     = "COMPANION_HOST"
	EnvLogLevel = "COMPANION_LOG_LEVEL"
)

// ErrInvalid is wrapped by Validate errors.
var ErrInvalid = errors.New("config: invalid")

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig  `json:"server"`
	Speech   SpeechConfig  `json:"speech"`
	Snap     SnapConfig    `json:"snap"`
	Plugin   PluginConfig  `json:"plugin"`
	History  HistoryConfig `json:"history"`
	LogLevel string        `json:"log_level"`

	path string
}

// ServerConfig is the local HTTP API.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// SpeechConfig controls recognition and synthesis.
type SpeechConfig struct {
	Locale string `json:"locale"`
	// AutoVoice picks the synthesis voice from the language of the text.
	AutoVoice bool `json:"auto_voice"`
}

// SnapConfig controls window docking.
type SnapConfig struct {
	IntervalMS int `json:"interval_ms"`
	Width      int `json:"width"`
	// Hotkey toggles snapping. Empty disables the shortcut.
	Hotkey string `json:"hotkey"`
}

// PluginConfig controls the plugin installer.
type PluginConfig struct {
	// Dir overrides the platform plugins directory.
	Dir string `json:"dir,omitempty"`
	// Watch reinstalls the plugin when it disappears.
	Watch bool `json:"watch"`
}

// HistoryConfig controls the transcript log.
type HistoryConfig struct {
	Enabled  bool `json:"enabled"`
	TTLHours int  `json:"ttl_hours"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: DefaultHost, Port: DefaultPort},
		Speech: SpeechConfig{Locale: "en-US"},
		Snap: SnapConfig{
			IntervalMS: 8,
			Width:      420,
			Hotkey:     "ctrl+shift+s",
		},
		Plugin:   PluginConfig{Watch: true},
		History:  HistoryConfig{Enabled: true, TTLHours: 7 * 24},
		LogLevel: "info",
	}
}

// Dir returns the per-app config directory, e.g.
// ~/Library/Application Support/DetAI.
func Dir(app string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, app), nil
}

// Load loads the configuration for app and applies environment overrides.
// Returns the default config if the file doesn't exist.
func Load(app string) (*Config, error) {
	dir, err := Dir(app)
	if err != nil {
		return nil, err
	}
	return LoadFile(filepath.Join(dir, configFileName))
}

// LoadFile loads the configuration at path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save persists the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.path == "" {
		return errors.New("config: no path to save to")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := atomic.WriteFile(c.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Path returns the config file location.
func (c *Config) Path() string {
	return c.path
}

// Validate checks ranges that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalid, c.Server.Port)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("%w: server.host is empty", ErrInvalid)
	}
	if c.Snap.IntervalMS < 1 {
		return fmt.Errorf("%w: snap.interval_ms must be positive", ErrInvalid)
	}
	if c.Snap.Width < 1 {
		return fmt.Errorf("%w: snap.width must be positive", ErrInvalid)
	}
	if c.History.TTLHours < 1 {
		return fmt.Errorf("%w: history.ttl_hours must be positive", ErrInvalid)
	}
	return nil
}

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// SnapInterval returns the snap poll period.
func (c *Config) SnapInterval() time.Duration {
	return time.Duration(c.Snap.IntervalMS) * time.Millisecond
}

// HistoryTTL returns how long transcripts are kept.
func (c *Config) HistoryTTL() time.Duration {
	return time.Duration(c.History.TTLHours) * time.Hour
}

func (c *Config) applyEnv() {
	c.Server.Host = envStr(EnvHost, c.Server.Host)
	c.Server.Port = envInt(EnvPort, c.Server.Port)
	c.LogLevel = envStr(EnvLogLevel, c.LogLevel)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
