package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Scan     ScanConfig   `yaml:"scan"`
	Device   DeviceConfig `yaml:"device"`
	Audio    AudioConfig  `yaml:"audio"`
	LogLevel string       `yaml:"log_level"`
}

// ScanConfig holds discovery settings.
type ScanConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// DeviceConfig holds per-connection tuning overrides. Zero values fall
// back to the built-in defaults.
type DeviceConfig struct {
	CommandTimeout time.Duration `yaml:"command_timeout"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	SetupRetries   int           `yaml:"setup_retries"`
	SetupBackoff   time.Duration `yaml:"setup_backoff"`
	WiFiTimeout    time.Duration `yaml:"wifi_timeout"`
}

// AudioConfig holds capture output settings.
type AudioConfig struct {
	SampleRate uint32 `yaml:"sample_rate"`
	Channels   uint32 `yaml:"channels"`
	OutputDir  string `yaml:"output_dir"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "wearlink")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Timeout: 10 * time.Second,
		},
		Device: DeviceConfig{
			CommandTimeout: 5 * time.Second,
			SettleDelay:    500 * time.Millisecond,
			SetupRetries:   3,
			SetupBackoff:   time.Second,
			WiFiTimeout:    5 * time.Second,
		},
		Audio: AudioConfig{
			SampleRate: 8000,
			Channels:   1,
			OutputDir:  ".",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Scan.Timeout <= 0 {
		return fmt.Errorf("scan.timeout must be > 0")
	}

	if c.Device.CommandTimeout <= 0 {
		return fmt.Errorf("device.command_timeout must be > 0")
	}

	if c.Device.SetupRetries < 1 {
		return fmt.Errorf("device.setup_retries must be >= 1")
	}

	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}

	if c.Audio.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}

	if c.Audio.OutputDir == "" {
		return fmt.Errorf("audio.output_dir must not be empty")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParseLogLevel maps a config log level string to a slog.Level.
// Unknown values default to info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
