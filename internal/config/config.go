// Package config loads the daemon configuration from the user's XDG
// directory. Configuration is optional: any problem loading or validating it
// warns and falls back to defaults rather than stopping the daemon.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAcceleration = 1.0
	defaultDragEndDelay = 0 * time.Millisecond
	defaultResponseTime = 5 * time.Millisecond
	defaultLogFile      = "stdout"
	defaultLogLevel     = "info"

	configDirName  = "linux-3-finger-drag"
	configFileName = "3fd-config.json"
)

// Config holds the resolved runtime configuration.
type Config struct {
	// Acceleration scales every motion delta.
	Acceleration float64
	// DragEndDelay is the trailing-hold window after a gesture ends.
	DragEndDelay time.Duration
	// ResponseTime is the minimum interval between motion emissions.
	ResponseTime time.Duration
	// LogFile is a file path, or "stdout" for console logging.
	LogFile string
	// LogLevel is one of off, error, warn, info, debug, trace.
	LogLevel string
}

// fileConfig is the on-disk shape. Durations are plain milliseconds. The
// file has always been JSON; YAML parses that unchanged, so YAML syntax is
// accepted too. Unknown fields are ignored.
type fileConfig struct {
	Acceleration *float64 `yaml:"acceleration"`
	DragEndDelay *float64 `yaml:"dragEndDelay"`
	ResponseTime *float64 `yaml:"responseTime"`
	LogFile      *string  `yaml:"logFile"`
	LogLevel     *string  `yaml:"logLevel"`
}

// Default returns the configuration used when no file can be loaded.
func Default() Config {
	return Config{
		Acceleration: defaultAcceleration,
		DragEndDelay: defaultDragEndDelay,
		ResponseTime: defaultResponseTime,
		LogFile:      defaultLogFile,
		LogLevel:     defaultLogLevel,
	}
}

// DefaultPath returns the XDG location of the config file.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, configDirName, configFileName), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", errors.New("neither $XDG_CONFIG_HOME nor $HOME is set")
	}
	return filepath.Join(home, ".config", configDirName, configFileName), nil
}

// Load reads and validates the file at path. Missing fields keep their
// defaults; callers fall back to Default() entirely when an error is
// returned.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := Default()
	if fc.Acceleration != nil {
		cfg.Acceleration = *fc.Acceleration
	}
	if fc.DragEndDelay != nil {
		cfg.DragEndDelay = millis(*fc.DragEndDelay)
	}
	if fc.ResponseTime != nil {
		cfg.ResponseTime = millis(*fc.ResponseTime)
	}
	if fc.LogFile != nil && *fc.LogFile != "" {
		cfg.LogFile = *fc.LogFile
	}
	if fc.LogLevel != nil && *fc.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(*fc.LogLevel))
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate rejects values the daemon cannot run with.
func validate(cfg Config) error {
	if cfg.Acceleration <= 0 {
		return fmt.Errorf("acceleration must be positive, got %g", cfg.Acceleration)
	}
	if cfg.DragEndDelay < 0 {
		return fmt.Errorf("dragEndDelay must be non-negative, got %s", cfg.DragEndDelay)
	}
	if cfg.ResponseTime < 0 {
		return fmt.Errorf("responseTime must be non-negative, got %s", cfg.ResponseTime)
	}
	switch cfg.LogLevel {
	case "off", "error", "warn", "info", "debug", "trace":
	default:
		return fmt.Errorf("logLevel must be one of off/error/warn/info/debug/trace, got %q", cfg.LogLevel)
	}
	return nil
}

// millis converts a millisecond count from the config file to a duration.
func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
