package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	LogLevel     string        `yaml:"log_level" default:"info"`
	ScanTimeout  time.Duration `yaml:"scan_timeout" default:"10s"`
	ShowWarnings bool          `yaml:"show_warnings" default:"true"`
	OutputFormat string        `yaml:"output_format" default:"table"` // table, json, csv
}

// Default returns a configuration populated from the struct tag defaults.
func Default() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML configuration file, layering it over the defaults.
// A missing file is not an error; callers get the defaults back.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values that YAML cannot reject on its own.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	switch c.OutputFormat {
	case "table", "json", "csv":
	default:
		return fmt.Errorf("invalid output_format %q, want table, json or csv", c.OutputFormat)
	}
	if c.ScanTimeout <= 0 {
		return fmt.Errorf("scan_timeout must be positive, got %s", c.ScanTimeout)
	}
	return nil
}

// NewLogger creates a logger configured from the config's log level.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
