// Package config loads and watches the timervault YAML config file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	yaml "go.yaml.in/yaml/v3"

	logx "timervault/pkg/logx"
)

// DefaultPath is used when no --config flag is given. A missing file at the
// default path is not an error; built-in defaults apply.
const DefaultPath = "./timervault.yaml"

type Config struct {
	// LogPath is the append-only operation log file.
	LogPath string `yaml:"log_path"`

	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`

	// Console is a pointer so "omitted" (default true) is distinguishable
	// from an explicit false.
	Console *bool      `yaml:"console,omitempty"`
	File    FileConfig `yaml:"file"`
}

type FileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Listen is the Prometheus scrape endpoint address, e.g. ":9464".
	Listen string `yaml:"listen"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogPath: "./timervault.oplog",
		Logging: LoggingConfig{Level: "info"},
		Metrics: MetricsConfig{Listen: ":9464"},
	}
}

// Load reads and validates the config at path. A missing file at DefaultPath
// falls back to Default(); a missing file anywhere else is an error.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultPath {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(b)
}

func parse(b []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.LogPath) == "" {
		return fmt.Errorf("config: log_path must not be empty")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: unknown logging.level %q", c.Logging.Level)
	}
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Listen) == "" {
		return fmt.Errorf("config: metrics.listen is required when metrics are enabled")
	}
	return nil
}

// Logx maps the logging section onto the logx configuration.
func (c *Config) Logx() logx.Config {
	console := true
	if c.Logging.Console != nil {
		console = *c.Logging.Console
	}
	return logx.Config{
		Level:   c.Logging.Level,
		Console: console,
		File: logx.FileConfig{
			Enabled: c.Logging.File.Enabled,
			Path:    c.Logging.File.Path,
		},
	}
}
