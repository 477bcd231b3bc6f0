// Package config loads the optional connector configuration file.
//
// The file is named by the --config flag or the RED_CONNECTOR_HTTP_CONFIG
// environment variable. There is no discovery: without either, defaults
// apply.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "RED_CONNECTOR_HTTP_CONFIG"

// Config is the connector configuration.
type Config struct {
	Log   LogConfig   `yaml:"log"`
	HTTP  HTTPConfig  `yaml:"http"`
	SSH   SSHConfig   `yaml:"ssh"`
	Mount MountConfig `yaml:"mount"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is auto (text on a terminal, JSON otherwise), text or json.
	Format string `yaml:"format"`
}

// HTTPConfig tunes the HTTP transport.
type HTTPConfig struct {
	// ConnectTimeout and ReadTimeout bound document fetches and sends.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`

	// CAFile is a PEM bundle appended to the system roots.
	CAFile string `yaml:"ca_file"`

	// Compression advertises zstd and gzip encodings. Nil means true.
	Compression *bool `yaml:"compression"`

	UserAgent string `yaml:"user_agent"`
}

// SSHConfig configures sftp and scp transfers.
type SSHConfig struct {
	KnownHosts string `yaml:"known_hosts"`
}

// MountConfig names the external executables used by mount-dir and
// umount-dir.
type MountConfig struct {
	HTTPDirFS  string `yaml:"httpdirfs"`
	FuserMount string `yaml:"fusermount"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	compression := true
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		HTTP: HTTPConfig{
			ConnectTimeout: 10 * time.Second,
			ReadTimeout:    60 * time.Second,
			Compression:    &compression,
			UserAgent:      "red-connector-http",
		},
	}
}

// CompressionEnabled reports the effective compression setting.
func (c *Config) CompressionEnabled() bool {
	return c.HTTP.Compression == nil || *c.HTTP.Compression
}

// Load reads the file at path, or at $RED_CONNECTOR_HTTP_CONFIG when path
// is empty. With neither set it returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("log.format must be auto, text or json, got %q", c.Log.Format)
	}
	if c.HTTP.ConnectTimeout <= 0 {
		return fmt.Errorf("http.connect_timeout must be positive")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("http.read_timeout must be positive")
	}
	return nil
}
