// Package config provides the configuration structure for the studio
// client.
package config

import (
	"fmt"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Persistence backend names.
const (
	BackendFile = "file"
	BackendNATS = "nats"
)

// Defaults applied when the configuration leaves a field unset.
const (
	defaultTimeoutSeconds = 60
	defaultBackend        = BackendFile
)

// ServiceConfig holds the connection settings for the studio service.
type ServiceConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (c ServiceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PersistConfig selects and parameterizes the snapshot/archive backend.
type PersistConfig struct {
	Backend string `toml:"backend"`
	DataDir string `toml:"data_dir"`
}

// NATSConfig holds the configuration for the NATS-backed blob store.
type NATSConfig struct {
	URL    string `toml:"url"`
	Bucket string `toml:"bucket"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	PreviewDir  string `toml:"preview_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Service ServiceConfig `toml:"service"`
	Persist PersistConfig `toml:"persist"`
	NATS    NATSConfig    `toml:"nats"`
	Paths   PathsConfig   `toml:"paths"`
}

// Load loads the configuration for the studio client and applies
// defaults for unset fields.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Service.TimeoutSeconds <= 0 {
		c.Service.TimeoutSeconds = defaultTimeoutSeconds
	}

	if c.Persist.Backend == "" {
		c.Persist.Backend = defaultBackend
	}
}
