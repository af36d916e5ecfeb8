// Package config provides configuration structures for the query service.
package config

import (
	"fmt"
	"time"
)

// Config represents the server configuration.
type Config struct {
	// Server settings
	Address         string        `yaml:"address" json:"address"`
	MetastorePath   string        `yaml:"metastore_path" json:"metastore_path"`
	LogLevel        string        `yaml:"log_level" json:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Result materialization limits
	MaxResultRows int `yaml:"max_result_rows" json:"max_result_rows"`
	StoredRowCap  int `yaml:"stored_row_cap" json:"stored_row_cap"`

	// Target database timeouts
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// MetricsConfig represents metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
	Path    string `yaml:"path" json:"path"`
}

// Validate validates the configuration and fills defaults.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address is required")
	}
	if c.MetastorePath == "" {
		return fmt.Errorf("metastore path is required")
	}

	if c.MaxResultRows <= 0 {
		c.MaxResultRows = 1000
	}
	if c.StoredRowCap <= 0 {
		c.StoredRowCap = 100
	}
	if c.StoredRowCap > c.MaxResultRows {
		c.StoredRowCap = c.MaxResultRows
	}

	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Minute
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Minute
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	return nil
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:         "0.0.0.0:8080",
		MetastorePath:   "querypilot.db",
		LogLevel:        "info",
		ShutdownTimeout: 30 * time.Second,
		MaxResultRows:   1000,
		StoredRowCap:    100,
		ConnectTimeout:  10 * time.Second,
		ReadTimeout:     5 * time.Minute,
		WriteTimeout:    5 * time.Minute,
		Metrics: MetricsConfig{
			Enabled: true,
			Address: ":9090",
			Path:    "/metrics",
		},
	}
}
