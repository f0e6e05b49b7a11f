// Package config provides configuration loading and management for caseflow.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meridianlegal/caseflow/casedata"
	"github.com/meridianlegal/caseflow/sol"
)

// Config represents the complete caseflow configuration
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`
	NATS      NATSConfig      `yaml:"nats"`
	Registry  RegistryConfig  `yaml:"registry"`
	SOL       sol.Config      `yaml:"statute_of_limitations"`
	Adapter   AdapterConfig   `yaml:"adapter"`
	Migration MigrationConfig `yaml:"migration"`
	Watch     WatchConfig     `yaml:"watch"`
}

// WorkspaceConfig configures where case records live
type WorkspaceConfig struct {
	// Path is the workspace root containing cases/ (default: current directory)
	Path string `yaml:"path"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server)
	URL string `yaml:"url"`
	// Embedded indicates whether to use embedded NATS
	Embedded bool `yaml:"embedded"`
}

// RegistryConfig configures the phase catalog
type RegistryConfig struct {
	// Path is a YAML catalog file (empty = built-in catalog)
	Path string `yaml:"path"`
}

// AdapterConfig configures case record reading
type AdapterConfig struct {
	Retry casedata.RetryConfig `yaml:"retry"`
}

// MigrationConfig configures the batch migration runner
type MigrationConfig struct {
	// Concurrency bounds parallel case processing
	Concurrency int `yaml:"concurrency"`
}

// WatchConfig configures the workspace watcher
type WatchConfig struct {
	// DebounceDelay is how long to wait for more changes before re-deriving
	DebounceDelay time.Duration `yaml:"debounce_delay"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Path: "", // Current directory
		},
		NATS: NATSConfig{
			URL:      "",
			Embedded: true,
		},
		Registry: RegistryConfig{
			Path: "", // Built-in catalog
		},
		SOL:     sol.DefaultConfig(),
		Adapter: AdapterConfig{Retry: casedata.DefaultRetryConfig()},
		Migration: MigrationConfig{
			Concurrency: 8,
		},
		Watch: WatchConfig{
			DebounceDelay: 500 * time.Millisecond,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := c.SOL.Validate(); err != nil {
		return fmt.Errorf("statute_of_limitations: %w", err)
	}
	if c.Adapter.Retry.MaxAttempts < 1 {
		return fmt.Errorf("adapter.retry.max_attempts must be at least 1")
	}
	if c.Migration.Concurrency < 1 {
		return fmt.Errorf("migration.concurrency must be at least 1")
	}
	if c.Watch.DebounceDelay <= 0 {
		return fmt.Errorf("watch.debounce_delay must be positive")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Workspace
	if other.Workspace.Path != "" {
		c.Workspace.Path = other.Workspace.Path
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}

	// Registry
	if other.Registry.Path != "" {
		c.Registry.Path = other.Registry.Path
	}

	// SOL
	if len(other.SOL.Years) > 0 {
		c.SOL.Years = other.SOL.Years
	}
	if other.SOL.DefaultYears != 0 {
		c.SOL.DefaultYears = other.SOL.DefaultYears
	}
	if other.SOL.CriticalDays != 0 {
		c.SOL.CriticalDays = other.SOL.CriticalDays
	}
	if other.SOL.UrgentDays != 0 {
		c.SOL.UrgentDays = other.SOL.UrgentDays
	}
	if other.SOL.WarningDays != 0 {
		c.SOL.WarningDays = other.SOL.WarningDays
	}

	// Adapter
	if other.Adapter.Retry.MaxAttempts != 0 {
		c.Adapter.Retry.MaxAttempts = other.Adapter.Retry.MaxAttempts
	}
	if other.Adapter.Retry.BackoffBase != 0 {
		c.Adapter.Retry.BackoffBase = other.Adapter.Retry.BackoffBase
	}
	if other.Adapter.Retry.BackoffMultiplier != 0 {
		c.Adapter.Retry.BackoffMultiplier = other.Adapter.Retry.BackoffMultiplier
	}

	// Migration
	if other.Migration.Concurrency != 0 {
		c.Migration.Concurrency = other.Migration.Concurrency
	}

	// Watch
	if other.Watch.DebounceDelay != 0 {
		c.Watch.DebounceDelay = other.Watch.DebounceDelay
	}
}
