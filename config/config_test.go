package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.NATS.Embedded {
		t.Error("expected embedded NATS by default")
	}
	if cfg.Migration.Concurrency != 8 {
		t.Errorf("expected migration concurrency 8, got %d", cfg.Migration.Concurrency)
	}
	if cfg.SOL.DefaultYears != 2 {
		t.Errorf("expected default SOL period 2 years, got %d", cfg.SOL.DefaultYears)
	}
	if cfg.Adapter.Retry.MaxAttempts != 3 {
		t.Errorf("expected 3 retry attempts, got %d", cfg.Adapter.Retry.MaxAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "zero retry attempts",
			modify:  func(c *Config) { c.Adapter.Retry.MaxAttempts = 0 },
			wantErr: true,
		},
		{
			name:    "zero migration concurrency",
			modify:  func(c *Config) { c.Migration.Concurrency = 0 },
			wantErr: true,
		},
		{
			name:    "zero debounce delay",
			modify:  func(c *Config) { c.Watch.DebounceDelay = 0 },
			wantErr: true,
		},
		{
			name: "inverted SOL thresholds",
			modify: func(c *Config) {
				c.SOL.CriticalDays = 400
				c.SOL.WarningDays = 90
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
workspace:
  path: "/srv/firm/cases"
nats:
  url: "nats://test:4222"
registry:
  path: "catalog.yaml"
statute_of_limitations:
  years:
    motor_vehicle: 3
  default_years: 3
adapter:
  retry:
    max_attempts: 5
    backoff_base: 250ms
migration:
  concurrency: 16
watch:
  debounce_delay: 2s
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Workspace.Path != "/srv/firm/cases" {
		t.Errorf("expected workspace /srv/firm/cases, got %s", cfg.Workspace.Path)
	}
	if cfg.NATS.URL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.NATS.URL)
	}
	if cfg.Registry.Path != "catalog.yaml" {
		t.Errorf("expected registry path catalog.yaml, got %s", cfg.Registry.Path)
	}
	if cfg.SOL.Years["motor_vehicle"] != 3 {
		t.Errorf("expected motor_vehicle period 3, got %d", cfg.SOL.Years["motor_vehicle"])
	}
	if cfg.Adapter.Retry.MaxAttempts != 5 {
		t.Errorf("expected 5 retry attempts, got %d", cfg.Adapter.Retry.MaxAttempts)
	}
	if cfg.Adapter.Retry.BackoffBase != 250*time.Millisecond {
		t.Errorf("expected backoff base 250ms, got %v", cfg.Adapter.Retry.BackoffBase)
	}
	if cfg.Migration.Concurrency != 16 {
		t.Errorf("expected concurrency 16, got %d", cfg.Migration.Concurrency)
	}
	if cfg.Watch.DebounceDelay != 2*time.Second {
		t.Errorf("expected debounce 2s, got %v", cfg.Watch.DebounceDelay)
	}
	// Unset fields keep their defaults.
	if cfg.SOL.CriticalDays != 90 {
		t.Errorf("expected default critical days 90, got %d", cfg.SOL.CriticalDays)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Workspace: WorkspaceConfig{Path: "/override/workspace"},
		NATS:      NATSConfig{URL: "nats://remote:4222"},
		Migration: MigrationConfig{Concurrency: 2},
	}

	base.Merge(override)

	if base.Workspace.Path != "/override/workspace" {
		t.Errorf("expected workspace /override/workspace, got %s", base.Workspace.Path)
	}
	if base.NATS.URL != "nats://remote:4222" {
		t.Errorf("expected NATS URL nats://remote:4222, got %s", base.NATS.URL)
	}
	// Setting a URL turns off the embedded server.
	if base.NATS.Embedded {
		t.Error("expected embedded NATS off after URL override")
	}
	if base.Migration.Concurrency != 2 {
		t.Errorf("expected concurrency 2, got %d", base.Migration.Concurrency)
	}
	// Untouched sections keep their defaults.
	if base.SOL.DefaultYears != 2 {
		t.Errorf("expected SOL default years 2, got %d", base.SOL.DefaultYears)
	}
}

func TestEnsureUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	loader := NewLoader(nil)
	if err := loader.EnsureUserConfig(); err != nil {
		t.Fatalf("EnsureUserConfig() error = %v", err)
	}

	path := filepath.Join(home, UserConfigDir, UserConfigFile)
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("failed to load user config: %v", err)
	}
	if loaded.Migration.Concurrency != DefaultConfig().Migration.Concurrency {
		t.Errorf("expected default concurrency, got %d", loaded.Migration.Concurrency)
	}

	// A second call leaves an existing file alone.
	if err := os.WriteFile(path, []byte("migration:\n  concurrency: 3\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite user config: %v", err)
	}
	if err := loader.EnsureUserConfig(); err != nil {
		t.Fatalf("EnsureUserConfig() second call error = %v", err)
	}
	loaded, err = LoadFromFile(path)
	if err != nil {
		t.Fatalf("failed to reload user config: %v", err)
	}
	if loaded.Migration.Concurrency != 3 {
		t.Errorf("expected existing config preserved, got concurrency %d", loaded.Migration.Concurrency)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Workspace.Path = "/srv/firm"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	// Verify file was created
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	// Load and verify
	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Workspace.Path != "/srv/firm" {
		t.Errorf("expected workspace /srv/firm, got %s", loaded.Workspace.Path)
	}
}
