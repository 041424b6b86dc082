package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the viewer cannot start with.
func (c *Config) Validate() error {
	if c.Viewer.TargetWidth < 1 || c.Viewer.TargetHeight < 1 {
		return fmt.Errorf("viewer target size must be positive, got %dx%d", c.Viewer.TargetWidth, c.Viewer.TargetHeight)
	}
	if c.Viewer.Surface < 0.001 || c.Viewer.Surface > 0.5 {
		return fmt.Errorf("viewer surface %g outside [0.001, 0.5]", c.Viewer.Surface)
	}
	if !c.Data.Synthetic && c.Data.Index == "" {
		return fmt.Errorf("data index path is required unless synthetic data is enabled")
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./segview.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "segview")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "segview")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "segview")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "segview")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
