// Package config loads and saves the slicehouse configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"slicehouse/pkg/errors"
	"slicehouse/pkg/models"
)

// EnvConfigFile overrides the config file location.
const EnvConfigFile = "SLICEHOUSE_CONFIG"

// Dir returns the configuration directory.
func Dir() string {
	if path := os.Getenv(EnvConfigFile); path != "" {
		return filepath.Dir(path)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".slicehouse")
}

// File returns the configuration file path.
func File() string {
	if path := os.Getenv(EnvConfigFile); path != "" {
		if cleaned, err := cleanPath(path); err == nil {
			return cleaned
		}
	}
	return filepath.Join(Dir(), "config.yaml")
}

// cleanPath rejects relative traversal in user-supplied paths.
func cleanPath(path string) (string, error) {
	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "..") {
		return "", errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("config path %q contains directory traversal", path))
	}
	return cleaned, nil
}

// Load reads the configuration. A missing file yields defaults, not an error.
func Load() (*models.Config, error) {
	path := File()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Defaults(), nil
	}

	data, err := os.ReadFile(path) // #nosec G304 - path is validated
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read config file %s", path))
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse config file")
	}
	return cfg, nil
}

// Save writes the configuration with owner-only permissions.
func Save(cfg *models.Config) error {
	if err := os.MkdirAll(Dir(), 0700); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigPermission, "failed to create config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to marshal config")
	}
	if err := os.WriteFile(File(), data, 0600); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigPermission, "failed to write config file")
	}
	return nil
}

// Exists reports whether a configuration file is present.
func Exists() bool {
	_, err := os.Stat(File())
	return err == nil
}

// Defaults returns the configuration used when no file exists.
func Defaults() *models.Config {
	return &models.Config{
		Data: models.DataConfig{
			Dir:       filepath.Join(Dir(), "data"),
			Seed:      1,
			Customers: 200,
			Days:      90,
			OrdersDay: 60,
		},
		Pipeline: models.PipelineConfig{
			MaxParallel:          4,
			MaxRetries:           2,
			IncrementalThreshold: 0.2,
			DefaultLag:           "5m",
			MetricsAddr:          "",
		},
		Tasks: models.TaskConfig{
			HistorySize: 50,
		},
		Logging: models.LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
