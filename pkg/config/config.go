// Package config provides configuration loading and management for sarseq.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel work
		NumCores int `yaml:"numCores"`

		// Looks is the equivalent number of looks of the input imagery
		Looks float64 `yaml:"looks"`

		// Significance is the p-value threshold for declaring a change
		Significance float64 `yaml:"significance"`

		// MedianFilter enables a 3x3 median pass over p-value maps
		MedianFilter bool `yaml:"medianFilter"`
	} `yaml:"processing"`

	// Storage parameters for the p-value matrix
	Storage struct {
		// Backend selects the p-value store: "memory" or "disk"
		Backend string `yaml:"backend"`

		// Dir is the directory for the disk-backed store
		Dir string `yaml:"dir"`
	} `yaml:"storage"`

	// Registration parameters used when inputs are not co-registered
	Registration struct {
		// Subset is the window of the first image that everything is
		// aligned to, as offset and extent in pixels
		Subset struct {
			X0   int `yaml:"x0"`
			Y0   int `yaml:"y0"`
			Cols int `yaml:"cols"`
			Rows int `yaml:"rows"`
		} `yaml:"subset"`
	} `yaml:"registration"`

	// Output parameters
	Output struct {
		// Verbose controls the level of progress output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.Looks = 1.0
	cfg.Processing.Significance = 0.01
	cfg.Processing.MedianFilter = false

	cfg.Storage.Backend = "memory"
	cfg.Storage.Dir = "pvstore"

	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
