// config.go - Configuration management for the pool daemon
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the daemon configuration
type Config struct {
	// Ledger settings
	TreeDepth       int `json:"tree_depth"`
	RootHistory     int `json:"root_history"`
	BlockTimeTarget int `json:"block_time_target_seconds"`

	// File paths
	KeyDir  string `json:"key_dir"`
	DataDir string `json:"data_dir"`

	// HTTP API
	ListenAddr string `json:"listen_addr"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Proof verification
	MaxConcurrency  int  `json:"max_concurrency"`
	EnableAggregate bool `json:"enable_aggregate"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		TreeDepth:       32,
		RootHistory:     100,
		BlockTimeTarget: 12,
		KeyDir:          "keys",
		DataDir:         "data",
		ListenAddr:      "127.0.0.1:8470",
		LogLevel:        "info",
		LogFile:         "",
		MaxConcurrency:  4,
		EnableAggregate: false,
	}
}

// LoadConfig loads configuration from file or creates default
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		var config Config
		if err := json.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
		return &config, nil
	}

	config := DefaultConfig()
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}
	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.TreeDepth <= 0 || c.TreeDepth > 63 {
		return fmt.Errorf("tree_depth must be in [1, 63]")
	}
	if c.RootHistory <= 0 {
		return fmt.Errorf("root_history must be positive")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must be set")
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be positive")
	}
	return nil
}
