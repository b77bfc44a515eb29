package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the yaml config at filePath over the defaults and validates it.
func Load(filePath string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return cfg, nil
}
