package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// FileEnvVar names the environment variable holding an optional
// configuration file path.
const FileEnvVar = "CONFIG_FILE"

// overlayFile merges the file named by CONFIG_FILE into cfg. Values present
// in the file take precedence over environment variables. The format is
// chosen by extension: .yaml/.yml or .toml.
func overlayFile(cfg *Config) error {
	path := os.Getenv(FileEnvVar)
	if path == "" {
		return nil
	}
	return LoadFile(path, cfg)
}

// LoadFile merges the configuration file at path into cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse yaml config %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse toml config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q: want .yaml, .yml, or .toml", filepath.Ext(path))
	}
	return nil
}
