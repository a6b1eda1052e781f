/*
Package config manages TOML config for phrasestore's server and CLI.

InitConfig handles automatic config file creation and loading with
fallback to defaults. LoadConfig and SaveConfig provide direct file
access for runtime changes. Update allows targeted parameter changes
with persistence.
*/
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// Config holds the entire config structure.
type Config struct {
	Server ServerConfig `toml:"server"`
	Dict   DictConfig   `toml:"dict"`
	CLI    CliConfig    `toml:"cli"`
}

// ServerConfig has IPC server related options (pkg/ipcserver).
type ServerConfig struct {
	// MaxLimit bounds how many candidates a single lookup request may
	// request (request.N is clamped to this).
	MaxLimit int `toml:"max_limit"`
	// MaxReadingLen bounds how many syllables a single reading key in a
	// request may carry, rejecting pathological requests before they
	// reach the dictionary.
	MaxReadingLen int `toml:"max_reading_len"`
}

// DictConfig holds write-buffered dictionary tuning options.
type DictConfig struct {
	// RebuildDebounce is the minimum interval between automatic
	// background flushes triggered while serving requests (see
	// pkg/ipcserver); a manual Flush call is never debounced.
	RebuildDebounce time.Duration `toml:"rebuild_debounce"`
}

// CliConfig holds interactive REPL (cmd/phrasestore-cli) options.
type CliConfig struct {
	DefaultLimit int `toml:"default_limit"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			MaxLimit:      64,
			MaxReadingLen: 16,
		},
		Dict: DictConfig{
			RebuildDebounce: 2 * time.Second,
		},
		CLI: CliConfig{
			DefaultLimit: 10,
		},
	}
}

// InitConfig loads config from file or creates default if missing.
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, err
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := SaveConfig(cfg, configPath); err != nil {
			return nil, err
		}
		log.Debugf("Created default config file at: ( %s )", configPath)
		return cfg, nil
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config, using defaults: %v", err)
		return DefaultConfig(), nil
	}
	return cfg, nil
}

// LoadConfig loads from a TOML file.
func LoadConfig(configPath string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		log.Errorf("Failed to decode config file: %v", err)
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig saves into a TOML file.
func SaveConfig(cfg *Config, configPath string) error {
	file, err := os.Create(configPath)
	if err != nil {
		log.Errorf("Failed to create config file: %v", err)
		return err
	}
	defer file.Close()
	encoder := toml.NewEncoder(file)
	return encoder.Encode(cfg)
}

// Update changes server config values and saves to file.
func (c *Config) Update(configPath string, maxLimit, maxReadingLen *int) error {
	if maxLimit != nil {
		c.Server.MaxLimit = *maxLimit
	}
	if maxReadingLen != nil {
		c.Server.MaxReadingLen = *maxReadingLen
	}
	return SaveConfig(c, configPath)
}
