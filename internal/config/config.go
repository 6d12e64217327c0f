// Package config provides unified configuration loading for recallsim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/narrative-recall/internal/cmr"
	"github.com/nvandessel/narrative-recall/internal/landscape"
	"github.com/nvandessel/narrative-recall/internal/recall"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user directory holding the config file and run database.
const DirName = ".recallsim"

// Config contains all recallsim configuration settings.
type Config struct {
	// Landscape contains the activation-spreading model parameters.
	Landscape landscape.Config `json:"landscape" yaml:"landscape"`

	// CMR contains the context maintenance and retrieval parameters.
	CMR cmr.Config `json:"cmr" yaml:"cmr"`

	// Choice contains the recall competition parameters shared by both models.
	Choice recall.ChoiceConfig `json:"choice" yaml:"choice"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Store configures run persistence.
	Store StoreConfig `json:"store" yaml:"store"`
}

// LoggingConfig configures recallsim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables event logging to events.jsonl.
	// "trace" additionally records per-step outcome probabilities.
	Level string `json:"level" yaml:"level"`
}

// StoreConfig configures where simulation runs are saved.
type StoreConfig struct {
	// Path is the directory holding recallsim.db. Empty means ~/.recallsim.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Landscape: landscape.DefaultConfig(),
		CMR:       cmr.DefaultConfig(),
		Choice:    recall.DefaultChoiceConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.recallsim/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, DirName, "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.recallsim/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	if configPath, err := DefaultPath(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadPath loads configuration from an explicit file, then applies
// environment variable overrides.
func LoadPath(path string) (*Config, error) {
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Options the
// file leaves out keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Store.Path = os.ExpandEnv(config.Store.Path)

	return config, nil
}

// Validate checks every recognized option against its accepted range.
func (c *Config) Validate() error {
	if err := c.Landscape.Validate(); err != nil {
		return fmt.Errorf("landscape: %w", err)
	}
	if err := c.CMR.Validate(); err != nil {
		return fmt.Errorf("cmr: %w", err)
	}
	if err := c.Choice.Validate(); err != nil {
		return fmt.Errorf("choice: %w", err)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("%w: invalid log level: %s (valid: info, debug, trace, or empty for default)", recall.ErrInvalidConfig, c.Logging.Level)
	}

	return nil
}

// StoreDir resolves the directory for the run database.
func (c *Config) StoreDir() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Unparseable numbers are ignored.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("RECALLSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("RECALLSIM_DB_PATH"); v != "" {
		config.Store.Path = v
	}

	floatEnv := map[string]*float64{
		"RECALLSIM_CHOICE_SENSITIVITY":      &config.Choice.ChoiceSensitivity,
		"RECALLSIM_STOP_PROBABILITY_SCALE":  &config.Choice.StopProbabilityScale,
		"RECALLSIM_STOP_PROBABILITY_GROWTH": &config.Choice.StopProbabilityGrowth,
	}
	for name, dst := range floatEnv {
		if v := os.Getenv(name); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
}
