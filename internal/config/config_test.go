package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/narrative-recall/internal/cmr"
	"github.com/nvandessel/narrative-recall/internal/landscape"
	"github.com/nvandessel/narrative-recall/internal/recall"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	config := Default()

	if config.Landscape != landscape.DefaultConfig() {
		t.Errorf("unexpected landscape defaults: %+v", config.Landscape)
	}
	if config.CMR != cmr.DefaultConfig() {
		t.Errorf("unexpected cmr defaults: %+v", config.CMR)
	}
	if config.Choice != recall.DefaultChoiceConfig() {
		t.Errorf("unexpected choice defaults: %+v", config.Choice)
	}
	if config.Landscape.MemoryCapacity != 5.0 {
		t.Errorf("expected MemoryCapacity 5.0, got %f", config.Landscape.MemoryCapacity)
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
	if config.Store.Path != "" {
		t.Errorf("expected empty Store.Path, got '%s'", config.Store.Path)
	}
}

func TestLoadFromFile(t *testing.T) {
	configPath := writeConfig(t, `
landscape:
  decay_rate: 0.2
  memory_capacity: 3
cmr:
  encoding_drift_rate: 0.6
  semantic_scale: 1.5
choice:
  choice_sensitivity: 2
logging:
  level: trace
`)

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Landscape.DecayRate != 0.2 {
		t.Errorf("expected DecayRate 0.2, got %f", config.Landscape.DecayRate)
	}
	if config.Landscape.MemoryCapacity != 3 {
		t.Errorf("expected MemoryCapacity 3, got %f", config.Landscape.MemoryCapacity)
	}
	// Unset options keep their defaults.
	if config.Landscape.LearningRate != landscape.DefaultConfig().LearningRate {
		t.Errorf("expected default LearningRate, got %f", config.Landscape.LearningRate)
	}
	if config.CMR.EncodingDriftRate != 0.6 {
		t.Errorf("expected EncodingDriftRate 0.6, got %f", config.CMR.EncodingDriftRate)
	}
	if config.CMR.SemanticScale != 1.5 {
		t.Errorf("expected SemanticScale 1.5, got %f", config.CMR.SemanticScale)
	}
	if config.CMR.RecallDriftRate != cmr.DefaultConfig().RecallDriftRate {
		t.Errorf("expected default RecallDriftRate, got %f", config.CMR.RecallDriftRate)
	}
	if config.Choice.ChoiceSensitivity != 2 {
		t.Errorf("expected ChoiceSensitivity 2, got %f", config.Choice.ChoiceSensitivity)
	}
	if config.Logging.Level != "trace" {
		t.Errorf("expected Logging.Level 'trace', got '%s'", config.Logging.Level)
	}
}

func TestLoadFromFile_StorePathExpansion(t *testing.T) {
	t.Setenv("RECALLSIM_TEST_DIR", "/data/runs")
	configPath := writeConfig(t, `
store:
  path: ${RECALLSIM_TEST_DIR}/sim
`)

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Store.Path != "/data/runs/sim" {
		t.Errorf("expected Store.Path '/data/runs/sim', got '%s'", config.Store.Path)
	}
}

func TestLoad_ReadsHomeConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.MkdirAll(filepath.Join(home, DirName), 0700); err != nil {
		t.Fatal(err)
	}
	content := "landscape:\n  decay_rate: 0.4\n"
	if err := os.WriteFile(filepath.Join(home, DirName, "config.yaml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RECALLSIM_LOG_LEVEL", "debug")

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Landscape.DecayRate != 0.4 {
		t.Errorf("expected DecayRate 0.4, got %f", config.Landscape.DecayRate)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("expected env override 'debug', got '%s'", config.Logging.Level)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Landscape != landscape.DefaultConfig() {
		t.Errorf("expected defaults without a config file, got %+v", config.Landscape)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RECALLSIM_LOG_LEVEL", "trace")
	t.Setenv("RECALLSIM_DB_PATH", "/tmp/recallsim")
	t.Setenv("RECALLSIM_CHOICE_SENSITIVITY", "3.5")
	t.Setenv("RECALLSIM_STOP_PROBABILITY_SCALE", "0.05")
	t.Setenv("RECALLSIM_STOP_PROBABILITY_GROWTH", "0.7")

	config := Default()
	applyEnvOverrides(config)

	if config.Logging.Level != "trace" {
		t.Errorf("expected Logging.Level 'trace', got '%s'", config.Logging.Level)
	}
	if config.Store.Path != "/tmp/recallsim" {
		t.Errorf("expected Store.Path '/tmp/recallsim', got '%s'", config.Store.Path)
	}
	if config.Choice.ChoiceSensitivity != 3.5 {
		t.Errorf("expected ChoiceSensitivity 3.5, got %f", config.Choice.ChoiceSensitivity)
	}
	if config.Choice.StopProbabilityScale != 0.05 {
		t.Errorf("expected StopProbabilityScale 0.05, got %f", config.Choice.StopProbabilityScale)
	}
	if config.Choice.StopProbabilityGrowth != 0.7 {
		t.Errorf("expected StopProbabilityGrowth 0.7, got %f", config.Choice.StopProbabilityGrowth)
	}
}

func TestEnvOverrides_IgnoresUnparseable(t *testing.T) {
	t.Setenv("RECALLSIM_CHOICE_SENSITIVITY", "sharp")

	config := Default()
	applyEnvOverrides(config)

	if config.Choice.ChoiceSensitivity != recall.DefaultChoiceConfig().ChoiceSensitivity {
		t.Errorf("expected default ChoiceSensitivity, got %f", config.Choice.ChoiceSensitivity)
	}
}

func TestValidate_Valid(t *testing.T) {
	config := Default()
	if err := config.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative decay", func(c *Config) { c.Landscape.DecayRate = -0.1 }},
		{"zero capacity", func(c *Config) { c.Landscape.MemoryCapacity = 0 }},
		{"min above max", func(c *Config) { c.Landscape.MinActivity = 2 }},
		{"nan learning rate", func(c *Config) { c.Landscape.LearningRate = math.NaN() }},
		{"drift above one", func(c *Config) { c.CMR.RecallDriftRate = 1.2 }},
		{"negative item support", func(c *Config) { c.CMR.ItemSupport = -0.5 }},
		{"infinite semantic scale", func(c *Config) { c.CMR.SemanticScale = math.Inf(1) }},
		{"stop scale above one", func(c *Config) { c.Choice.StopProbabilityScale = 1.5 }},
		{"zero sensitivity", func(c *Config) { c.Choice.ChoiceSensitivity = 0 }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			err := config.Validate()
			if !errors.Is(err, recall.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestValidate_ValidLogLevels(t *testing.T) {
	validLevels := []string{"", "info", "debug", "trace", "DEBUG", "Trace"}

	for _, level := range validLevels {
		t.Run(level, func(t *testing.T) {
			config := Default()
			config.Logging.Level = level
			if err := config.Validate(); err != nil {
				t.Errorf("expected log level '%s' to be valid, got error: %v", level, err)
			}
		})
	}
}

func TestStoreDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	config := Default()
	dir, err := config.StoreDir()
	if err != nil {
		t.Fatalf("StoreDir failed: %v", err)
	}
	if dir != filepath.Join(home, DirName) {
		t.Errorf("expected %s, got %s", filepath.Join(home, DirName), dir)
	}

	config.Store.Path = "/srv/recallsim"
	if dir, _ := config.StoreDir(); dir != "/srv/recallsim" {
		t.Errorf("expected explicit path, got %s", dir)
	}
}

func TestLoad_UpperCaseEnvLogLevel(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("RECALLSIM_LOG_LEVEL", "DEBUG")

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("expected RECALLSIM_LOG_LEVEL=DEBUG to be valid, got error: %v", err)
	}
}

func TestLoadPath_AppliesEnv(t *testing.T) {
	configPath := writeConfig(t, "logging:\n  level: debug\n")
	t.Setenv("RECALLSIM_LOG_LEVEL", "trace")

	config, err := LoadPath(configPath)
	if err != nil {
		t.Fatalf("LoadPath failed: %v", err)
	}
	if config.Logging.Level != "trace" {
		t.Errorf("expected env override 'trace', got '%s'", config.Logging.Level)
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `
landscape:
  decay_rate: [invalid yaml
`)

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}
