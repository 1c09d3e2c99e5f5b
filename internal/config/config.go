// Package config provides centralized configuration for the flashT5
// pre-training pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config holds every value the pipeline consumes. Length budgets are
// validated together because the offline (pre-mask) and online
// (post-mask) computations must agree; a mismatch surfaces as a hard
// compaction error at training time otherwise.
type Config struct {
	// MaxLength is the post-mask input sequence length.
	MaxLength int `yaml:"max_length"`

	// OptimalLength is the pre-mask length budget. Flows are truncated
	// to it offline; span corruption then shrinks sequences to about
	// MaxLength.
	OptimalLength int `yaml:"optimal_length"`

	// MaxLabelsLength is the extracted label sequence length.
	MaxLabelsLength int `yaml:"max_labels_length"`

	// NoiseDensity is the approximate fraction of maskable tokens to
	// corrupt per segment.
	NoiseDensity float64 `yaml:"noise_density"`

	// MeanNoiseSpanLength is the target mean length of a masked span.
	MeanNoiseSpanLength float64 `yaml:"mean_noise_span_length"`

	// MinMaskSpanLength is the minimum maskable segment length;
	// shorter segments are left untouched.
	MinMaskSpanLength int `yaml:"min_mask_span_length"`

	// PacketsPerFlow is the maximum number of packets per flow.
	PacketsPerFlow int `yaml:"packets_per_flow"`

	// POPPercent is the fraction of flows that receive a packet-order
	// swap.
	POPPercent float64 `yaml:"pop_percent"`

	// POPSwitchGap is the distance between the two swapped packets.
	POPSwitchGap int `yaml:"pop_switch_gap"`

	// NMLLabelGap is the number of layer labels per packet.
	NMLLabelGap int `yaml:"nml_label_gap"`

	// BatchSize is the number of examples per collated batch.
	BatchSize int `yaml:"batch_size"`

	// Seed is the base seed for all randomized choices. Worker and
	// epoch streams are derived from it.
	Seed int64 `yaml:"seed"`

	// NumWorkers is the number of preprocessing workers.
	// Defaults to runtime.NumCPU() if not set.
	NumWorkers int `yaml:"num_workers"`

	// CacheDir is the directory for preprocessed dataset caches.
	CacheDir string `yaml:"cache_dir"`

	// DataPath is the input JSONL dataset path (file or directory).
	DataPath string `yaml:"data_path"`
}

// Default returns the default pipeline configuration.
func Default() *Config {
	return &Config{
		MaxLength:           512,
		OptimalLength:       568,
		MaxLabelsLength:     192,
		NoiseDensity:        0.15,
		MeanNoiseSpanLength: 3,
		MinMaskSpanLength:   5,
		PacketsPerFlow:      10,
		POPPercent:          0.2,
		POPSwitchGap:        5,
		NMLLabelGap:         4,
		BatchSize:           32,
		Seed:                42,
		NumWorkers:          runtime.NumCPU(),
		CacheDir:            getEnvOrDefault("FLASHT5_CACHE_DIR", filepath.Join(getUserCacheDir(), "flasht5", "datasets")),
	}
}

// Load reads a YAML config file over the defaults. Environment
// variables take priority over both.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if dir := os.Getenv("FLASHT5_CACHE_DIR"); dir != "" {
		cfg.CacheDir = dir
	}
	if p := os.Getenv("FLASHT5_DATA_PATH"); p != "" {
		cfg.DataPath = p
	}

	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = runtime.NumCPU()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces configuration-level invariants. Violations are
// fatal: they indicate a mismatched offline/online length computation,
// not a recoverable per-batch condition.
func (c *Config) Validate() error {
	if c.MaxLength <= 0 || c.OptimalLength <= 0 || c.MaxLabelsLength <= 0 {
		return fmt.Errorf("config: length budgets must be positive (max_length=%d optimal_length=%d max_labels_length=%d)",
			c.MaxLength, c.OptimalLength, c.MaxLabelsLength)
	}
	if c.OptimalLength <= c.MaxLength {
		return fmt.Errorf("config: optimal_length (%d) must exceed max_length (%d); span corruption shrinks the input",
			c.OptimalLength, c.MaxLength)
	}
	if c.NoiseDensity <= 0 || c.NoiseDensity >= 1 {
		return fmt.Errorf("config: noise_density must be in (0,1), got %g", c.NoiseDensity)
	}
	if c.MeanNoiseSpanLength < 1 {
		return fmt.Errorf("config: mean_noise_span_length must be >= 1, got %g", c.MeanNoiseSpanLength)
	}
	if c.MinMaskSpanLength < 2 {
		return fmt.Errorf("config: min_mask_span_length must be >= 2, got %d", c.MinMaskSpanLength)
	}
	if c.PacketsPerFlow <= 0 {
		return fmt.Errorf("config: packets_per_flow must be positive, got %d", c.PacketsPerFlow)
	}
	if c.POPPercent < 0 || c.POPPercent > 1 {
		return fmt.Errorf("config: pop_percent must be in [0,1], got %g", c.POPPercent)
	}
	if c.POPSwitchGap <= 0 {
		return fmt.Errorf("config: pop_switch_gap must be positive, got %d", c.POPSwitchGap)
	}
	if c.NMLLabelGap <= 0 {
		return fmt.Errorf("config: nml_label_gap must be positive, got %d", c.NMLLabelGap)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: batch_size must be positive, got %d", c.BatchSize)
	}
	return nil
}

// getEnvOrDefault returns the environment variable value or the default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getUserCacheDir returns the user cache directory following XDG spec.
func getUserCacheDir() string {
	// Check XDG_CACHE_HOME first
	if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
		return xdgCache
	}

	home := os.Getenv("HOME")
	if home == "" {
		home = "/tmp"
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches")
	default: // linux, etc.
		return filepath.Join(home, ".cache")
	}
}
