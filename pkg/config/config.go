// Package config loads analysis settings from YAML on top of built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/hed1ad/synguard/pkg/detectors/ocsvm"
	"github.com/hed1ad/synguard/pkg/features"
)

// Detector names.
const (
	DetectorOCSVM   = "ocsvm"
	DetectorIForest = "iforest"
)

// Report formats.
const (
	FormatText  = "text"
	FormatTable = "table"
	FormatJSON  = "json"
)

type (
	// Config is the top-level configuration struct for an analysis run.
	Config struct {
		Window   WindowConfig   `yaml:"window"`
		Detector DetectorConfig `yaml:"detector"`
		Syn      SynConfig      `yaml:"syn"`
		Output   OutputConfig   `yaml:"output"`
		Log      LogConfig      `yaml:"log"`
	}

	// WindowConfig controls windowing and aggregation.
	WindowConfig struct {
		Size      time.Duration `yaml:"size" default:"5m"`
		Features  string        `yaml:"features" default:"destination-sum"`
		FillEmpty bool          `yaml:"fill_empty_windows"`
	}

	// DetectorConfig selects and tunes the novelty detector.
	DetectorConfig struct {
		Algorithm    string  `yaml:"algorithm" default:"ocsvm"`
		Nu           float64 `yaml:"nu" default:"0.0026"`
		Kernel       string  `yaml:"kernel" default:"rbf"`
		Gamma        string  `yaml:"gamma" default:"scale"`
		Tolerance    float64 `yaml:"tolerance" default:"0.001"`
		SupportFloor float64 `yaml:"support_floor" default:"3"`
		Trees        int     `yaml:"trees" default:"100"`
		Seed         int64   `yaml:"seed" default:"42"`
	}

	// SynConfig controls the SYN flood ranking and its time series.
	SynConfig struct {
		TopK int `yaml:"top_k" default:"10"`
	}

	// OutputConfig names the report format and export targets.
	OutputConfig struct {
		Format        string `yaml:"format" default:"text"`
		Dir           string `yaml:"dir" default:"."`
		Anomalies     string `yaml:"anomalies" default:"anomalies.csv"`
		SynGroups     string `yaml:"syn_groups" default:"syn_packet_analysis.csv"`
		Series        string `yaml:"series" default:"syn_series.csv"`
		Plot          string `yaml:"plot" default:"syn_series.png"`
		DisableExport bool   `yaml:"disable_export"`
	}

	// LogConfig contains the configuration for logging.
	LogConfig struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"text"`
	}
)

// Default returns the built-in configuration.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(filePath string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if filePath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse overlays YAML data onto cfg.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Window.Size <= 0 {
		errs = append(errs, fmt.Errorf("window.size must be positive, got %s", c.Window.Size))
	}
	if _, err := features.NewExtractor(c.Window.Features); err != nil {
		errs = append(errs, fmt.Errorf("window.features: %w", err))
	}

	switch c.Detector.Algorithm {
	case DetectorOCSVM:
		if c.Detector.Nu <= 0 || c.Detector.Nu > 1 {
			errs = append(errs, fmt.Errorf("detector.nu must be in (0, 1], got %g", c.Detector.Nu))
		}
		if c.Detector.Kernel != ocsvm.KernelRBF && c.Detector.Kernel != ocsvm.KernelLinear {
			errs = append(errs, fmt.Errorf("detector.kernel: unknown kernel %q", c.Detector.Kernel))
		}
		if _, _, err := c.Detector.ParseGamma(); err != nil {
			errs = append(errs, err)
		}
	case DetectorIForest:
		if c.Detector.Nu <= 0 || c.Detector.Nu >= 1 {
			errs = append(errs, fmt.Errorf("detector.nu must be in (0, 1) for iforest, got %g", c.Detector.Nu))
		}
		if c.Detector.Trees <= 0 {
			errs = append(errs, fmt.Errorf("detector.trees must be positive, got %d", c.Detector.Trees))
		}
	default:
		errs = append(errs, fmt.Errorf("detector.algorithm: unknown detector %q", c.Detector.Algorithm))
	}

	if c.Syn.TopK < 0 {
		errs = append(errs, fmt.Errorf("syn.top_k must not be negative, got %d", c.Syn.TopK))
	}

	switch c.Output.Format {
	case FormatText, FormatTable, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("output.format: unknown format %q", c.Output.Format))
	}

	return errors.Join(errs...)
}

// ParseGamma splits the gamma setting into a heuristic name or a fixed value.
func (d DetectorConfig) ParseGamma() (heuristic string, value float64, err error) {
	switch d.Gamma {
	case ocsvm.GammaScale, ocsvm.GammaAuto:
		return d.Gamma, 0, nil
	}

	v, err := strconv.ParseFloat(d.Gamma, 64)
	if err != nil || v <= 0 {
		return "", 0, fmt.Errorf("detector.gamma must be %q, %q or a positive number, got %q",
			ocsvm.GammaScale, ocsvm.GammaAuto, d.Gamma)
	}
	return "", v, nil
}

// Marshal renders cfg as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
