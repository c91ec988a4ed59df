// Package config loads the YAML configuration of the tapsuite tool.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-tap/dsp/filter/savgol"
	"github.com/cwbudde/algo-tap/internal/logging"
	"github.com/cwbudde/algo-tap/tap/correct"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendDir    = "dir"
	BackendS3     = "s3"
)

// Config is the complete tool configuration.
type Config struct {
	Log           LogConfig           `yaml:"log"`
	Storage       StorageConfig       `yaml:"storage"`
	Correction    CorrectionConfig    `yaml:"correction"`
	Normalization NormalizationConfig `yaml:"normalization"`
	Output        OutputConfig        `yaml:"output"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type StorageConfig struct {
	Backend      string   `yaml:"backend"`
	Dir          string   `yaml:"dir"`
	ClearOnStart bool     `yaml:"clear_on_start"`
	S3           S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PathStyle bool   `yaml:"path_style"`
}

type CorrectionConfig struct {
	Baseline  BaselineConfig  `yaml:"baseline"`
	Smoothing SmoothingConfig `yaml:"smoothing"`
}

type BaselineConfig struct {
	Enabled bool    `yaml:"enabled"`
	Start   float64 `yaml:"start"`
	End     float64 `yaml:"end"`
}

type SmoothingConfig struct {
	Enabled    bool `yaml:"enabled"`
	WindowSize int  `yaml:"window_size"`
	Order      int  `yaml:"order"`
}

type NormalizationConfig struct {
	// Inert is the registry key of the reference species; empty skips
	// normalization.
	Inert string `yaml:"inert"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
}

type MetricsConfig struct {
	// Textfile receives the metrics in Prometheus text format after a
	// run; empty disables it.
	Textfile string `yaml:"textfile"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Storage: StorageConfig{
			Backend:      BackendMemory,
			Dir:          "tmp",
			ClearOnStart: true,
		},
		Correction: CorrectionConfig{
			Baseline:  BaselineConfig{Start: correct.Disabled.Start, End: correct.Disabled.End},
			Smoothing: SmoothingConfig{WindowSize: savgol.MinWindowSize(1) + 4, Order: 1},
		},
		Output: OutputConfig{Dir: "."},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Params converts the correction section.
func (c CorrectionConfig) Params() correct.Params {
	return correct.Params{
		Window:     correct.Window{Start: c.Baseline.Start, End: c.Baseline.End},
		Baseline:   c.Baseline.Enabled,
		Smooth:     c.Smoothing.Enabled,
		WindowSize: c.Smoothing.WindowSize,
		Order:      c.Smoothing.Order,
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendDir:
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("storage.dir: required for the dir backend"))
		}
	case BackendS3:
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, errors.New("storage.s3.bucket: required for the s3 backend"))
		}
		if (c.Storage.S3.AccessKey == "") != (c.Storage.S3.SecretKey == "") {
			errs = append(errs, errors.New("storage.s3: access_key and secret_key must be set together"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend))
	}
	if err := c.Correction.Params().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("correction: %w", err))
	}
	if c.Output.Dir == "" {
		errs = append(errs, errors.New("output.dir: required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
