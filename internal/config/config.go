// Package config loads the hasta configuration file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level hasta.yml configuration.
type Config struct {
	// DataDir is the directory holding per-identity registration files.
	DataDir string `yaml:"data_dir"`
	// AuditDB is the path to the SQLite audit trail.
	AuditDB string `yaml:"audit_db"`
	// ModelPath is the path to the trained keypoint model weights.
	ModelPath string `yaml:"model_path"`
	// PythonPath overrides the interpreter used for the keypoint service.
	PythonPath string `yaml:"python_path,omitempty"`
	// Threshold is the default maximum match distance.
	Threshold float64 `yaml:"threshold"`
	// DetectTimeout bounds one keypoint detection, e.g. "10s".
	DetectTimeout string `yaml:"detect_timeout"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".hasta")

	return Config{
		DataDir:       filepath.Join(base, "palms"),
		AuditDB:       filepath.Join(base, "audit.db"),
		ModelPath:     filepath.Join(base, "models", "best.pt"),
		Threshold:     0.13,
		DetectTimeout: "10s",
	}
}

// Load reads the configuration from path. A missing file yields the
// defaults; a present but invalid file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate performs strict validation on the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Threshold < 0 {
		return fmt.Errorf("threshold must be >= 0, got %g", c.Threshold)
	}
	if _, err := c.ParseDetectTimeout(); err != nil {
		return err
	}
	return nil
}

// ParseDetectTimeout returns the detect timeout as a duration.
func (c *Config) ParseDetectTimeout() (time.Duration, error) {
	if c.DetectTimeout == "" {
		return 10 * time.Second, nil
	}
	d, err := time.ParseDuration(c.DetectTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid detect_timeout %q: %w", c.DetectTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("detect_timeout must be positive, got %s", c.DetectTimeout)
	}
	return d, nil
}
