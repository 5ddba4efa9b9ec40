// Package config loads velociraptor settings from YAML files and
// VELOCIRAPTOR_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-velociraptor/internal/logging"
	"github.com/robert-malhotra/go-velociraptor/registry"
)

// Config holds all settings.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Observations  ObservationsConfig `yaml:"observations"`
	Catalogue     CatalogueConfig    `yaml:"catalogue"`
	MassFunctions []MassFunctionJob  `yaml:"mass_functions"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	// Level is "debug", "info" (default), "warn" or "error".
	Level string `yaml:"level"`
	// Format is "text" (default) or "json".
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address, e.g. ":9090". Empty disables metrics.
	Addr string `yaml:"addr"`
}

// ObservationsConfig locates observational data files.
type ObservationsConfig struct {
	// DataDir holds local files and doubles as the download cache.
	DataDir string `yaml:"data_dir"`
	// IndexPath is the SQLite index; relative paths are below DataDir.
	IndexPath   string   `yaml:"index_path"`
	S3          S3Config `yaml:"s3"`
	Parallelism int      `yaml:"parallelism"`
}

// S3Config is the optional remote store of observational files.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
	PathStyle bool   `yaml:"path_style"`
}

// IndexFile returns IndexPath resolved against DataDir.
func (o ObservationsConfig) IndexFile() string {
	if o.IndexPath == "" || filepath.IsAbs(o.IndexPath) {
		return o.IndexPath
	}
	return filepath.Join(o.DataDir, o.IndexPath)
}

// CatalogueConfig controls how catalogue fields are exposed.
type CatalogueConfig struct {
	// Convention is "physical" (default) or "stored".
	Convention string `yaml:"convention"`
	// Strict turns classification and unit misses into errors.
	Strict bool `yaml:"strict"`
}

// MassFunctionJob describes one mass function computed by the CLI.
type MassFunctionJob struct {
	Name string `yaml:"name"`
	// Field is a catalogue accessor such as "apertures.mass_star_30_kpc".
	Field string  `yaml:"field"`
	Low   float64 `yaml:"low"`
	High  float64 `yaml:"high"`
	// Units of Low and High, e.g. "Msun".
	Units    string `yaml:"units"`
	Bins     int    `yaml:"bins"`
	Adaptive bool   `yaml:"adaptive"`
	MinCount int    `yaml:"min_count"`
	// Dex measures bin widths in dex rather than in Units.
	Dex bool `yaml:"dex"`
	// BoxSizeCorrection is an optional YAML correction file.
	BoxSizeCorrection string `yaml:"box_size_correction"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Observations: ObservationsConfig{
			DataDir:     "observational_data",
			IndexPath:   "index.sqlite",
			Parallelism: 4,
			S3:          S3Config{Region: "us-east-1"},
		},
		Catalogue: CatalogueConfig{Convention: "physical"},
	}
}

// Load returns the defaults, overlaid with path when it is not empty, then
// with environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile reads a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.Observations.S3.Endpoint = os.ExpandEnv(cfg.Observations.S3.Endpoint)
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if f := c.Logging.Format; f != "" && f != "text" && f != "json" {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", f)
	}
	if _, err := registry.ParseConvention(c.Catalogue.Convention); err != nil {
		return err
	}
	if c.Observations.Parallelism < 1 {
		return fmt.Errorf("observations.parallelism must be at least 1, got %d", c.Observations.Parallelism)
	}

	seen := make(map[string]bool)
	for i, job := range c.MassFunctions {
		if job.Name == "" {
			return fmt.Errorf("mass_functions[%d]: name required", i)
		}
		if seen[job.Name] {
			return fmt.Errorf("mass_functions[%d]: duplicate name %q", i, job.Name)
		}
		seen[job.Name] = true
		if job.Field == "" {
			return fmt.Errorf("mass function %s: field required", job.Name)
		}
		if !(job.Low > 0) || !(job.High > job.Low) {
			return fmt.Errorf("mass function %s: invalid range [%g, %g]", job.Name, job.Low, job.High)
		}
		if job.Bins < 1 {
			return fmt.Errorf("mass function %s: bins must be at least 1, got %d", job.Name, job.Bins)
		}
		if job.MinCount < 0 {
			return fmt.Errorf("mass function %s: min_count must not be negative", job.Name)
		}
	}
	return nil
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv("VELOCIRAPTOR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("VELOCIRAPTOR_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("VELOCIRAPTOR_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("VELOCIRAPTOR_DATA_DIR"); v != "" {
		c.Observations.DataDir = v
	}
	if v := os.Getenv("VELOCIRAPTOR_INDEX_PATH"); v != "" {
		c.Observations.IndexPath = v
	}
	if v := os.Getenv("VELOCIRAPTOR_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Observations.Parallelism = n
		}
	}
	if v := os.Getenv("VELOCIRAPTOR_S3_BUCKET"); v != "" {
		c.Observations.S3.Bucket = v
	}
	if v := os.Getenv("VELOCIRAPTOR_S3_REGION"); v != "" {
		c.Observations.S3.Region = v
	}
	if v := os.Getenv("VELOCIRAPTOR_S3_ENDPOINT"); v != "" {
		c.Observations.S3.Endpoint = v
	}
	if v := os.Getenv("VELOCIRAPTOR_S3_PREFIX"); v != "" {
		c.Observations.S3.Prefix = v
	}
	if v := os.Getenv("VELOCIRAPTOR_S3_PATH_STYLE"); v != "" {
		c.Observations.S3.PathStyle = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("VELOCIRAPTOR_CONVENTION"); v != "" {
		c.Catalogue.Convention = v
	}
	if v := os.Getenv("VELOCIRAPTOR_STRICT"); v != "" {
		c.Catalogue.Strict = strings.EqualFold(v, "true") || v == "1"
	}
}
