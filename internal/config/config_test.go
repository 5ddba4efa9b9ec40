package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 4, cfg.Observations.Parallelism)
	assert.Equal(t, "physical", cfg.Catalogue.Convention)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.Equal(t, filepath.Join("observational_data", "index.sqlite"), cfg.Observations.IndexFile())
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "velociraptor.yaml")
	content := `
logging:
  level: debug
  format: json
observations:
  data_dir: /data/obs
  index_path: /var/index.sqlite
  s3:
    bucket: swift-observational-data
    endpoint: ${VELOCIRAPTOR_TEST_ENDPOINT}
    path_style: true
catalogue:
  convention: stored
  strict: true
mass_functions:
  - name: stellar_mass_function
    field: apertures.mass_star_30_kpc
    low: 1.0e+7
    high: 1.0e+12
    units: Msun
    bins: 25
    adaptive: true
    min_count: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("VELOCIRAPTOR_TEST_ENDPOINT", "http://localhost:9000")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/var/index.sqlite", cfg.Observations.IndexFile())
	assert.Equal(t, 4, cfg.Observations.Parallelism, "unset keys keep defaults")
	assert.Equal(t, "swift-observational-data", cfg.Observations.S3.Bucket)
	assert.Equal(t, "http://localhost:9000", cfg.Observations.S3.Endpoint)
	assert.True(t, cfg.Observations.S3.PathStyle)
	assert.Equal(t, "stored", cfg.Catalogue.Convention)
	assert.True(t, cfg.Catalogue.Strict)
	require.Len(t, cfg.MassFunctions, 1)
	job := cfg.MassFunctions[0]
	assert.Equal(t, "apertures.mass_star_30_kpc", job.Field)
	assert.Equal(t, 1e7, job.Low)
	assert.Equal(t, 25, job.Bins)
	assert.True(t, job.Adaptive)
	assert.Equal(t, 5, job.MinCount)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging: [unclosed"), 0o644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VELOCIRAPTOR_LOG_LEVEL", "warn")
	t.Setenv("VELOCIRAPTOR_PARALLELISM", "8")
	t.Setenv("VELOCIRAPTOR_S3_BUCKET", "bucket")
	t.Setenv("VELOCIRAPTOR_S3_PATH_STYLE", "1")
	t.Setenv("VELOCIRAPTOR_STRICT", "true")
	t.Setenv("VELOCIRAPTOR_METRICS_ADDR", ":9100")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 8, cfg.Observations.Parallelism)
	assert.Equal(t, "bucket", cfg.Observations.S3.Bucket)
	assert.True(t, cfg.Observations.S3.PathStyle)
	assert.True(t, cfg.Catalogue.Strict)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestValidate(t *testing.T) {
	job := MassFunctionJob{Name: "smf", Field: "masses.mass_200crit", Low: 1e9, High: 1e12, Bins: 10}
	tests := map[string]func(*Config){
		"log level":    func(c *Config) { c.Logging.Level = "trace" },
		"log format":   func(c *Config) { c.Logging.Format = "xml" },
		"convention":   func(c *Config) { c.Catalogue.Convention = "raw" },
		"parallelism":  func(c *Config) { c.Observations.Parallelism = 0 },
		"missing name": func(c *Config) { j := job; j.Name = ""; c.MassFunctions = []MassFunctionJob{j} },
		"duplicate":    func(c *Config) { c.MassFunctions = []MassFunctionJob{job, job} },
		"no field":     func(c *Config) { j := job; j.Field = ""; c.MassFunctions = []MassFunctionJob{j} },
		"range":        func(c *Config) { j := job; j.High = j.Low; c.MassFunctions = []MassFunctionJob{j} },
		"bins":         func(c *Config) { j := job; j.Bins = 0; c.MassFunctions = []MassFunctionJob{j} },
		"min count":    func(c *Config) { j := job; j.MinCount = -1; c.MassFunctions = []MassFunctionJob{j} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.MassFunctions = []MassFunctionJob{job}
	assert.NoError(t, cfg.Validate())
}
