package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no config.yaml in reach

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "output", cfg.Output.Dir)
	assert.Equal(t, "data/areas.xlsx", cfg.AOI.Catalog)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Geocode.NominatimURL)
	assert.Equal(t, "https://overpass-api.de/api/interpreter", cfg.Geocode.OverpassURL)
	assert.Equal(t, "CVI-Workflow/1.0 (https://hartis.org/contact)", cfg.Geocode.UserAgent)
	assert.InDelta(t, 1.0, cfg.Geocode.RatePerSec, 0.001)
	assert.Equal(t, 60, cfg.Geocode.TimeoutSecs)
	assert.Equal(t, "https://coastalhazardwheel.avi.deltares.nl/geoserver/chw2-vector/ows", cfg.Erosion.WFSURL)
	assert.Equal(t, "chw2-vector:coast_segments_erosion", cfg.Erosion.TypeName)
	assert.True(t, cfg.Erosion.SyntheticFallback)
	assert.InDelta(t, 50.0, cfg.Sampling.SpacingM, 0.001)
	assert.InDelta(t, 400.0, cfg.Sampling.TransectLengthM, 0.001)
	assert.InDelta(t, 15000.0, cfg.Sampling.MaxCoastM, 0.001)
	assert.Equal(t, "thresholds.yaml", cfg.Thresholds.Path)
	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "cvi.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "cvi", cfg.Postgres.Schema)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost:7233", cfg.Temporal.HostPort)
	assert.Equal(t, "cvi-pipeline", cfg.Temporal.TaskQueue)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

// writeConfig drops YAML into dir and returns the file path.
func writeConfig(t *testing.T, dir, yaml string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoadExplicitPath(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
output:
  dir: /srv/cvi/runs
sampling:
  spacing_m: 100
  max_coast_m: 20000
erosion:
  synthetic_fallback: false
log:
  level: debug
  format: console
server:
  port: 9090
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/cvi/runs", cfg.Output.Dir)
	assert.InDelta(t, 100.0, cfg.Sampling.SpacingM, 0.001)
	assert.InDelta(t, 20000.0, cfg.Sampling.MaxCoastM, 0.001)
	assert.False(t, cfg.Erosion.SyntheticFallback)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)

	// Values the file does not mention keep their defaults.
	assert.InDelta(t, 400.0, cfg.Sampling.TransectLengthM, 0.001)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestLoadExplicitPathMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadSearchesWorkingDir(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "output:\n  dir: found-it\n")
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "found-it", cfg.Output.Dir)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
store:
  driver: sqlite
log:
  level: debug
`)
	t.Setenv("CVI_STORE_DRIVER", "postgres")
	t.Setenv("CVI_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CVI_SERVER_PORT", "3000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{"json production", LogConfig{Level: "info", Format: "json"}, false},
		{"console development", LogConfig{Level: "debug", Format: "console"}, false},
		{"unknown level", LogConfig{Level: "loud", Format: "json"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := InitLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, zap.L())
		})
	}
}

// validConfig carries enough fields to pass Validate in every mode that
// does not need a database URL.
func validConfig() *Config {
	cfg := &Config{}
	cfg.Output.Dir = "output"
	cfg.Geocode.UserAgent = "CVI-Workflow/1.0 (https://hartis.org/contact)"
	cfg.Sampling.SpacingM = 50
	cfg.Sampling.TransectLengthM = 400
	cfg.Sampling.MaxCoastM = 15000
	cfg.Thresholds.Path = "thresholds.yaml"
	cfg.Fetch.MaxAttempts = 3
	cfg.Server.Port = 8080
	cfg.Postgres.Schema = "cvi"
	cfg.Temporal.HostPort = "localhost:7233"
	cfg.Temporal.TaskQueue = "cvi-pipeline"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "pipeline ok", mode: "pipeline"},
		{name: "pipeline no output dir", mode: "pipeline",
			mutate:  func(c *Config) { c.Output.Dir = "" },
			wantErr: "output.dir is required"},
		{name: "pipeline no user agent", mode: "pipeline",
			mutate:  func(c *Config) { c.Geocode.UserAgent = "" },
			wantErr: "geocode.user_agent is required"},
		{name: "pipeline no thresholds", mode: "pipeline",
			mutate:  func(c *Config) { c.Thresholds.Path = "" },
			wantErr: "thresholds.path is required"},
		{name: "pipeline zero spacing", mode: "pipeline",
			mutate:  func(c *Config) { c.Sampling.SpacingM = 0 },
			wantErr: "sampling.spacing_m must be > 0"},
		{name: "pipeline negative transect length", mode: "pipeline",
			mutate:  func(c *Config) { c.Sampling.TransectLengthM = -1 },
			wantErr: "sampling.transect_length_m must be > 0"},
		{name: "pipeline zero coast cap", mode: "pipeline",
			mutate:  func(c *Config) { c.Sampling.MaxCoastM = 0 },
			wantErr: "sampling.max_coast_m must be > 0"},
		{name: "pipeline zero fetch attempts", mode: "pipeline",
			mutate:  func(c *Config) { c.Fetch.MaxAttempts = 0 },
			wantErr: "fetch.max_attempts must be >= 1"},
		{name: "serve ok", mode: "serve"},
		{name: "serve bad port", mode: "serve",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port must be > 0"},
		{name: "dbload ok", mode: "dbload",
			mutate: func(c *Config) { c.Postgres.DatabaseURL = "postgres://localhost/cvi" }},
		{name: "dbload no database url", mode: "dbload",
			wantErr: "postgres.database_url is required"},
		{name: "dbload no schema", mode: "dbload",
			mutate: func(c *Config) {
				c.Postgres.DatabaseURL = "postgres://localhost/cvi"
				c.Postgres.Schema = ""
			},
			wantErr: "postgres.schema is required"},
		{name: "worker ok", mode: "worker"},
		{name: "worker no host", mode: "worker",
			mutate:  func(c *Config) { c.Temporal.HostPort = "" },
			wantErr: "temporal.host_port is required"},
		{name: "worker no task queue", mode: "worker",
			mutate:  func(c *Config) { c.Temporal.TaskQueue = "" },
			wantErr: "temporal.task_queue is required"},
		{name: "unknown mode", mode: "replicate", wantErr: "unknown mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}

			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Output.Dir = ""
	cfg.Geocode.UserAgent = ""
	cfg.Sampling.SpacingM = 0

	err := cfg.Validate("pipeline")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.dir is required")
	assert.Contains(t, err.Error(), "geocode.user_agent is required")
	assert.Contains(t, err.Error(), "sampling.spacing_m must be > 0")
}
