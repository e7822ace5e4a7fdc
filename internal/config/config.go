package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Output     OutputConfig   `yaml:"output" mapstructure:"output"`
	AOI        AOIConfig      `yaml:"aoi" mapstructure:"aoi"`
	Geocode    GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Erosion    ErosionConfig  `yaml:"erosion" mapstructure:"erosion"`
	Sampling   SamplingConfig `yaml:"sampling" mapstructure:"sampling"`
	Thresholds ThresholdsRef  `yaml:"thresholds" mapstructure:"thresholds"`
	Fetch      FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Store      StoreConfig    `yaml:"store" mapstructure:"store"`
	Postgres   PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	Server     ServerConfig   `yaml:"server" mapstructure:"server"`
	Temporal   TemporalConfig `yaml:"temporal" mapstructure:"temporal"`
	Log        LogConfig      `yaml:"log" mapstructure:"log"`
}

// OutputConfig configures where run artifacts are written.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// AOIConfig configures the area-of-interest catalog.
type AOIConfig struct {
	Catalog string `yaml:"catalog" mapstructure:"catalog"`
	Sheet   string `yaml:"sheet" mapstructure:"sheet"`
}

// GeocodeConfig holds the Nominatim and Overpass endpoints. Both services
// require a descriptive User-Agent and enforce per-client rate limits.
type GeocodeConfig struct {
	NominatimURL string  `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	OverpassURL  string  `yaml:"overpass_url" mapstructure:"overpass_url"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ErosionConfig holds the Deltares WFS endpoint for shoreline erosion
// segments and the synthetic fallback toggle used when the service is
// unreachable.
type ErosionConfig struct {
	WFSURL            string `yaml:"wfs_url" mapstructure:"wfs_url"`
	TypeName          string `yaml:"type_name" mapstructure:"type_name"`
	SyntheticFallback bool   `yaml:"synthetic_fallback" mapstructure:"synthetic_fallback"`
}

// SamplingConfig configures transect generation, all distances in meters.
type SamplingConfig struct {
	SpacingM        float64 `yaml:"spacing_m" mapstructure:"spacing_m"`
	TransectLengthM float64 `yaml:"transect_length_m" mapstructure:"transect_length_m"`
	MaxCoastM       float64 `yaml:"max_coast_m" mapstructure:"max_coast_m"`
}

// ThresholdsRef points at the classification thresholds file.
type ThresholdsRef struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// FetchConfig configures HTTP retry behavior for external downloads.
type FetchConfig struct {
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// StoreConfig configures the run-tracking database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PostgresConfig configures the optional PostGIS export target.
type PostgresConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
}

// ServerConfig configures the results server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// TemporalConfig configures the workflow worker connection.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from an optional YAML file and the environment.
// An empty path searches the working directory for config.yaml; an explicit
// path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("CVI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("output.dir", "output")
	v.SetDefault("aoi.catalog", "data/areas.xlsx")
	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.overpass_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("geocode.user_agent", "CVI-Workflow/1.0 (https://hartis.org/contact)")
	v.SetDefault("geocode.rate_per_sec", 1.0)
	v.SetDefault("geocode.timeout_secs", 60)
	v.SetDefault("erosion.wfs_url", "https://coastalhazardwheel.avi.deltares.nl/geoserver/chw2-vector/ows")
	v.SetDefault("erosion.type_name", "chw2-vector:coast_segments_erosion")
	v.SetDefault("erosion.synthetic_fallback", true)
	v.SetDefault("sampling.spacing_m", 50.0)
	v.SetDefault("sampling.transect_length_m", 400.0)
	v.SetDefault("sampling.max_coast_m", 15000.0)
	v.SetDefault("thresholds.path", "thresholds.yaml")
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "cvi.db")
	v.SetDefault("postgres.schema", "cvi")
	v.SetDefault("server.port", 8080)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "cvi-pipeline")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// A missing file is fine in search mode; explicit paths and any other
	// read failure are fatal.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields required for the given run mode are set.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "pipeline":
		problems = append(problems, c.samplingProblems()...)
		if c.Output.Dir == "" {
			problems = append(problems, "output.dir is required")
		}
		if c.Geocode.UserAgent == "" {
			problems = append(problems, "geocode.user_agent is required")
		}
		if c.Thresholds.Path == "" {
			problems = append(problems, "thresholds.path is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Output.Dir == "" {
			problems = append(problems, "output.dir is required")
		}
	case "dbload":
		if c.Postgres.DatabaseURL == "" {
			problems = append(problems, "postgres.database_url is required")
		}
		if c.Postgres.Schema == "" {
			problems = append(problems, "postgres.schema is required")
		}
	case "worker":
		if c.Temporal.HostPort == "" {
			problems = append(problems, "temporal.host_port is required")
		}
		if c.Temporal.TaskQueue == "" {
			problems = append(problems, "temporal.task_queue is required")
		}
		problems = append(problems, c.samplingProblems()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) samplingProblems() []string {
	var problems []string
	if c.Sampling.SpacingM <= 0 {
		problems = append(problems, "sampling.spacing_m must be > 0")
	}
	if c.Sampling.TransectLengthM <= 0 {
		problems = append(problems, "sampling.transect_length_m must be > 0")
	}
	if c.Sampling.MaxCoastM <= 0 {
		problems = append(problems, "sampling.max_coast_m must be > 0")
	}
	if c.Fetch.MaxAttempts < 1 {
		problems = append(problems, "fetch.max_attempts must be >= 1")
	}
	return problems
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
