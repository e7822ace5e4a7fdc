package config

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hartis-org/cvi-workflow/internal/classify"
)

// ThresholdsConfig holds the classification rule tables for every
// vulnerability dimension plus the composite index. It is loaded from a
// separate file so scientists can tune ranks without touching application
// configuration.
type ThresholdsConfig struct {
	Meta      MetaConfig         `yaml:"meta" mapstructure:"meta"`
	LandCover DimensionConfig    `yaml:"land_cover" mapstructure:"land_cover"`
	Slope     DimensionConfig    `yaml:"slope" mapstructure:"slope"`
	Erosion   DimensionConfig    `yaml:"erosion" mapstructure:"erosion"`
	Elevation DimensionConfig    `yaml:"elevation" mapstructure:"elevation"`
	TotalCVI  TotalConfig        `yaml:"total_cvi" mapstructure:"total_cvi"`
	Weights   map[string]float64 `yaml:"weights" mapstructure:"weights"`
}

// MetaConfig holds settings shared by all dimensions.
type MetaConfig struct {
	DefaultPalette classify.Palette `yaml:"default_palette" mapstructure:"default_palette"`
}

// DimensionConfig holds one dimension's rank classes keyed by rank string.
type DimensionConfig struct {
	Classes map[string]classify.ClassSpec `yaml:"classes" mapstructure:"classes"`
}

// TotalConfig holds the fixed rank classes for the composite index.
type TotalConfig struct {
	Fixed map[string]classify.ClassSpec `yaml:"fixed" mapstructure:"fixed"`
}

// dimensionNames lists the vulnerability dimensions a thresholds file must
// define, in canonical order.
var dimensionNames = []string{"land_cover", "slope", "erosion", "elevation"}

// LoadThresholds reads and validates a thresholds file. Both YAML and JSON
// are accepted, keyed off the file extension.
func LoadThresholds(path string) (*ThresholdsConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, eris.Wrapf(err, "config: read thresholds %s", path)
	}

	var t ThresholdsConfig
	if err := v.Unmarshal(&t); err != nil {
		return nil, eris.Wrapf(err, "config: unmarshal thresholds %s", path)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Dimension returns the named dimension's classes.
func (t *ThresholdsConfig) Dimension(name string) (DimensionConfig, error) {
	switch name {
	case "land_cover":
		return t.LandCover, nil
	case "slope":
		return t.Slope, nil
	case "erosion":
		return t.Erosion, nil
	case "elevation":
		return t.Elevation, nil
	default:
		return DimensionConfig{}, eris.Errorf("config: unknown dimension %q", name)
	}
}

// Validate checks that every dimension defines classes and that the
// composite table is present. Missing weight entries only warn, since the
// equal-weight composite does not consume them.
func (t *ThresholdsConfig) Validate() error {
	for _, name := range dimensionNames {
		dim, err := t.Dimension(name)
		if err != nil {
			return err
		}
		if len(dim.Classes) == 0 {
			return eris.Errorf("config: dimension %s has no classes", name)
		}
		if _, ok := t.Weights[name]; !ok {
			zap.L().Warn("thresholds: dimension has no weight entry",
				zap.String("dimension", name))
		}
	}

	if len(t.TotalCVI.Fixed) == 0 {
		return eris.New("config: total_cvi.fixed has no classes")
	}
	return nil
}

// Table builds the validated interval table for the named dimension using
// the shared palette.
func (t *ThresholdsConfig) Table(name string) (classify.Table, error) {
	dim, err := t.Dimension(name)
	if err != nil {
		return nil, err
	}
	return classify.BuildTable(dim.Classes, t.Meta.DefaultPalette)
}

// CompositeTable builds the fixed rank table for the composite index.
func (t *ThresholdsConfig) CompositeTable() (classify.Table, error) {
	return classify.BuildTable(t.TotalCVI.Fixed, t.Meta.DefaultPalette)
}

// LandCoverLookup builds the raster-code lookup for the land cover
// dimension, whose classes are keyed by discrete codes rather than value
// intervals.
func (t *ThresholdsConfig) LandCoverLookup() (classify.CodeLookup, error) {
	return classify.BuildCodeLookup(t.LandCover.Classes)
}
