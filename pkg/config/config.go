// Package config loads the engine configuration from YAML with sane
// production defaults for the national deployment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the engine configuration.
type Config struct {
	Cluster  ClusterConfig  `yaml:"cluster"`
	Severity SeverityConfig `yaml:"severity"`
	Map      MapConfig      `yaml:"map"`
	Reports  ReportsConfig  `yaml:"reports"`
	Log      LogConfig      `yaml:"log"`
}

// ClusterConfig controls cluster granularity.
type ClusterConfig struct {
	RadiusPx  float64 `yaml:"radius_px"`
	Extent    int     `yaml:"extent"`
	MinPoints int     `yaml:"min_points"`
	MinZoom   int     `yaml:"min_zoom"`
	MaxZoom   int     `yaml:"max_zoom"`
}

// SeverityConfig holds the sampling and trust-score cutoffs.
type SeverityConfig struct {
	SampleSize     int     `yaml:"sample_size"`
	UrgentTrustMin float64 `yaml:"urgent_trust_min"`
	RainTrustMin   float64 `yaml:"rain_trust_min"`
}

// Preset is a named camera position.
type Preset struct {
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
	Zoom float64 `yaml:"zoom"`
}

// MapConfig holds the default overview and the province presets.
type MapConfig struct {
	Default   Preset            `yaml:"default"`
	Provinces map[string]Preset `yaml:"provinces"`
}

// ReportsConfig controls the effective report set.
type ReportsConfig struct {
	// MaxAge excludes reports older than this from the map. Zero
	// disables the staleness filter.
	MaxAge Duration `yaml:"max_age"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // DEBUG, INFO, WARN, ERROR
	Path  string `yaml:"path"`  // empty logs to stdout only
}

// Duration wraps time.Duration for YAML ("24h", "90m", ...).
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration: the national overview
// centered on (16.0, 107.5) at zoom 8 and presets for the provinces the
// dashboard ships with.
func Default() *Config {
	return &Config{
		Cluster: ClusterConfig{
			RadiusPx:  60,
			Extent:    512,
			MinPoints: 2,
			MinZoom:   0,
			MaxZoom:   20,
		},
		Severity: SeverityConfig{
			SampleSize:     20,
			UrgentTrustMin: 0.7,
			RainTrustMin:   0.6,
		},
		Map: MapConfig{
			Default: Preset{Lat: 16.0, Lon: 107.5, Zoom: 8},
			Provinces: map[string]Preset{
				"Ha Noi":         {Lat: 21.0278, Lon: 105.8342, Zoom: 10},
				"Quang Binh":     {Lat: 17.6103, Lon: 106.3487, Zoom: 10},
				"Quang Tri":      {Lat: 16.7943, Lon: 107.0451, Zoom: 10},
				"Thua Thien Hue": {Lat: 16.4637, Lon: 107.5909, Zoom: 10},
				"Da Nang":        {Lat: 16.0544, Lon: 108.2022, Zoom: 11},
				"Quang Nam":      {Lat: 15.5394, Lon: 108.0191, Zoom: 10},
				"Quang Ngai":     {Lat: 15.1214, Lon: 108.8044, Zoom: 10},
				"Ho Chi Minh":    {Lat: 10.8231, Lon: 106.6297, Zoom: 10},
			},
		},
		Reports: ReportsConfig{
			MaxAge: Duration(24 * time.Hour),
		},
		Log: LogConfig{
			Level: "INFO",
		},
	}
}

// Load reads a YAML config file, layered over the defaults. A missing
// file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
