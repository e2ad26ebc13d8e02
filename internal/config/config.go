// Package config provides configuration management for Flowscope.
//
// Every tuning knob the visualization engine carries (jitter range, force
// simulation constants, stroke bounds, marker-dot counts) lives here rather
// than as hard-coded constants, so deployments can adjust them without a
// rebuild and the watcher can hot-reload them.
//
// Config file locations (priority order):
//  1. $FLOWSCOPE_CONFIG
//  2. ./flowscope.yaml
//  3. $XDG_CONFIG_HOME/flowscope/config.yaml
//  4. ~/.config/flowscope/config.yaml
//  5. /etc/flowscope/config.yaml
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full server + engine configuration.
type Config struct {
	Version  int            `yaml:"version"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Source   SourceConfig   `yaml:"source"`
	Geocoder GeocoderConfig `yaml:"geocoder"`
	Layout   LayoutConfig   `yaml:"layout"`
	Render   RenderConfig   `yaml:"render"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig holds the SQLite transaction store settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SourceConfig points the engine at its network-data source. Empty URL means
// the engine consumes the embedded service directly (self-hosted).
type SourceConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// GeocoderConfig configures the external location lookup collaborator.
type GeocoderConfig struct {
	URL            string  `yaml:"url"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	JitterDeg      float64 `yaml:"jitter_deg"`
}

// LayoutConfig holds the force-simulation and deterministic layout knobs.
// The source dashboard hard-coded all of these; they are deliberate
// configuration here because none of them has a documented rationale.
type LayoutConfig struct {
	Width            float64 `yaml:"width"`
	Height           float64 `yaml:"height"`
	RepelForce       float64 `yaml:"repel_force"`
	LinkStrength     float64 `yaml:"link_strength"`
	LinkDistance     float64 `yaml:"link_distance"`
	CenterStrength   float64 `yaml:"center_strength"`
	CollisionPadding float64 `yaml:"collision_padding"`
	AlphaDecay       float64 `yaml:"alpha_decay"`
	AlphaMin         float64 `yaml:"alpha_min"`
	MinNodeRadius    float64 `yaml:"min_node_radius"`
	MaxNodeRadius    float64 `yaml:"max_node_radius"`
	RadialRadius     float64 `yaml:"radial_radius"`
}

// RenderConfig holds the flow renderer knobs.
type RenderConfig struct {
	MinStroke     float64 `yaml:"min_stroke"`
	MaxStroke     float64 `yaml:"max_stroke"`
	StrokeScale   float64 `yaml:"stroke_scale"`
	DimOpacity    float64 `yaml:"dim_opacity"`
	DotsPerEdge   int     `yaml:"dots_per_edge"`
	DotSpeed      float64 `yaml:"dot_speed"`
	LoopRadius    float64 `yaml:"loop_radius"`
	MapNodeRadius float64 `yaml:"map_node_radius"`
}

// LoggingConfig controls the slog setup.
type LoggingConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./flowscope.db"
	}
	if c.Source.TimeoutSeconds == 0 {
		c.Source.TimeoutSeconds = 30
	}
	if c.Geocoder.TimeoutSeconds == 0 {
		c.Geocoder.TimeoutSeconds = 10
	}
	if c.Geocoder.JitterDeg == 0 {
		c.Geocoder.JitterDeg = 0.5
	}

	l := &c.Layout
	if l.Width == 0 {
		l.Width = 1200
	}
	if l.Height == 0 {
		l.Height = 800
	}
	if l.RepelForce == 0 {
		l.RepelForce = 8000
	}
	if l.LinkStrength == 0 {
		l.LinkStrength = 0.1
	}
	if l.LinkDistance == 0 {
		l.LinkDistance = 120
	}
	if l.CenterStrength == 0 {
		l.CenterStrength = 0.05
	}
	if l.CollisionPadding == 0 {
		l.CollisionPadding = 4
	}
	if l.AlphaDecay == 0 {
		l.AlphaDecay = 0.0228
	}
	if l.AlphaMin == 0 {
		l.AlphaMin = 0.001
	}
	if l.MinNodeRadius == 0 {
		l.MinNodeRadius = 8
	}
	if l.MaxNodeRadius == 0 {
		l.MaxNodeRadius = 40
	}
	if l.RadialRadius == 0 {
		l.RadialRadius = 300
	}

	r := &c.Render
	if r.MinStroke == 0 {
		r.MinStroke = 1
	}
	if r.MaxStroke == 0 {
		r.MaxStroke = 10
	}
	if r.StrokeScale == 0 {
		r.StrokeScale = 0.005
	}
	if r.DimOpacity == 0 {
		r.DimOpacity = 0.15
	}
	if r.DotsPerEdge == 0 {
		r.DotsPerEdge = 3
	}
	if r.DotSpeed == 0 {
		r.DotSpeed = 0.4
	}
	if r.LoopRadius == 0 {
		r.LoopRadius = 24
	}
	if r.MapNodeRadius == 0 {
		r.MapNodeRadius = 6
	}

	if c.Logging.File == "" {
		c.Logging.File = "./flowscope.log"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
