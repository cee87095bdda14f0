// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Provider types understood by the mix factory.
const (
	ProviderRandom  = "random"
	ProviderLastFm  = "lastfm"
	ProviderSpotify = "spotify"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig            `yaml:"server"`
	API       APIConfig               `yaml:"api"`
	Subsonic  SubsonicConfig          `yaml:"subsonic"`
	Scheduler SchedulerConfig         `yaml:"scheduler"`
	Playback  PlaybackConfig          `yaml:"playback"`
	Mix       MixConfig               `yaml:"mix"`
	Filters   map[string]FilterConfig `yaml:"filters"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// APIConfig represents RPC API configuration.
type APIConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// SubsonicConfig represents streaming server configuration.
type SubsonicConfig struct {
	URL        string `yaml:"url" validate:"required,url"`
	Username   string `yaml:"username" validate:"required"`
	Password   string `yaml:"password" validate:"required"`
	Client     string `yaml:"client" default:"tapedeck"`
	APIVersion string `yaml:"api_version" default:"1.16.1"`
	TimeoutMs  int    `yaml:"timeout_ms" default:"10000" validate:"gte=100"`
}

// SchedulerConfig represents request scheduler configuration.
type SchedulerConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" default:"5" validate:"gte=1,lte=64"`
}

// PlaybackConfig represents playback controller configuration.
type PlaybackConfig struct {
	PositionIntervalMs int    `yaml:"position_interval_ms" default:"500" validate:"gte=50,lte=10000"`
	StartShuffled      bool   `yaml:"start_shuffled"`
	Repeat             string `yaml:"repeat" default:"off" validate:"oneof=off one all"`
}

// MixConfig represents instant mix configuration.
type MixConfig struct {
	Size      int              `yaml:"size" default:"50" validate:"gte=1,lte=500"`
	SeedCount int              `yaml:"seed_count" default:"5" validate:"gte=0"`
	Providers []ProviderConfig `yaml:"providers" validate:"dive"`
}

// ProviderConfig represents a single mix provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=random lastfm spotify"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SUBSONIC_PASSWORD"); v != "" {
		c.Subsonic.Password = v
	}
	if v := os.Getenv("API_TOKEN"); v != "" {
		c.API.Token = v
	}

	overrides := map[string]map[string]string{
		ProviderLastFm: {"api_key": "LASTFM_API_KEY"},
		ProviderSpotify: {
			"client_id":     "SPOTIFY_CLIENT_ID",
			"client_secret": "SPOTIFY_CLIENT_SECRET",
			"refresh_token": "SPOTIFY_REFRESH_TOKEN",
		},
	}
	for i := range c.Mix.Providers {
		p := &c.Mix.Providers[i]
		for key, env := range overrides[p.Type] {
			v := os.Getenv(env)
			if v == "" {
				continue
			}
			if p.Settings == nil {
				p.Settings = make(map[string]any)
			}
			p.Settings[key] = v
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	for i, p := range c.Mix.Providers {
		if err := p.validateSettings(); err != nil {
			return errors.Wrapf(err, "mix provider %d (%s)", i, p.Type)
		}
	}
	return nil
}

// validateSettings checks the settings every provider type cannot start without.
// Provider-specific defaults and ranges are checked by the providers themselves.
func (p ProviderConfig) validateSettings() error {
	var required []string
	switch p.Type {
	case ProviderLastFm:
		required = []string{"api_key"}
	case ProviderSpotify:
		required = []string{"playlist_url", "client_id", "client_secret", "refresh_token"}
	}
	for _, key := range required {
		if v, ok := p.Settings[key]; !ok || v == "" || v == nil {
			return errors.Newf("setting %q is required", key)
		}
	}
	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// SubsonicTimeout returns the streaming server request timeout.
func (c *Config) SubsonicTimeout() time.Duration {
	return time.Duration(c.Subsonic.TimeoutMs) * time.Millisecond
}

// PositionInterval returns the position poll interval.
func (c *Config) PositionInterval() time.Duration {
	return time.Duration(c.Playback.PositionIntervalMs) * time.Millisecond
}
