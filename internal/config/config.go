// Package config loads and validates the daemon configuration.
package config

import (
	"net/url"
	"time"

	"github.com/spf13/viper"

	"davslide/internal/apperr"
)

const (
	// MinUpdateInterval is the floor for the per-image advance timer.
	MinUpdateInterval = 10 * time.Second
	// MinRefreshInterval is the floor for the list-refresh timer.
	MinRefreshInterval = 300 * time.Second
)

// Repository describes the WebDAV source. Immutable once the orchestrator
// is initialized.
type Repository struct {
	URL             string   `mapstructure:"url"`
	Username        string   `mapstructure:"username"`
	Password        string   `mapstructure:"password"`
	Recursive       bool     `mapstructure:"recursive"`
	ExcludePatterns []string `mapstructure:"excludePatterns"`
}

// Slideshow holds playback settings.
type Slideshow struct {
	UpdateInterval  time.Duration `mapstructure:"updateInterval"`
	RefreshInterval time.Duration `mapstructure:"refreshInterval"`
	Random          bool          `mapstructure:"random"`
	StartPaused     bool          `mapstructure:"startPaused"`
	StartHidden     bool          `mapstructure:"startHidden"`
}

// Display holds the requested display dimensions. They only participate in
// the cache key; the payload is never resized server-side.
type Display struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// Config is the full configuration surface consumed by the core.
type Config struct {
	Repository Repository `mapstructure:"repository"`
	Slideshow  Slideshow  `mapstructure:"slideshow"`
	Display    Display    `mapstructure:"display"`

	Geocode struct {
		Enabled bool   `mapstructure:"enabled"`
		URL     string `mapstructure:"url"`
	} `mapstructure:"geocode"`

	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`

	Logger struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logger"`

	CacheSize int `mapstructure:"cacheSize"`
}

// Load reads config.yaml from path, applies defaults and clamps, and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("slideshow.updateInterval", "60s")
	v.SetDefault("slideshow.refreshInterval", "1h")
	v.SetDefault("geocode.url", "https://nominatim.openstreetmap.org/reverse")
	v.SetDefault("server.addr", ":8480")
	v.SetDefault("logger.level", "info")
	v.SetDefault("cacheSize", 50)
	v.SetDefault("display.width", 1920)
	v.SetDefault("display.height", 1080)
}

// Normalize clamps the timer intervals to their minimums and fills fallback
// values for zeroed fields.
func (c *Config) Normalize() {
	if c.Slideshow.UpdateInterval < MinUpdateInterval {
		c.Slideshow.UpdateInterval = MinUpdateInterval
	}
	if c.Slideshow.RefreshInterval < MinRefreshInterval {
		c.Slideshow.RefreshInterval = MinRefreshInterval
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 50
	}
}

// Validate checks the fields whose absence or malformation is fatal at
// startup.
func (c *Config) Validate() error {
	if c.Repository.URL == "" {
		return &apperr.ConfigError{Field: "repository.url", Reason: "missing"}
	}
	u, err := url.Parse(c.Repository.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &apperr.ConfigError{Field: "repository.url", Reason: "not a valid absolute URL"}
	}
	if c.Repository.Username == "" || c.Repository.Password == "" {
		return &apperr.ConfigError{Field: "repository.username/password", Reason: "missing credentials"}
	}
	return nil
}
