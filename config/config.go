// Package config loads the settings of the pinphotos server from defaults,
// an optional YAML file and PINPHOTOS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "PINPHOTOS"

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Library   LibraryConfig   `mapstructure:"library"`
	Flickr    FlickrConfig    `mapstructure:"flickr"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Loader    LoaderConfig    `mapstructure:"loader"`
	Log       LogConfig       `mapstructure:"log"`
	Geocoding GeocodingConfig `mapstructure:"geocoding"`
}

type ServerConfig struct {
	Port int  `mapstructure:"port"`
	Dev  bool `mapstructure:"dev"`
}

// LibraryConfig is where pins are persisted
type LibraryConfig struct {
	Dir string `mapstructure:"dir"`
}

type FlickrConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	PerPage           int           `mapstructure:"per_page"`
	MaxPhotos         int           `mapstructure:"max_photos"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	BreakerFailures   uint32        `mapstructure:"breaker_failures"`
	BreakerOpenFor    time.Duration `mapstructure:"breaker_open_for"`
}

type CacheConfig struct {
	Dir         string `mapstructure:"dir"`
	Ext         string `mapstructure:"ext"`
	MemoryLimit int    `mapstructure:"memory_limit"`
}

type LoaderConfig struct {
	Workers    int           `mapstructure:"workers"`
	Timeout    time.Duration `mapstructure:"timeout"`
	ThumbWidth int           `mapstructure:"thumb_width"`
}

type LogConfig struct {
	File        string `mapstructure:"file"`
	LogglyToken string `mapstructure:"loggly_token"`
	MemoryLines int    `mapstructure:"memory_lines"`
}

type GeocodingConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Language []string `mapstructure:"language"`
}

var ErrMissingAPIKey = errors.New("no API key configured, set flickr.api_key or " + EnvPrefix + "_FLICKR_API_KEY")

// SetDefaults registers the default value of every setting
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.dev", false)
	v.SetDefault("library.dir", defaultDir(os.UserConfigDir, "library"))
	v.SetDefault("flickr.api_key", "")
	v.SetDefault("flickr.base_url", "https://api.flickr.com/services/rest/")
	v.SetDefault("flickr.per_page", 100)
	v.SetDefault("flickr.max_photos", 4000)
	v.SetDefault("flickr.timeout", "30s")
	v.SetDefault("flickr.requests_per_second", 0)
	v.SetDefault("flickr.burst", 1)
	v.SetDefault("flickr.breaker_failures", 0)
	v.SetDefault("flickr.breaker_open_for", "1m")
	v.SetDefault("cache.dir", defaultDir(os.UserCacheDir, "Images"))
	v.SetDefault("cache.ext", ".png")
	v.SetDefault("cache.memory_limit", 500)
	v.SetDefault("loader.workers", 4)
	v.SetDefault("loader.timeout", "30s")
	v.SetDefault("loader.thumb_width", 640)
	v.SetDefault("log.file", "")
	v.SetDefault("log.loggly_token", "")
	v.SetDefault("log.memory_lines", 1000)
	v.SetDefault("geocoding.enabled", false)
	v.SetDefault("geocoding.language", []string{"en"})
}

// Load reads the configuration. If cfgFile is empty, pinphotos.yaml is
// searched in the working directory and .pinphotos.yaml in the home
// directory; a missing file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigType("yaml")
		v.SetConfigName("pinphotos")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		v.SetConfigName(".pinphotos")
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings needed to search photos
func (c *Config) Validate() error {
	if c.Flickr.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Flickr.PerPage <= 0 {
		return fmt.Errorf("flickr.per_page must be positive, got %d", c.Flickr.PerPage)
	}
	if c.Flickr.MaxPhotos <= 0 {
		return fmt.Errorf("flickr.max_photos must be positive, got %d", c.Flickr.MaxPhotos)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

func defaultDir(userDir func() (string, error), sub string) string {
	base, err := userDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "pinphotos", sub)
}
