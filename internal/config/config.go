// Package config loads homesync settings from an optional YAML file, then
// applies HOMESYNC_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Weather  WeatherConfig  `yaml:"weather"`
	Kiosk    KioskConfig    `yaml:"kiosk"`
}

type ServerConfig struct {
	Port               string `yaml:"port"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

type WeatherConfig struct {
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Location        string        `yaml:"location"`
	Units           string        `yaml:"units"`
	Lang            string        `yaml:"lang"`
	CacheTTLSeconds int           `yaml:"cache_ttl_seconds"`
	CacheTTL        time.Duration `yaml:"-"`
}

type KioskConfig struct {
	// PINHash is a bcrypt hash; see "homesync hash-pin". Empty disables the PIN.
	PINHash string `yaml:"pin_hash"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080", RateLimitPerMinute: 30},
		Database: DatabaseConfig{Path: "homesync.db"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Weather: WeatherConfig{
			Location:        "Saltillo",
			Units:           "metric",
			Lang:            "es",
			CacheTTLSeconds: 600,
		},
	}
}

// Load reads path (skipped when empty) over the defaults and applies the
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"HOMESYNC_PORT", &cfg.Server.Port},
		{"HOMESYNC_DB_PATH", &cfg.Database.Path},
		{"HOMESYNC_LOG_LEVEL", &cfg.Log.Level},
		{"HOMESYNC_LOG_FORMAT", &cfg.Log.Format},
		{"HOMESYNC_WEATHER_API_KEY", &cfg.Weather.APIKey},
		{"HOMESYNC_WEATHER_BASE_URL", &cfg.Weather.BaseURL},
		{"HOMESYNC_WEATHER_LOCATION", &cfg.Weather.Location},
		{"HOMESYNC_KIOSK_PIN_HASH", &cfg.Kiosk.PINHash},
	}
	for _, s := range strs {
		if v := getenv(s.key); v != "" {
			*s.dst = v
		}
	}

	if v := getenv("HOMESYNC_RATE_LIMIT_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HOMESYNC_RATE_LIMIT_PER_MINUTE: %w", err)
		}
		cfg.Server.RateLimitPerMinute = n
	}
	return nil
}

func (c *Config) normalize() error {
	switch c.Log.Format {
	case "", "text":
		c.Log.Format = "text"
	case "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.Server.RateLimitPerMinute <= 0 {
		c.Server.RateLimitPerMinute = 30
	}
	if c.Weather.CacheTTLSeconds < 0 {
		c.Weather.CacheTTLSeconds = 0
	}
	c.Weather.CacheTTL = time.Duration(c.Weather.CacheTTLSeconds) * time.Second
	return nil
}
