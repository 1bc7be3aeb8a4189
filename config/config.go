// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. PROCUREMENT_PORT.
const EnvPrefix = "PROCUREMENT"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port             string        `mapstructure:"PORT"`
	Storage          string        `mapstructure:"STORAGE"`
	DatabasePath     string        `mapstructure:"DATABASE_PATH"`
	PrimaryWarehouse string        `mapstructure:"PRIMARY_WAREHOUSE"`
	AssumedStock     int           `mapstructure:"ASSUMED_STOCK"`
	StageDelays      string        `mapstructure:"STAGE_DELAYS"`
	SubmitDelay      time.Duration `mapstructure:"SUBMIT_DELAY"`
	RedisURL         string        `mapstructure:"REDIS_URL"`
	AllowedOrigins   string        `mapstructure:"ALLOWED_ORIGINS"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	LogFormat        string        `mapstructure:"LOG_FORMAT"`
	SeedPath         string        `mapstructure:"SEED_PATH"`
	Env              string        `mapstructure:"APP_ENV"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("STORAGE", "sqlite")
	v.SetDefault("DATABASE_PATH", ":memory:")
	v.SetDefault("PRIMARY_WAREHOUSE", "wh-central")
	v.SetDefault("ASSUMED_STOCK", 100)
	v.SetDefault("STAGE_DELAYS", "2s,4s,6s,8s,10s")
	v.SetDefault("SUBMIT_DELAY", "1s")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("SEED_PATH", "")
	v.SetDefault("APP_ENV", "development")
}

// Load reads .env (if present), then the optional YAML file at path, then
// PROCUREMENT_* environment variables. Later sources win.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate ensures that required configuration values are present and usable.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.Storage != "sqlite" && c.Storage != "memory" {
		return fmt.Errorf("STORAGE must be sqlite or memory, got %q", c.Storage)
	}
	if c.Storage == "sqlite" && c.DatabasePath == "" {
		return errors.New("DATABASE_PATH is required for sqlite storage")
	}
	if c.PrimaryWarehouse == "" {
		return errors.New("PRIMARY_WAREHOUSE is required")
	}
	if c.AssumedStock < 0 {
		return errors.New("ASSUMED_STOCK cannot be negative")
	}
	if _, err := c.StageDelayDurations(); err != nil {
		return err
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// StageDelayDurations parses STAGE_DELAYS, one duration per purchasing stage.
func (c *Config) StageDelayDurations() ([]time.Duration, error) {
	parts := strings.Split(c.StageDelays, ",")
	if len(parts) != 5 {
		return nil, fmt.Errorf("STAGE_DELAYS needs 5 comma separated durations, got %d", len(parts))
	}
	out := make([]time.Duration, len(parts))
	for i, p := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("STAGE_DELAYS entry %d: %w", i+1, err)
		}
		if i > 0 && d < out[i-1] {
			return nil, fmt.Errorf("STAGE_DELAYS must be non-decreasing, entry %d is %s", i+1, d)
		}
		out[i] = d
	}
	return out, nil
}

// Origins splits ALLOWED_ORIGINS.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}
