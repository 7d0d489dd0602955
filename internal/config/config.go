// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds the scanner configuration. Everything has a sensible default
// so a missing config.yaml still runs against ./cache and ./excluded.json.
type Config struct {
	CacheDir       string `yaml:"cache_dir"`
	ExclusionsFile string `yaml:"exclusions_file"`
	Workers        int    `yaml:"workers"`
	TopN           int    `yaml:"top_n"`
	Timezone       string `yaml:"timezone"`

	// Reference window: look back LookbackDays calendar days and keep the
	// TradingPeriods most recent trading days before the analysis day.
	LookbackDays   int `yaml:"lookback_days"`
	TradingPeriods int `yaml:"trading_periods"`

	MinBaseline    float64 `yaml:"min_baseline"`
	AlertThreshold float64 `yaml:"alert_threshold"`
	TickMillis     int     `yaml:"tick_millis"`

	Stream struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
	} `yaml:"stream"`
}

// Load reads YAML config from path and applies defaults. A missing file is
// not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = "cache"
	}
	if cfg.ExclusionsFile == "" {
		cfg.ExclusionsFile = "excluded.json"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 20
	}
	if strings.TrimSpace(cfg.Timezone) == "" {
		cfg.Timezone = "America/New_York"
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 50
	}
	if cfg.TradingPeriods <= 0 {
		cfg.TradingPeriods = 21
	}
	if cfg.MinBaseline <= 0 {
		cfg.MinBaseline = 1000
	}
	if cfg.AlertThreshold < 0 {
		cfg.AlertThreshold = 0
	}
	if cfg.TickMillis <= 0 {
		cfg.TickMillis = 250
	}
	return cfg, nil
}

// Validate checks values Load cannot default away.
func (c *Config) Validate() error {
	if c.Workers > 256 {
		return fmt.Errorf("workers: %d is unreasonable", c.Workers)
	}
	if c.TradingPeriods >= c.LookbackDays {
		return fmt.Errorf("trading_periods (%d) must be smaller than lookback_days (%d)", c.TradingPeriods, c.LookbackDays)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}

// Tick returns the render loop interval.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.TickMillis) * time.Millisecond
}

// Location resolves the exchange timezone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		loc, _ = time.LoadLocation("America/New_York")
	}
	return loc
}

// Credentials are the Alpaca API keys, taken from the environment (an .env
// file is honored when present).
type Credentials struct {
	KeyID     string `envconfig:"APCA_API_KEY_ID" required:"true"`
	SecretKey string `envconfig:"APCA_API_SECRET_KEY" required:"true"`
}

func LoadCredentials() (Credentials, error) {
	_ = godotenv.Load(".env")
	var creds Credentials
	if err := envconfig.Process("", &creds); err != nil {
		return Credentials{}, fmt.Errorf("credentials: %w", err)
	}
	return creds, nil
}
