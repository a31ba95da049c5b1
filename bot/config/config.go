// Package config aggregates the application configuration: the reusable
// core settings plus the database and scraper tuning specific to this bot.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/appleidbot/core/config"
	coredatabase "github.com/m3rciful/appleidbot/core/database"
)

// ScraperConfig tunes the inbox scraping pipeline. Zero durations fall back
// to the built-in defaults of the scraper package.
type ScraperConfig struct {
	BaseURL   string `yaml:"base_url" envconfig:"SCRAPER_BASE_URL"`
	Authority string `yaml:"authority" envconfig:"SCRAPER_AUTHORITY"`

	MaxRetries int `yaml:"max_retries" envconfig:"SCRAPER_MAX_RETRIES"`

	PreFetchDelayMinMS int `yaml:"pre_fetch_delay_min_ms" envconfig:"SCRAPER_PRE_FETCH_DELAY_MIN_MS"`
	PreFetchDelayMaxMS int `yaml:"pre_fetch_delay_max_ms" envconfig:"SCRAPER_PRE_FETCH_DELAY_MAX_MS"`
	PreParseDelayMinMS int `yaml:"pre_parse_delay_min_ms" envconfig:"SCRAPER_PRE_PARSE_DELAY_MIN_MS"`
	PreParseDelayMaxMS int `yaml:"pre_parse_delay_max_ms" envconfig:"SCRAPER_PRE_PARSE_DELAY_MAX_MS"`
	RetryBackoffMinMS  int `yaml:"retry_backoff_min_ms" envconfig:"SCRAPER_RETRY_BACKOFF_MIN_MS"`
	RetryBackoffMaxMS  int `yaml:"retry_backoff_max_ms" envconfig:"SCRAPER_RETRY_BACKOFF_MAX_MS"`
}

// Config is the full application configuration.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Database coredatabase.Config `yaml:"database"`
	Scraper  ScraperConfig       `yaml:"scraper"`
}

// Load reads the YAML config file and applies environment overrides.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalize(cfg *Config) error {
	if len(cfg.Core.Telegram.AdminHandles) == 0 && len(cfg.Core.Telegram.AdminIDs) == 0 {
		return fmt.Errorf("at least one admin handle or admin id is required")
	}
	if cfg.Scraper.MaxRetries < 0 {
		return fmt.Errorf("scraper.max_retries must be >= 0")
	}
	return nil
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Core
}

// Delay converts a millisecond knob into a duration, zero when unset.
func Delay(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
