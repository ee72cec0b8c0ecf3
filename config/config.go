package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the feed-layer settings. Values come from an optional YAML
// file overridden by environment variables; Default covers the rest.
type Config struct {
	// FeedURL is the websocket endpoint of the market-data feed.
	FeedURL string `yaml:"feed_url"`

	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	ReconnectDelayMax    time.Duration `yaml:"reconnect_delay_max"`

	BookThrottleWindow time.Duration `yaml:"book_throttle_window"`
	BookMinQuantity    float64       `yaml:"book_min_quantity"`

	HistoryLimit int `yaml:"history_limit"`
}

func Default() *Config {
	return &Config{
		FeedURL:              "ws://localhost:8080/ws",
		MaxReconnectAttempts: 5,
		ReconnectDelay:       1 * time.Second,
		ReconnectDelayMax:    5 * time.Second,
		BookThrottleWindow:   200 * time.Millisecond,
		BookMinQuantity:      1e-8,
		HistoryLimit:         500,
	}
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and validates the result. A .env file in the working
// directory is honored if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.FeedURL = getEnv("FEED_WS_URL", c.FeedURL)
	c.MaxReconnectAttempts = getEnvInt("FEED_MAX_RECONNECT_ATTEMPTS", c.MaxReconnectAttempts)
	c.ReconnectDelay = getEnvDuration("FEED_RECONNECT_DELAY", c.ReconnectDelay)
	c.ReconnectDelayMax = getEnvDuration("FEED_RECONNECT_DELAY_MAX", c.ReconnectDelayMax)
	c.BookThrottleWindow = getEnvDuration("FEED_BOOK_THROTTLE_WINDOW", c.BookThrottleWindow)
	c.BookMinQuantity = getEnvFloat("FEED_BOOK_MIN_QUANTITY", c.BookMinQuantity)
	c.HistoryLimit = getEnvInt("FEED_HISTORY_LIMIT", c.HistoryLimit)
}

func (c *Config) Validate() error {
	if c.FeedURL == "" {
		return fmt.Errorf("feed URL cannot be empty")
	}
	if c.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("max reconnect attempts must be greater than 0")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect delay must be greater than 0")
	}
	if c.ReconnectDelayMax < c.ReconnectDelay {
		return fmt.Errorf("reconnect delay cap %s is below the initial delay %s", c.ReconnectDelayMax, c.ReconnectDelay)
	}
	if c.BookThrottleWindow < 0 {
		return fmt.Errorf("book throttle window cannot be negative")
	}
	if c.BookMinQuantity < 0 {
		return fmt.Errorf("book minimum quantity cannot be negative")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be greater than 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
