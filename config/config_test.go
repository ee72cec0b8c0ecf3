package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default() does not validate: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feed.yaml")
	content := `
feed_url: wss://feed.example.com/ws
max_reconnect_attempts: 3
reconnect_delay: 500ms
reconnect_delay_max: 2s
book_throttle_window: 100ms
history_limit: 250
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.FeedURL != "wss://feed.example.com/ws" {
		t.Errorf("FeedURL = %q", cfg.FeedURL)
	}
	if cfg.MaxReconnectAttempts != 3 {
		t.Errorf("MaxReconnectAttempts = %d, expected 3", cfg.MaxReconnectAttempts)
	}
	if cfg.ReconnectDelay != 500*time.Millisecond {
		t.Errorf("ReconnectDelay = %v, expected 500ms", cfg.ReconnectDelay)
	}
	if cfg.BookThrottleWindow != 100*time.Millisecond {
		t.Errorf("BookThrottleWindow = %v, expected 100ms", cfg.BookThrottleWindow)
	}
	// Unset keys keep their defaults.
	if cfg.BookMinQuantity != Default().BookMinQuantity {
		t.Errorf("BookMinQuantity = %v, expected default", cfg.BookMinQuantity)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feed.yaml")
	if err := os.WriteFile(path, []byte("feed_url: ws://file.example.com/ws\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("FEED_WS_URL", "ws://env.example.com/ws")
	t.Setenv("FEED_MAX_RECONNECT_ATTEMPTS", "9")
	t.Setenv("FEED_RECONNECT_DELAY", "250ms")
	t.Setenv("FEED_BOOK_MIN_QUANTITY", "1e-6")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.FeedURL != "ws://env.example.com/ws" {
		t.Errorf("FeedURL = %q, expected the env value", cfg.FeedURL)
	}
	if cfg.MaxReconnectAttempts != 9 {
		t.Errorf("MaxReconnectAttempts = %d, expected 9", cfg.MaxReconnectAttempts)
	}
	if cfg.ReconnectDelay != 250*time.Millisecond {
		t.Errorf("ReconnectDelay = %v, expected 250ms", cfg.ReconnectDelay)
	}
	if cfg.BookMinQuantity != 1e-6 {
		t.Errorf("BookMinQuantity = %v, expected 1e-6", cfg.BookMinQuantity)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty feed url", func(c *Config) { c.FeedURL = "" }},
		{"zero attempts", func(c *Config) { c.MaxReconnectAttempts = 0 }},
		{"zero delay", func(c *Config) { c.ReconnectDelay = 0 }},
		{"cap below initial delay", func(c *Config) { c.ReconnectDelayMax = c.ReconnectDelay / 2 }},
		{"negative throttle window", func(c *Config) { c.BookThrottleWindow = -time.Second }},
		{"negative min quantity", func(c *Config) { c.BookMinQuantity = -1 }},
		{"zero history limit", func(c *Config) { c.HistoryLimit = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}
