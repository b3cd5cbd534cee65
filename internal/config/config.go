// Package config provides configuration types and loading for goalbot.
package config

import (
	"errors"
	"time"
)

// ErrMissingToken is returned by Validate when no Telegram bot token is configured.
var ErrMissingToken = errors.New("telegram token is required")

// Config is the root configuration struct.
// Top-level groups: Telegram, Poll, Store, Logging, Events.
type Config struct {
	Telegram TelegramConfig `toml:"telegram" json:"telegram"`
	Poll     PollConfig     `toml:"poll" json:"poll"`
	Store    StoreConfig    `toml:"store" json:"store"`
	Logging  LoggingConfig  `toml:"logging" json:"logging"`
	Events   EventsConfig   `toml:"events" json:"events"`
}

// ---------------------------------------------------------------------------
// Telegram – messaging provider
// ---------------------------------------------------------------------------

// TelegramConfig configures the Telegram Bot API client.
type TelegramConfig struct {
	Token    string  `toml:"token" json:"token" envconfig:"TELEGRAM_TOKEN"`
	BaseURL  string  `toml:"baseUrl" json:"baseUrl" envconfig:"TELEGRAM_BASE_URL"`
	SendRate float64 `toml:"sendRate" json:"sendRate" envconfig:"TELEGRAM_SEND_RATE"` // messages per second
}

// ---------------------------------------------------------------------------
// Poll – update loop behaviour
// ---------------------------------------------------------------------------

// PollConfig groups long-poll settings.
type PollConfig struct {
	Timeout            time.Duration `toml:"timeout" json:"timeout" envconfig:"POLL_TIMEOUT"`
	Backoff            time.Duration `toml:"backoff" json:"backoff" envconfig:"POLL_BACKOFF"`
	MaxConcurrentChats int           `toml:"maxConcurrentChats" json:"maxConcurrentChats" envconfig:"POLL_MAX_CONCURRENT_CHATS"`
}

// ---------------------------------------------------------------------------
// Store – goal database
// ---------------------------------------------------------------------------

// StoreConfig configures the SQLite database.
type StoreConfig struct {
	Path string `toml:"path" json:"path" envconfig:"STORE_PATH"`
}

// ---------------------------------------------------------------------------
// Logging
// ---------------------------------------------------------------------------

// LoggingConfig configures the slog logger.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level" envconfig:"LOG_LEVEL"`
	Format     string `toml:"format" json:"format" envconfig:"LOG_FORMAT"` // "text" or "json"
	File       string `toml:"file" json:"file" envconfig:"LOG_FILE"`
	MaxSizeMB  int    `toml:"maxSizeMb" json:"maxSizeMb" envconfig:"LOG_MAX_SIZE_MB"`
	MaxBackups int    `toml:"maxBackups" json:"maxBackups" envconfig:"LOG_MAX_BACKUPS"`
	MaxAgeDays int    `toml:"maxAgeDays" json:"maxAgeDays" envconfig:"LOG_MAX_AGE_DAYS"`
}

// ---------------------------------------------------------------------------
// Events – domain event stream via Kafka
// ---------------------------------------------------------------------------

// EventsConfig contains settings for publishing bot events.
type EventsConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" envconfig:"EVENTS_ENABLED"`
	Brokers string `toml:"brokers" json:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic   string `toml:"topic" json:"topic" envconfig:"EVENTS_TOPIC"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			BaseURL:  "https://api.telegram.org",
			SendRate: 25,
		},
		Poll: PollConfig{
			Timeout:            60 * time.Second,
			Backoff:            3 * time.Second,
			MaxConcurrentChats: 8,
		},
		Store: StoreConfig{
			Path: "~/.goalbot/goalbot.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 10,
		},
		Events: EventsConfig{
			Enabled: false,
			Brokers: "localhost:9092",
			Topic:   "goalbot.events",
		},
	}
}

// Validate checks the settings the bot cannot start without.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return ErrMissingToken
	}
	if c.Poll.Timeout < time.Second {
		c.Poll.Timeout = time.Second
	}
	if c.Poll.MaxConcurrentChats <= 0 {
		c.Poll.MaxConcurrentChats = 1
	}
	return nil
}
