package config

import (
	"os"
	"time"
)

// Config carries the CLI's environment-driven settings. The library itself
// takes these as explicit options; nothing here is read by the adapters.
type Config struct {
	UserAgent         string
	ImgurClientID     string
	StreamableVersion string

	HTTPTimeout  time.Duration
	PollInterval time.Duration
	WaitTimeout  time.Duration
}

func Load() Config {
	cfg := Config{
		UserAgent:         os.Getenv("VHP_USER_AGENT"),
		ImgurClientID:     os.Getenv("IMGUR_CLIENT_ID"),
		StreamableVersion: os.Getenv("STREAMABLE_VERSION"),

		HTTPTimeout:  5 * time.Minute,
		PollInterval: 5 * time.Second,
		WaitTimeout:  10 * time.Minute,
	}

	if v := os.Getenv("VHP_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTPTimeout = d
		}
	}
	if v := os.Getenv("VHP_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PollInterval = d
		}
	}
	if v := os.Getenv("VHP_WAIT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.WaitTimeout = d
		}
	}

	return cfg
}
