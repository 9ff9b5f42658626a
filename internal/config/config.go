// Package config resolves client configuration from environment variables
// and flags.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

// Config holds all client configuration.
type Config struct {
	// ServerURL is the backend base URL (http or https).
	ServerURL string

	// Grace is how long to wait for the duplex channel before the REST
	// fallback becomes authoritative.
	Grace time.Duration

	// CallTimeout bounds a single fallback request.
	CallTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults: a local backend
// and the grace window the web client shipped with.
func DefaultConfig() Config {
	return Config{
		ServerURL:   "http://localhost:8000",
		Grace:       3 * time.Second,
		CallTimeout: 60 * time.Second,
	}
}

// FromEnv builds a Config from defaults overridden by environment:
// INTERVO_SERVER, INTERVO_GRACE, INTERVO_TIMEOUT.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("INTERVO_SERVER"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("INTERVO_GRACE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("INTERVO_GRACE: %w", err)
		}
		cfg.Grace = d
	}
	if v := os.Getenv("INTERVO_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("INTERVO_TIMEOUT: %w", err)
		}
		cfg.CallTimeout = d
	}

	return cfg, cfg.Validate()
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server URL must be http or https, got %q", c.ServerURL)
	}
	if u.Host == "" {
		return fmt.Errorf("server URL has no host: %q", c.ServerURL)
	}
	if c.Grace <= 0 {
		return fmt.Errorf("grace window must be positive, got %s", c.Grace)
	}
	return nil
}

// ChannelURL derives the WebSocket base URL from the server URL
// (http becomes ws, https becomes wss).
func (c Config) ChannelURL() (string, error) {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return "", fmt.Errorf("server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("cannot derive channel URL from %q", c.ServerURL)
	}
	return u.String(), nil
}
