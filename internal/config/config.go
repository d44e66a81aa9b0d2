// Package config loads and saves the global ~/.pigeon/config.toml.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the global daemon configuration.
type Config struct {
	DefaultAccount string  `toml:"default_account"`
	Gateway        Gateway `toml:"gateway"`
	Drain          Drain   `toml:"drain"`
}

// Gateway configures the remote gateway client.
type Gateway struct {
	BaseURL   string `toml:"base_url"`
	TimeoutMS int    `toml:"timeout_ms"`
}

// Drain configures the outbox drain loop.
type Drain struct {
	IntervalMS int `toml:"interval_ms"`
	// MaxAttempts caps delivery attempts per job; 0 retries forever.
	// Jobs over the cap are skipped, never deleted.
	MaxAttempts int `toml:"max_attempts"`
	// PruneSuperseded removes undelivered jobs that a newer job marks as
	// its resend target before each drain pass.
	PruneSuperseded bool `toml:"prune_superseded"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Gateway: Gateway{TimeoutMS: 10_000},
		Drain:   Drain{IntervalMS: 500, PruneSuperseded: true},
	}
}

// Timeout returns the gateway request timeout.
func (g Gateway) Timeout() time.Duration {
	if g.TimeoutMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(g.TimeoutMS) * time.Millisecond
}

// Interval returns the drain poll interval.
func (d Drain) Interval() time.Duration {
	if d.IntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(d.IntervalMS) * time.Millisecond
}

// Load reads config from the given path. Returns an error if the file is
// missing or malformed.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
