// Package config loads idea-plate configuration from a YAML file and
// IDEAPLATE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete service configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Storage  StorageConfig  `koanf:"storage"`
	Events   EventsConfig   `koanf:"events"`
	Logging  LoggingConfig  `koanf:"logging"`
	Auth     AuthConfig     `koanf:"auth"`
	GitHub   GitHubConfig   `koanf:"github"`
	Profiles ProfilesConfig `koanf:"profiles"`
	Feed     FeedConfig     `koanf:"feed"`
}

// HTTPConfig holds REST server configuration.
type HTTPConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// RateLimit is the sustained write rate per caller, in requests per second.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// StorageConfig holds database settings.
type StorageConfig struct {
	DataDir string `koanf:"data_dir"`
}

// EventsConfig holds change-notification settings. An empty NATSURL runs an
// embedded NATS server.
type EventsConfig struct {
	NATSURL string `koanf:"nats_url"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// AuthConfig holds the static bearer tokens accepted by the identity layer.
type AuthConfig struct {
	Tokens []TokenConfig `koanf:"tokens"`
}

// TokenConfig maps one bearer token to an identity.
type TokenConfig struct {
	Token         Secret `koanf:"token"`
	UID           string `koanf:"uid"`
	Email         string `koanf:"email"`
	DisplayName   string `koanf:"display_name"`
	EmailVerified bool   `koanf:"email_verified"`
}

// GitHubConfig holds the OAuth app used for GitHub account linking. Linking
// is disabled when ClientID is empty.
type GitHubConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret Secret `koanf:"client_secret"`
	RedirectURL  string `koanf:"redirect_url"`
}

// Enabled reports whether GitHub linking is configured.
func (g GitHubConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret.IsSet()
}

// ProfilesConfig holds profile settings.
type ProfilesConfig struct {
	// RenamePasses bounds the author-name fan-out loop.
	RenamePasses int `koanf:"rename_passes"`
}

// FeedConfig holds feed settings.
type FeedConfig struct {
	PageSize int `koanf:"page_size"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "127.0.0.1"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.HTTP.RateLimit == 0 {
		cfg.HTTP.RateLimit = 5
	}
	if cfg.HTTP.RateBurst == 0 {
		cfg.HTTP.RateBurst = 20
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "./data"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Profiles.RenamePasses == 0 {
		cfg.Profiles.RenamePasses = 3
	}
	if cfg.Feed.PageSize == 0 {
		cfg.Feed.PageSize = 50
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port: %d (must be 1-65535)", c.HTTP.Port)
	}
	if c.HTTP.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.HTTP.RateLimit < 0 || c.HTTP.RateBurst < 0 {
		return errors.New("rate limit and burst must not be negative")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	if c.Profiles.RenamePasses < 1 {
		return fmt.Errorf("profiles rename_passes must be >= 1, got %d", c.Profiles.RenamePasses)
	}
	if c.Feed.PageSize < 1 || c.Feed.PageSize > 50 {
		return fmt.Errorf("feed page_size must be 1-50, got %d", c.Feed.PageSize)
	}

	seen := make(map[string]bool, len(c.Auth.Tokens))
	for i, tok := range c.Auth.Tokens {
		if !tok.Token.IsSet() || tok.UID == "" {
			return fmt.Errorf("auth token %d: token and uid are required", i)
		}
		if seen[tok.Token.Value()] {
			return fmt.Errorf("auth token %d: duplicate token", i)
		}
		seen[tok.Token.Value()] = true
	}

	if c.GitHub.ClientID != "" && c.GitHub.RedirectURL == "" {
		return errors.New("github redirect_url is required when client_id is set")
	}
	return nil
}
