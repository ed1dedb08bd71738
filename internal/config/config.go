// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config captures environment-driven settings for the service.
type Config struct {
	HTTPAddr string `env:"WALLETAUTH_HTTP_ADDR,default=:9000"`
	AppName  string `env:"WALLETAUTH_APP_NAME,default=Barong"`

	Store    string `env:"WALLETAUTH_STORE,default=memory"`
	RedisURL string `env:"REDIS_URL,default=redis://localhost:6379/0"`

	ChallengeTTL  time.Duration `env:"WALLETAUTH_CHALLENGE_TTL,default=5m"`
	SweepInterval time.Duration `env:"WALLETAUTH_SWEEP_INTERVAL,default=1m"`
	AccessTTL     time.Duration `env:"WALLETAUTH_ACCESS_TTL,default=5m"`
	RefreshTTL    time.Duration `env:"WALLETAUTH_REFRESH_TTL,default=120h"`

	// PEM encoded P-256 key signing session tokens; an ephemeral key is
	// generated when empty.
	SigningKeyFile string `env:"WALLETAUTH_SIGNING_KEY_FILE"`

	LogLevel  string `env:"WALLETAUTH_LOG_LEVEL,default=info"`
	LogFormat string `env:"WALLETAUTH_LOG_FORMAT,default=text"`

	RateLimit float64 `env:"WALLETAUTH_RATE_LIMIT,default=5"`
	RateBurst int     `env:"WALLETAUTH_RATE_BURST,default=10"`
}

// Load reads an optional .env file and decodes the environment into a Config.
// Variables already present in the environment win over the .env file.
func Load() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return Config{}, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("failed to decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the values that have no safe fallback.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store)
	}

	durations := map[string]time.Duration{
		"challenge ttl":  c.ChallengeTTL,
		"sweep interval": c.SweepInterval,
		"access ttl":     c.AccessTTL,
		"refresh ttl":    c.RefreshTTL,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return errors.New("rate limit and burst must be positive")
	}

	return nil
}
