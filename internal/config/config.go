// /internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration read from the environment.
type Config struct {
	DiscordToken  string        `env:"DISCORD_TOKEN"`
	ModulesDir    string        `env:"MODULES_DIR" envDefault:"modules"`
	SettingsPath  string        `env:"SETTINGS_PATH" envDefault:"settings.json"`
	StorageDriver string        `env:"STORAGE_DRIVER" envDefault:"json"`
	StorageDSN    string        `env:"STORAGE_DSN" envDefault:"datastore.json"`
	DefaultPrefix string        `env:"DEFAULT_PREFIX" envDefault:"!"`
	OwnerIDs      []string      `env:"OWNER_IDS" envSeparator:","`
	NoticeTTL     time.Duration `env:"NOTICE_TTL" envDefault:"5s"`
	GuildCacheTTL time.Duration `env:"GUILD_CACHE_TTL" envDefault:"5m"`
	IgnoreBots    bool          `env:"IGNORE_BOTS" envDefault:"true"`
	WatchModules  bool          `env:"WATCH_MODULES" envDefault:"false"`
	MetricsAddr   string        `env:"METRICS_ADDR"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
}

// New loads .env (when present) and parses the environment into a Config.
func New() (*Config, error) {
	// a missing .env is fine, the process environment is used as is
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that do not depend on which command is run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DefaultPrefix) == "" {
		return errors.New("DEFAULT_PREFIX must not be empty")
	}
	if c.NoticeTTL < 0 {
		return errors.New("NOTICE_TTL must not be negative")
	}
	switch c.StorageDriver {
	case "json", "sqlite", "postgres":
	default:
		return fmt.Errorf("STORAGE_DRIVER %q is not one of json, sqlite, postgres", c.StorageDriver)
	}
	return nil
}

// RequireToken reports an error when no bot token is configured.
func (c *Config) RequireToken() error {
	if c.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN is not set")
	}
	return nil
}

// IsOwner reports whether userID is one of the configured bot owners.
func IsOwner(c *Config, userID string) bool {
	if c == nil || userID == "" {
		return false
	}
	return slices.Contains(c.OwnerIDs, userID)
}
