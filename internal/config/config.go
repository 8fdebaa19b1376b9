package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const appDirName = "privateer"

// Config struct for environment variables. Runtime settings that the user can
// change from the frontend live in Settings instead.
type Config struct {
	DataDir           string        `envconfig:"DATA_DIR"`
	PollInterval      time.Duration `envconfig:"POLL_INTERVAL" default:"30s"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"INFO"`
	DiscordWebhookURL string        `envconfig:"DISCORD_WEBHOOK_URL"`

	Telemetry struct {
		Enabled bool `split_words:"true" default:"true"`
	}

	Web struct {
		BindAddress     string        `split_words:"true" default:"127.0.0.1:7177"`
		Username        string        `split_words:"true"`
		Password        string        `split_words:"true"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
// DataDir defaults to an application directory under the user's config dir.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	if cfg.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("no data dir configured and no user config dir: %w", err)
		}

		cfg.DataDir = filepath.Join(base, appDirName)
	}

	return &cfg, nil
}

// LedgerPath is the location of the tracked-downloads file.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "downloads.json")
}

// SettingsPath is the location of the user settings file.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.DataDir, "config.json")
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
