package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Terminal  TerminalConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// AuthConfig holds access token configuration.
//
// Token may be supplied directly via RUNOTEBOOK_TOKEN. When empty, a
// random token is generated on first start and persisted to ConfigFile
// so it survives restarts (see EnsureToken).
type AuthConfig struct {
	Token      string `envconfig:"RUNOTEBOOK_TOKEN" default:""`
	ConfigFile string `envconfig:"RUNOTEBOOK_CONFIG_FILE" default:""`
}

// TerminalConfig holds defaults for new terminal sessions.
type TerminalConfig struct {
	Shell       string `envconfig:"TERMINAL_SHELL" default:""`
	WorkingDir  string `envconfig:"TERMINAL_WORKDIR" default:""`
	DefaultCols int    `envconfig:"TERMINAL_COLS" default:"80"`
	DefaultRows int    `envconfig:"TERMINAL_ROWS" default:"24"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration for the HTTP API.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Terminal: TerminalConfig{
			DefaultCols: 80,
			DefaultRows: 24,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
