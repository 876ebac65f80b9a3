package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Terminal strategy names accepted by TerminalConfig.Strategy.
const (
	StrategyAuto       = "auto"
	StrategyNative     = "native"
	StrategySubprocess = "subprocess"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Terminal  TerminalConfig  `yaml:"terminal" toml:"terminal"`
	WS        WSConfig        `yaml:"ws" toml:"ws"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8600" yaml:"port" toml:"port"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0" yaml:"host" toml:"host"`
	MaxConnections  int           `envconfig:"MAX_CONNECTIONS" default:"256" yaml:"max_connections" toml:"max_connections"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// TerminalConfig holds terminal backend configuration.
type TerminalConfig struct {
	// Strategy selects the backend: "auto" tries native first and falls
	// back to subprocess, "native" and "subprocess" force one backend.
	Strategy    string `envconfig:"TERMINAL_STRATEGY" default:"auto" yaml:"strategy" toml:"strategy"`
	Shell       string `envconfig:"TERMINAL_SHELL" default:"" yaml:"shell" toml:"shell"`
	DefaultCols uint16 `envconfig:"TERMINAL_COLS" default:"80" yaml:"default_cols" toml:"default_cols"`
	DefaultRows uint16 `envconfig:"TERMINAL_ROWS" default:"24" yaml:"default_rows" toml:"default_rows"`
}

// WSConfig holds WebSocket transport configuration.
type WSConfig struct {
	// AllowedOrigins limits upgrade requests; empty allows any origin.
	AllowedOrigins []string `envconfig:"WS_ALLOWED_ORIGINS" yaml:"allowed_origins" toml:"allowed_origins"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled" toml:"enabled"`
}

// Load loads configuration from environment variables, overlaying values
// from the file named by CONFIG_FILE when set.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := overlayFile(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
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
			Port:            "8600",
			Host:            "0.0.0.0",
			MaxConnections:  256,
			ShutdownTimeout: 10 * time.Second,
		},
		Terminal: TerminalConfig{
			Strategy:    StrategyAuto,
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

// Validate rejects configurations the server cannot safely run with.
func (c *Config) Validate() error {
	switch c.Terminal.Strategy {
	case StrategyAuto, StrategyNative, StrategySubprocess:
	default:
		return fmt.Errorf("invalid terminal strategy %q: must be %q, %q, or %q",
			c.Terminal.Strategy, StrategyAuto, StrategyNative, StrategySubprocess)
	}
	if c.Terminal.DefaultCols == 0 || c.Terminal.DefaultRows == 0 {
		return fmt.Errorf("invalid terminal size %dx%d: cols and rows must be positive",
			c.Terminal.DefaultCols, c.Terminal.DefaultRows)
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server port must not be empty")
	}
	if c.Server.MaxConnections <= 0 {
		return fmt.Errorf("invalid max connections %d: must be positive", c.Server.MaxConnections)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("invalid rate limit rps=%d burst=%d: must be positive when enabled",
			c.RateLimit.RequestsPerSecond, c.RateLimit.Burst)
	}
	return nil
}
