package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8600", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 256, cfg.Server.MaxConnections)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	// Terminal config
	assert.Equal(t, StrategyAuto, cfg.Terminal.Strategy)
	assert.Empty(t, cfg.Terminal.Shell)
	assert.Equal(t, uint16(80), cfg.Terminal.DefaultCols)
	assert.Equal(t, uint16(24), cfg.Terminal.DefaultRows)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestLoadOrDefault(t *testing.T) {
	// Should return default when no env vars set
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "8600", cfg.Server.Port)
	assert.Equal(t, StrategyAuto, cfg.Terminal.Strategy)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":               "9000",
		"HOST":               "127.0.0.1",
		"MAX_CONNECTIONS":    "32",
		"SHUTDOWN_TIMEOUT":   "3s",
		"TERMINAL_STRATEGY":  "subprocess",
		"TERMINAL_SHELL":     "/bin/sh",
		"TERMINAL_COLS":      "120",
		"TERMINAL_ROWS":      "40",
		"WS_ALLOWED_ORIGINS": "https://a.example,https://b.example",
		"LOG_LEVEL":          "debug",
		"LOG_DEV":            "true",
		"RATE_LIMIT_RPS":     "500",
		"RATE_LIMIT_BURST":   "1000",
		"RATE_LIMIT_ENABLED": "false",
	}

	for key, value := range envVars {
		err := os.Setenv(key, value)
		require.NoError(t, err)
		defer os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 32, cfg.Server.MaxConnections)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, StrategySubprocess, cfg.Terminal.Strategy)
	assert.Equal(t, "/bin/sh", cfg.Terminal.Shell)
	assert.Equal(t, uint16(120), cfg.Terminal.DefaultCols)
	assert.Equal(t, uint16(40), cfg.Terminal.DefaultRows)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.WS.AllowedOrigins)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadRejectsInvalidStrategy(t *testing.T) {
	err := os.Setenv("TERMINAL_STRATEGY", "telepathy")
	require.NoError(t, err)
	defer os.Unsetenv("TERMINAL_STRATEGY")

	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telepathy")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "default is valid",
			mutate:  func(cfg *Config) {},
			wantErr: false,
		},
		{
			name:    "forced native strategy",
			mutate:  func(cfg *Config) { cfg.Terminal.Strategy = StrategyNative },
			wantErr: false,
		},
		{
			name:    "unknown strategy",
			mutate:  func(cfg *Config) { cfg.Terminal.Strategy = "always" },
			wantErr: true,
		},
		{
			name:    "zero cols",
			mutate:  func(cfg *Config) { cfg.Terminal.DefaultCols = 0 },
			wantErr: true,
		},
		{
			name:    "zero rows",
			mutate:  func(cfg *Config) { cfg.Terminal.DefaultRows = 0 },
			wantErr: true,
		},
		{
			name:    "empty port",
			mutate:  func(cfg *Config) { cfg.Server.Port = "" },
			wantErr: true,
		},
		{
			name:    "non-positive max connections",
			mutate:  func(cfg *Config) { cfg.Server.MaxConnections = 0 },
			wantErr: true,
		},
		{
			name: "rate limit enabled with zero rps",
			mutate: func(cfg *Config) {
				cfg.RateLimit.Enabled = true
				cfg.RateLimit.RequestsPerSecond = 0
			},
			wantErr: true,
		},
		{
			name: "rate limit disabled ignores values",
			mutate: func(cfg *Config) {
				cfg.RateLimit.Enabled = false
				cfg.RateLimit.RequestsPerSecond = 0
				cfg.RateLimit.Burst = 0
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server:\n  port: \"7700\"\nterminal:\n  strategy: subprocess\n  shell: /bin/dash\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg := Default()
	require.NoError(t, LoadFile(path, cfg))

	assert.Equal(t, "7700", cfg.Server.Port)
	assert.Equal(t, StrategySubprocess, cfg.Terminal.Strategy)
	assert.Equal(t, "/bin/dash", cfg.Terminal.Shell)
	// Untouched sections keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, uint16(80), cfg.Terminal.DefaultCols)
}

func TestLoadFileTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := []byte("[server]\nport = \"7701\"\n\n[logging]\nlevel = \"warn\"\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg := Default()
	require.NoError(t, LoadFile(path, cfg))

	assert.Equal(t, "7701", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, StrategyAuto, cfg.Terminal.Strategy)
}

func TestLoadFileUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte("port=1"), 0o644))

	err := LoadFile(path, Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config file extension")
}

func TestLoadFileMissing(t *testing.T) {
	err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"), Default())
	assert.Error(t, err)
}

func TestConfigFileOverridesEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("terminal:\n  strategy: native\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	for key, value := range map[string]string{
		"TERMINAL_STRATEGY": "subprocess",
		FileEnvVar:          path,
	} {
		require.NoError(t, os.Setenv(key, value))
		defer os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StrategyNative, cfg.Terminal.Strategy)
}
