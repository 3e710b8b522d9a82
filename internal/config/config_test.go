package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:5001/purchase", cfg.Backend.URL)
	assert.Equal(t, "192.168.1.50:9100", cfg.Printer.Address)
	assert.Equal(t, 5, cfg.Queue.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Queue.BackoffBase)
	assert.Equal(t, 60*time.Second, cfg.Queue.BackoffCap)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 48, cfg.Receipt.Width)
	assert.False(t, cfg.NATS.Enabled)
	assert.False(t, cfg.History.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "printrelay.yaml")
	data := `
backend:
  url: ws://backend:5001/purchase
printer:
  address: 10.0.0.9:9100
  send_timeout: 2s
queue:
  max_attempts: 3
  backoff_base: 500ms
  backoff_cap: 10s
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://backend:5001/purchase", cfg.Backend.URL)
	assert.Equal(t, "10.0.0.9:9100", cfg.Printer.Address)
	assert.Equal(t, 2*time.Second, cfg.Printer.SendTimeout)
	assert.Equal(t, 3, cfg.Queue.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Queue.BackoffBase)
	assert.Equal(t, 10*time.Second, cfg.Queue.BackoffCap)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Untouched sections keep their defaults.
	assert.Equal(t, 48, cfg.Receipt.Width)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "printrelay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [broken"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PRINTRELAY_BACKEND_URL", "ws://other:5001/purchase")
	t.Setenv("PRINTRELAY_PRINTER_ADDR", "172.16.0.2:9100")
	t.Setenv("PRINTRELAY_PORT", "8181")
	t.Setenv("PRINTRELAY_NATS_URL", "nats://broker:4222")
	t.Setenv("PRINTRELAY_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "ws://other:5001/purchase", cfg.Backend.URL)
	assert.Equal(t, "172.16.0.2:9100", cfg.Printer.Address)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty backend url", func(c *Config) { c.Backend.URL = "" }},
		{"empty printer address", func(c *Config) { c.Printer.Address = "" }},
		{"zero send timeout", func(c *Config) { c.Printer.SendTimeout = 0 }},
		{"zero max attempts", func(c *Config) { c.Queue.MaxAttempts = 0 }},
		{"zero backoff base", func(c *Config) { c.Queue.BackoffBase = 0 }},
		{"cap below base", func(c *Config) { c.Queue.BackoffCap = c.Queue.BackoffBase / 2 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"history without dsn", func(c *Config) { c.History.Enabled = true; c.History.DSN = "" }},
		{"width too narrow", func(c *Config) { c.Receipt.Width = 10 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
