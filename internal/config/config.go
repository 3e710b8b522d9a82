package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Printer PrinterConfig `yaml:"printer"`
	Queue   QueueConfig   `yaml:"queue"`
	Server  ServerConfig  `yaml:"server"`
	NATS    NATSConfig    `yaml:"nats"`
	History HistoryConfig `yaml:"history"`
	Receipt ReceiptConfig `yaml:"receipt"`
	Logging LoggingConfig `yaml:"logging"`
}

// BackendConfig points at the real-time connection that emits purchases.
type BackendConfig struct {
	URL string `yaml:"url"`
}

type PrinterConfig struct {
	Address     string        `yaml:"address"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	SendTimeout time.Duration `yaml:"send_timeout"`
}

type QueueConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	BackoffCap  time.Duration `yaml:"backoff_cap"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type HistoryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DSN           string `yaml:"dsn"`
	MigrationsDir string `yaml:"migrations_dir"`
}

type ReceiptConfig struct {
	Width  int      `yaml:"width"`
	Header []string `yaml:"header"`
	Footer []string `yaml:"footer"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Backend: BackendConfig{
			URL: "ws://localhost:5001/purchase",
		},
		Printer: PrinterConfig{
			Address:     "192.168.1.50:9100",
			DialTimeout: 3 * time.Second,
			SendTimeout: 5 * time.Second,
		},
		Queue: QueueConfig{
			MaxAttempts: 5,
			BackoffBase: 1 * time.Second,
			BackoffCap:  60 * time.Second,
		},
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		NATS: NATSConfig{
			Enabled: false,
			URL:     "nats://localhost:4222",
			Subject: "print.purchases",
		},
		History: HistoryConfig{
			Enabled:       false,
			MigrationsDir: "migrations",
		},
		Receipt: ReceiptConfig{
			Width: 48,
			Header: []string{
				"Via Piave, 3",
				"41018 - San Cesario sul Panaro (MO)",
			},
			Footer: []string{"Grazie e arrivederci!"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the YAML config at path, falling back to defaults when the
// file is absent, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PRINTRELAY_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("PRINTRELAY_PRINTER_ADDR"); v != "" {
		c.Printer.Address = v
	}
	if v := os.Getenv("PRINTRELAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("PRINTRELAY_NATS_URL"); v != "" {
		c.NATS.Enabled = true
		c.NATS.URL = v
	}
	if v := os.Getenv("PRINTRELAY_HISTORY_DSN"); v != "" {
		c.History.Enabled = true
		c.History.DSN = v
	}
	if v := os.Getenv("PRINTRELAY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend url is required")
	}
	if c.Printer.Address == "" {
		return fmt.Errorf("printer address is required")
	}
	if c.Printer.SendTimeout <= 0 {
		return fmt.Errorf("printer send timeout must be positive")
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}
	if c.Queue.BackoffBase <= 0 {
		return fmt.Errorf("backoff base must be positive")
	}
	if c.Queue.BackoffCap < c.Queue.BackoffBase {
		return fmt.Errorf("backoff cap must not be below backoff base")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.History.Enabled && c.History.DSN == "" {
		return fmt.Errorf("history dsn is required when history is enabled")
	}
	if c.Receipt.Width < 24 {
		return fmt.Errorf("receipt width must be at least 24 columns")
	}
	return nil
}
