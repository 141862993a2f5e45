package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Database  DatabaseConfig  `yaml:"database"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Logging   LoggingConfig   `yaml:"logging"`

	// ConfigPath is the path to the config file (not serialized)
	ConfigPath string `yaml:"-"`
}

// ServerConfig represents the local HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// BackendConfig points the dashboard at the appointment endpoints.
// An empty BaseURL means the dashboard talks to this process.
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DatabaseConfig locates the checker's SQLite database
type DatabaseConfig struct {
	Path    string `yaml:"path"`
	Migrate bool   `yaml:"migrate"`
}

// DashboardConfig controls polling and table presentation
type DashboardConfig struct {
	LogPollInterval time.Duration `yaml:"log_poll_interval"`
	// RefreshSchedule is a cron spec ("@every 1m") re-running the current
	// filter query. Empty disables periodic refresh.
	RefreshSchedule string `yaml:"refresh_schedule"`
	PageLength      int    `yaml:"page_length"`
	TimeZone        string `yaml:"time_zone"`
	LogLimit        int    `yaml:"log_limit"`
	ResponseLimit   int    `yaml:"response_limit"`
	Workers         int    `yaml:"workers"`
}

// LoggingConfig represents logger output settings
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
	Console    bool   `yaml:"console"`
	BufferSize int    `yaml:"buffer_size"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Backend: BackendConfig{
			Timeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Path:    "local_data.db",
			Migrate: true,
		},
		Dashboard: DashboardConfig{
			LogPollInterval: 10 * time.Second,
			PageLength:      10,
			TimeZone:        "UTC",
			LogLimit:        10,
			ResponseLimit:   10,
			Workers:         3,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			BufferSize: 500,
		},
	}
}

// DefaultPaths are searched in order when no explicit path is given
var DefaultPaths = []string{
	"config.yaml",
	"configs/config.yaml",
	"/etc/visadash/config.yaml",
}

// Load loads configuration from the first readable path
func Load(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		paths = DefaultPaths
	}

	var data []byte
	var err error
	var loadedPath string

	for _, path := range paths {
		data, err = os.ReadFile(path)
		if err == nil {
			loadedPath = path
			break
		}
	}

	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", loadedPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", loadedPath, err)
	}

	cfg.ConfigPath = loadedPath
	return cfg, nil
}

// Validate rejects settings the dashboard cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Dashboard.LogPollInterval <= 0 {
		return errors.New("dashboard.log_poll_interval must be positive")
	}
	if c.Dashboard.PageLength <= 0 {
		return errors.New("dashboard.page_length must be positive")
	}
	if _, err := time.LoadLocation(c.Dashboard.TimeZone); err != nil {
		return fmt.Errorf("dashboard.time_zone: %w", err)
	}
	return nil
}

// Location returns the display time zone, falling back to UTC
func (d DashboardConfig) Location() *time.Location {
	loc, err := time.LoadLocation(d.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BackendURL returns the base URL the dashboard polls
func (c *Config) BackendURL() string {
	if c.Backend.BaseURL != "" {
		return c.Backend.BaseURL
	}
	host := c.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Server.Port)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
