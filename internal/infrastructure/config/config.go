package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the MQTT relay service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Platform   PlatformConfig   `yaml:"platform"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PlatformConfig contains cloud platform connection settings.
//
// The platform supplies the relay list at startup, verifies each relay's
// network token, and receives forwarded broker messages.
type PlatformConfig struct {
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Timeout int    `yaml:"timeout"` // seconds, per request
}

// SupervisorConfig contains connection supervisor settings.
type SupervisorConfig struct {
	// RestartInterval is the sweep interval in seconds. Each sweep spawns
	// workers for relays missing from the table and reaps finished ones.
	RestartInterval int `yaml:"restart_interval"`

	// QueueCapacity is the per-relay outbound publish queue bound.
	QueueCapacity int `yaml:"queue_capacity"`
}

// MQTTConfig contains broker connection tuning shared by all relay workers.
// Per-relay settings (address, credentials, topics) come from the platform.
type MQTTConfig struct {
	KeepAlive      int `yaml:"keep_alive"`      // seconds
	ConnectTimeout int `yaml:"connect_timeout"` // seconds
}

// APIConfig contains ingress HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// TLSConfig contains TLS certificate settings.
// Certificate and key files are provisioned externally.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains optional relay telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MQTTRELAY_SECTION_KEY
// For example: MQTTRELAY_PLATFORM_TOKEN, MQTTRELAY_API_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Platform: PlatformConfig{
			Timeout: 30,
		},
		Supervisor: SupervisorConfig{
			RestartInterval: 120,
			QueueCapacity:   32,
		},
		MQTT: MQTTConfig{
			KeepAlive:      30,
			ConnectTimeout: 10,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MQTTRELAY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Platform
	if v := os.Getenv("MQTTRELAY_PLATFORM_URL"); v != "" {
		cfg.Platform.URL = v
	}
	if v := os.Getenv("MQTTRELAY_PLATFORM_TOKEN"); v != "" {
		cfg.Platform.Token = v
	}

	// API
	if v := os.Getenv("MQTTRELAY_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("MQTTRELAY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Platform validation - the relay list and token verification come from
	// the platform, so the service cannot start without these.
	if c.Platform.URL == "" {
		errs = append(errs, "platform.url is required")
	}
	if c.Platform.Token == "" {
		errs = append(errs, "platform.token is required (set MQTTRELAY_PLATFORM_TOKEN environment variable)")
	}

	// Supervisor validation
	if c.Supervisor.RestartInterval < 1 {
		errs = append(errs, "supervisor.restart_interval must be at least 1 second")
	}
	if c.Supervisor.QueueCapacity < 1 {
		errs = append(errs, "supervisor.queue_capacity must be at least 1")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled {
		if c.API.TLS.CertFile == "" {
			errs = append(errs, "api.tls.cert_file is required when TLS is enabled")
		}
		if c.API.TLS.KeyFile == "" {
			errs = append(errs, "api.tls.key_file is required when TLS is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// RestartInterval returns the supervisor sweep interval as a Duration.
func (c *Config) RestartInterval() time.Duration {
	return time.Duration(c.Supervisor.RestartInterval) * time.Second
}

// RequestTimeout returns the per-request platform client timeout as a Duration.
func (c PlatformConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// ReadTimeout returns the API read timeout as a Duration.
func (c APIConfig) ReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// WriteTimeout returns the API write timeout as a Duration.
func (c APIConfig) WriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// IdleTimeout returns the API idle timeout as a Duration.
func (c APIConfig) IdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
