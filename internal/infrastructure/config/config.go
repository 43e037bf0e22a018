package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure shared by both aquamon daemons.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Poll    PollConfig    `yaml:"poll"`
	Sink    SinkConfig    `yaml:"sink"`
	TSDB    TSDBConfig    `yaml:"tsdb"`
	Journal JournalConfig `yaml:"journal"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	API     APIConfig     `yaml:"api"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// DeviceConfig identifies the sensor and carries its local-protocol credentials.
// These fields are resolved out-of-band by the setup wizard; the daemons treat
// them as immutable for the process lifetime.
type DeviceConfig struct {
	// ID is the vendor device identifier (the "devId" in the local protocol).
	ID string `yaml:"id"`

	// Address is the device's LAN address (IP or hostname).
	Address string `yaml:"address"`

	// Port is the local-protocol TCP port. Default: 6668.
	Port int `yaml:"port"`

	// LocalKey is the per-device shared secret for the encrypted session.
	LocalKey string `yaml:"local_key"`

	// ProtocolVersion selects the wire format: "3.3" or "3.5". Default: "3.5".
	ProtocolVersion string `yaml:"protocol_version"`

	// Timeout bounds each network request to the device (seconds). Default: 10.
	Timeout int `yaml:"timeout"`
}

// PollConfig drives the collector's poll scheduler.
type PollConfig struct {
	// Interval between poll cycles (seconds). Default: 300.
	Interval int `yaml:"interval"`

	// Jitter is the maximum random delay added to each tick (seconds).
	// Avoids hammering the device in lockstep after a restart. Default: 5.
	Jitter int `yaml:"jitter"`

	// MaxSessionFailures is the consecutive-failure count after which the
	// device session is discarded and rebuilt from scratch. Default: 3.
	MaxSessionFailures int `yaml:"max_session_failures"`

	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig bounds the scheduler's transient-failure backoff.
type BackoffConfig struct {
	// InitialDelay is the first backoff delay (seconds). Default: 10.
	InitialDelay int `yaml:"initial_delay"`

	// MaxDelay caps the exponential growth (seconds). Default: 120.
	MaxDelay int `yaml:"max_delay"`

	// MaxRetries is the number of backed-off attempts before the scheduler
	// falls back to the normal interval. Default: 5.
	MaxRetries int `yaml:"max_retries"`
}

// SinkConfig bounds the metrics sink's store-write retries.
type SinkConfig struct {
	// RetryAttempts is the total write attempts per batch. Default: 3.
	RetryAttempts int `yaml:"retry_attempts"`

	// RetryBackoff is the initial delay between attempts (seconds),
	// doubling each retry. Default: 2.
	RetryBackoff int `yaml:"retry_backoff"`

	// Timeout bounds a single store write (seconds). Default: 10.
	Timeout int `yaml:"timeout"`
}

// TSDBConfig contains the VictoriaMetrics connection settings.
// Writes go through the InfluxDB-compatible write API; queries use the
// Prometheus query API on the same base URL.
type TSDBConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// JournalConfig contains the SQLite cycle-journal settings.
type JournalConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains the optional local-broker announce settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains the query daemon's HTTP server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// MetricsConfig contains the collector's prometheus listener settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// PollInterval returns the poll interval as a duration.
func (p PollConfig) PollInterval() time.Duration {
	return time.Duration(p.Interval) * time.Second
}

// DeviceTimeout returns the per-request device timeout as a duration.
func (d DeviceConfig) DeviceTimeout() time.Duration {
	return time.Duration(d.Timeout) * time.Second
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: AQUAMON_SECTION_KEY
// For example: AQUAMON_DEVICE_LOCAL_KEY, AQUAMON_TSDB_URL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Port:            6668,
			ProtocolVersion: "3.5",
			Timeout:         10,
		},
		Poll: PollConfig{
			Interval:           300,
			Jitter:             5,
			MaxSessionFailures: 3,
			Backoff: BackoffConfig{
				InitialDelay: 10,
				MaxDelay:     120,
				MaxRetries:   5,
			},
		},
		Sink: SinkConfig{
			RetryAttempts: 3,
			RetryBackoff:  2,
			Timeout:       10,
		},
		TSDB: TSDBConfig{
			URL:    "http://localhost:8428",
			Bucket: "aquamon",
		},
		Journal: JournalConfig{
			Path:        "./data/aquamon.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "aquamon-collector",
			},
			QoS:         1,
			TopicPrefix: "aquamon",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8086,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  60,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    9178,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: AQUAMON_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("AQUAMON_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv("AQUAMON_DEVICE_ADDRESS"); v != "" {
		cfg.Device.Address = v
	}
	if v := os.Getenv("AQUAMON_DEVICE_LOCAL_KEY"); v != "" {
		cfg.Device.LocalKey = v
	}
	if v := os.Getenv("AQUAMON_DEVICE_PROTOCOL_VERSION"); v != "" {
		cfg.Device.ProtocolVersion = v
	}

	// TSDB
	if v := os.Getenv("AQUAMON_TSDB_URL"); v != "" {
		cfg.TSDB.URL = v
	}
	if v := os.Getenv("AQUAMON_TSDB_TOKEN"); v != "" {
		cfg.TSDB.Token = v
	}

	// Journal
	if v := os.Getenv("AQUAMON_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}

	// MQTT
	if v := os.Getenv("AQUAMON_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("AQUAMON_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("AQUAMON_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("AQUAMON_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Device validation
	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}
	if c.Device.Address == "" {
		errs = append(errs, "device.address is required")
	}
	if c.Device.LocalKey == "" {
		errs = append(errs, "device.local_key is required")
	}
	if c.Device.ProtocolVersion != "3.3" && c.Device.ProtocolVersion != "3.5" {
		errs = append(errs, fmt.Sprintf("device.protocol_version %q is not supported (3.3 or 3.5)", c.Device.ProtocolVersion))
	}
	if c.Device.Port <= 0 || c.Device.Port > 65535 {
		errs = append(errs, "device.port must be between 1 and 65535")
	}

	// Poll validation
	if c.Poll.Interval <= 0 {
		errs = append(errs, "poll.interval must be positive")
	}
	if c.Poll.Jitter < 0 {
		errs = append(errs, "poll.jitter must not be negative")
	}
	if c.Poll.Backoff.InitialDelay <= 0 {
		errs = append(errs, "poll.backoff.initial_delay must be positive")
	}
	if c.Poll.Backoff.MaxDelay < c.Poll.Backoff.InitialDelay {
		errs = append(errs, "poll.backoff.max_delay must be >= poll.backoff.initial_delay")
	}

	// Sink validation
	if c.Sink.RetryAttempts <= 0 {
		errs = append(errs, "sink.retry_attempts must be positive")
	}

	// TSDB validation
	if c.TSDB.URL == "" {
		errs = append(errs, "tsdb.url is required")
	} else if !strings.HasPrefix(c.TSDB.URL, "http://") && !strings.HasPrefix(c.TSDB.URL, "https://") {
		errs = append(errs, "tsdb.url must start with http:// or https://")
	}

	// Journal validation
	if c.Journal.Path == "" {
		errs = append(errs, "journal.path is required")
	}

	// API validation
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Logging validation
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is not valid", c.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
