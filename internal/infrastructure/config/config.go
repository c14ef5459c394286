package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the cranelink gateway.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Network  NetworkConfig  `yaml:"network"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Journal  JournalConfig  `yaml:"journal"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DeviceConfig identifies this gateway instance and its serial peripheral.
type DeviceConfig struct {
	// ID is the logical crane identity. It is immutable for the process
	// lifetime and used to derive MQTT channel names and the client ID.
	ID     string       `yaml:"id"`
	Serial SerialConfig `yaml:"serial"`
}

// SerialConfig contains serial peripheral settings.
type SerialConfig struct {
	// Port is the device path (e.g. /dev/ttyUSB0).
	Port string `yaml:"port"`

	// Baud is the line rate; must match the motion firmware (115200 for Marlin).
	Baud int `yaml:"baud"`

	// ReadTimeoutMs bounds a single drain read so the cycle never blocks
	// on an idle peripheral. Default: 20.
	ReadTimeoutMs int `yaml:"read_timeout_ms"`
}

// NetworkConfig contains network link settings.
type NetworkConfig struct {
	// Mode selects the link implementation: "station" (Wi-Fi association
	// managed by the gateway) or "wired" (link assumed up externally).
	Mode string `yaml:"mode"`

	// Interface is the network interface name (e.g. wlan0).
	Interface string `yaml:"interface"`

	// SSID and Password are the station-mode credentials.
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`

	// TimeoutSeconds bounds a single association attempt. Default: 20.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// PollIntervalMs is the link status polling interval during an
	// association attempt. Default: 300.
	PollIntervalMs int `yaml:"poll_interval_ms"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`
	QoS    int              `yaml:"qos"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// BridgeConfig contains bridge cycle tuning.
type BridgeConfig struct {
	// LineCapacity is the line buffer capacity in bytes, one reserved
	// for the terminator. Lines longer than capacity-1 are silently
	// truncated. Default: 256.
	LineCapacity int `yaml:"line_capacity"`

	// InboundQueue is the command queue depth between the MQTT client's
	// delivery goroutine and the bridge cycle. Default: 64.
	InboundQueue int `yaml:"inbound_queue"`
}

// JournalConfig contains connectivity journal settings.
type JournalConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB telemetry settings.
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
// Environment variables follow the pattern: CRANELINK_SECTION_KEY
// For example: CRANELINK_MQTT_HOST, CRANELINK_NETWORK_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Serial: SerialConfig{
				Baud:          115200,
				ReadTimeoutMs: 20,
			},
		},
		Network: NetworkConfig{
			Mode:           "wired",
			Interface:      "wlan0",
			TimeoutSeconds: 20,
			PollIntervalMs: 300,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS: 1,
		},
		Bridge: BridgeConfig{
			LineCapacity: 256,
			InboundQueue: 64,
		},
		Journal: JournalConfig{
			Path:        "./data/cranelink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CRANELINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("CRANELINK_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv("CRANELINK_SERIAL_PORT"); v != "" {
		cfg.Device.Serial.Port = v
	}
	if v := os.Getenv("CRANELINK_SERIAL_BAUD"); v != "" {
		if baud, err := strconv.Atoi(v); err == nil {
			cfg.Device.Serial.Baud = baud
		}
	}

	// Network credentials (keep out of the config file where possible)
	if v := os.Getenv("CRANELINK_NETWORK_SSID"); v != "" {
		cfg.Network.SSID = v
	}
	if v := os.Getenv("CRANELINK_NETWORK_PASSWORD"); v != "" {
		cfg.Network.Password = v
	}

	// MQTT
	if v := os.Getenv("CRANELINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CRANELINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CRANELINK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("CRANELINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// An empty device identity is a configuration error rejected here;
// runtime code may assume the identity is non-empty.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}
	if c.Device.Serial.Port == "" {
		errs = append(errs, "device.serial.port is required")
	}
	if c.Device.Serial.Baud <= 0 {
		errs = append(errs, "device.serial.baud must be positive")
	}

	switch c.Network.Mode {
	case "station", "wired":
	default:
		errs = append(errs, `network.mode must be "station" or "wired"`)
	}
	if c.Network.Mode == "station" && c.Network.SSID == "" {
		errs = append(errs, "network.ssid is required in station mode")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	if c.Bridge.LineCapacity < 2 {
		errs = append(errs, "bridge.line_capacity must be at least 2")
	}
	if c.Bridge.InboundQueue < 1 {
		errs = append(errs, "bridge.inbound_queue must be at least 1")
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when journal is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetNetworkTimeout returns the association attempt timeout as a Duration.
func (c *Config) GetNetworkTimeout() time.Duration {
	return time.Duration(c.Network.TimeoutSeconds) * time.Second
}

// GetNetworkPollInterval returns the link polling interval as a Duration.
func (c *Config) GetNetworkPollInterval() time.Duration {
	return time.Duration(c.Network.PollIntervalMs) * time.Millisecond
}

// GetSerialReadTimeout returns the serial drain read timeout as a Duration.
func (c *Config) GetSerialReadTimeout() time.Duration {
	return time.Duration(c.Device.Serial.ReadTimeoutMs) * time.Millisecond
}
