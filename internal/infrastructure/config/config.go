package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for plcbridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	PLC        PLCConfig        `yaml:"plc"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Devices    []DeviceConfig   `yaml:"devices"`
	ZeroMQ     ZeroMQConfig     `yaml:"zeromq"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Barcode    BarcodeConfig    `yaml:"barcode"`
	Database   DatabaseConfig   `yaml:"database"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PLCConfig contains controller connection settings.
type PLCConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// StationNumber is the logical station (Modbus unit ID) of the CPU.
	StationNumber int `yaml:"station_number"`

	// TimeoutMs bounds each dial and register request.
	TimeoutMs int `yaml:"timeout_ms"`

	// Addresses overrides the device-code to register-area map, keyed by
	// device code ("D", "M", "X", ...). Codes not listed keep the default.
	Addresses map[string]AddressMapping `yaml:"addresses,omitempty"`
}

// AddressMapping maps one device code onto a Modbus area.
type AddressMapping struct {
	Area string `yaml:"area"` // coil, discrete_input, holding_register, input_register
	Base int    `yaml:"base"`
	Hex  bool   `yaml:"hex"`
}

// MonitoringConfig contains poll scheduler settings.
type MonitoringConfig struct {
	IntervalMs     int `yaml:"interval_ms"`
	WriteQueueSize int `yaml:"write_queue_size"`
}

// DeviceConfig is one monitored controller point.
type DeviceConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Type    string `yaml:"type"` // Word or Bit
}

// ZeroMQConfig contains ZeroMQ PUB/SUB settings.
type ZeroMQConfig struct {
	Enabled           bool   `yaml:"enabled"`
	PublishEndpoint   string `yaml:"publish_endpoint"`
	SubscribeEndpoint string `yaml:"subscribe_endpoint"`
	SubscribeEnabled  bool   `yaml:"subscribe_enabled"`
	TopicPrefix       string `yaml:"topic_prefix"`
	QueueSize         int    `yaml:"queue_size"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled          bool                `yaml:"enabled"`
	Broker           MQTTBrokerConfig    `yaml:"broker"`
	Auth             MQTTAuthConfig      `yaml:"auth"`
	QoS              int                 `yaml:"qos"`
	TopicPrefix      string              `yaml:"topic_prefix"`
	SubscribeEnabled bool                `yaml:"subscribe_enabled"`
	PublishTimeoutMs int                 `yaml:"publish_timeout_ms"`
	Reconnect        MQTTReconnectConfig `yaml:"reconnect"`
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// BarcodeConfig contains barcode reader trigger settings.
type BarcodeConfig struct {
	Enabled             bool   `yaml:"enabled"`
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	TriggerDevice       string `yaml:"trigger_device"`
	TriggerBit          int    `yaml:"trigger_bit"`
	TriggerCommand      string `yaml:"trigger_command"`
	ConnectionTimeoutMs int    `yaml:"connection_timeout_ms"`
	AutoReconnect       bool   `yaml:"auto_reconnect"`
}

// DatabaseConfig contains SQLite settings for the command audit trail.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
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
// When the file does not exist, the defaults are written to path first so
// an operator has a template to edit.
//
// Environment variables follow the pattern: PLCBRIDGE_SECTION_KEY
// For example: PLCBRIDGE_PLC_HOST, PLCBRIDGE_MQTT_PASSWORD
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := WriteDefault(path); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// WriteDefault writes the default configuration to path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(defaultConfig())
	if err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		PLC: PLCConfig{
			Host:          "192.168.3.39",
			Port:          502,
			StationNumber: 3,
			TimeoutMs:     3000,
		},
		Monitoring: MonitoringConfig{
			IntervalMs:     100,
			WriteQueueSize: 64,
		},
		Devices: []DeviceConfig{
			{Name: "Data 1", Address: "D0", Type: "Word"},
			{Name: "Data 2", Address: "D10", Type: "Word"},
			{Name: "Bit 1", Address: "M0", Type: "Bit"},
			{Name: "Input 1", Address: "X0", Type: "Bit"},
			{Name: "Output 1", Address: "Y0", Type: "Bit"},
		},
		ZeroMQ: ZeroMQConfig{
			Enabled:           true,
			PublishEndpoint:   "tcp://*:5555",
			SubscribeEndpoint: "tcp://localhost:5556",
			SubscribeEnabled:  true,
			TopicPrefix:       "plc",
			QueueSize:         1024,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "plcbridge",
			},
			QoS:              1,
			TopicPrefix:      "plc",
			SubscribeEnabled: true,
			PublishTimeoutMs: 5000,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Barcode: BarcodeConfig{
			Enabled:             false,
			Host:                "192.168.20.10",
			Port:                8080,
			TriggerDevice:       "D8008",
			TriggerBit:          0,
			TriggerCommand:      "+",
			ConnectionTimeoutMs: 3000,
			AutoReconnect:       true,
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/plcbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "plcbridge",
			BatchSize:     500,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PLCBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// PLC
	if v := os.Getenv("PLCBRIDGE_PLC_HOST"); v != "" {
		cfg.PLC.Host = v
	}
	if v := os.Getenv("PLCBRIDGE_PLC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.PLC.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("PLCBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PLCBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PLCBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Barcode
	if v := os.Getenv("PLCBRIDGE_BARCODE_HOST"); v != "" {
		cfg.Barcode.Host = v
	}

	// Database
	if v := os.Getenv("PLCBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("PLCBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("PLCBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// PLC validation
	if c.PLC.Host == "" {
		errs = append(errs, "plc.host is required")
	}
	if !validPort(c.PLC.Port) {
		errs = append(errs, "plc.port must be between 1 and 65535")
	}
	if c.PLC.StationNumber < 0 || c.PLC.StationNumber > 255 {
		errs = append(errs, "plc.station_number must be between 0 and 255")
	}
	if c.PLC.TimeoutMs <= 0 {
		errs = append(errs, "plc.timeout_ms must be positive")
	}
	for code, m := range c.PLC.Addresses {
		if m.Base < 0 || m.Base > 0xFFFF {
			errs = append(errs, fmt.Sprintf("plc.addresses.%s.base must be between 0 and 65535", code))
		}
	}

	// Monitoring validation
	if c.Monitoring.IntervalMs <= 0 {
		errs = append(errs, "monitoring.interval_ms must be positive")
	}

	// Devices validation
	errs = append(errs, c.validateDevices()...)

	// Bus validation
	if c.ZeroMQ.Enabled {
		if c.ZeroMQ.PublishEndpoint == "" {
			errs = append(errs, "zeromq.publish_endpoint is required when zeromq is enabled")
		}
		if c.ZeroMQ.SubscribeEnabled && c.ZeroMQ.SubscribeEndpoint == "" {
			errs = append(errs, "zeromq.subscribe_endpoint is required when subscribe_enabled is set")
		}
		if !validPrefix(c.ZeroMQ.TopicPrefix) {
			errs = append(errs, "zeromq.topic_prefix must be non-empty and free of wildcards")
		}
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if !validPort(c.MQTT.Broker.Port) {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if !validPrefix(c.MQTT.TopicPrefix) {
			errs = append(errs, "mqtt.topic_prefix must be non-empty and free of wildcards")
		}
	}

	// Barcode validation
	if c.Barcode.Enabled {
		if c.Barcode.Host == "" {
			errs = append(errs, "barcode.host is required when barcode is enabled")
		}
		if !validPort(c.Barcode.Port) {
			errs = append(errs, "barcode.port must be between 1 and 65535")
		}
		if c.Barcode.TriggerDevice == "" {
			errs = append(errs, "barcode.trigger_device is required when barcode is enabled")
		}
	}
	if c.Barcode.TriggerBit < 0 || c.Barcode.TriggerBit > 15 {
		errs = append(errs, "barcode.trigger_bit must be between 0 and 15")
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	// Logging validation
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, "logging.level must be debug, info, warn, or error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) validateDevices() []string {
	var errs []string
	if len(c.Devices) == 0 {
		errs = append(errs, "devices must list at least one device")
	}

	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		addr := strings.ToUpper(strings.TrimSpace(d.Address))
		if addr == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].address is required", i))
			continue
		}
		if seen[addr] {
			errs = append(errs, fmt.Sprintf("devices[%d].address %s is duplicated", i, addr))
		}
		seen[addr] = true

		switch strings.ToLower(d.Type) {
		case "word", "bit":
		default:
			errs = append(errs, fmt.Sprintf("devices[%d].type must be Word or Bit", i))
		}
	}
	return errs
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

func validPrefix(p string) bool {
	return p != "" && !strings.ContainsAny(p, "+#")
}

// Interval returns the poll interval as a Duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Monitoring.IntervalMs) * time.Millisecond
}

// Timeout returns the controller request timeout as a Duration.
func (p PLCConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// PublishTimeout returns the MQTT publish timeout as a Duration.
func (m MQTTConfig) PublishTimeout() time.Duration {
	return time.Duration(m.PublishTimeoutMs) * time.Millisecond
}

// ConnectionTimeout returns the barcode dial timeout as a Duration.
func (b BarcodeConfig) ConnectionTimeout() time.Duration {
	return time.Duration(b.ConnectionTimeoutMs) * time.Millisecond
}
