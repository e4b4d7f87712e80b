// Package appconfig loads the operational YAML config shared by
// cmd/gateway and cmd/node: serial port, broker/APN overrides, and log
// level. Persistent device state (§4.B) is a separate concern and is
// never folded into this file; see internal/store.
package appconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of both binaries' --config file. Either
// binary only reads the sections it needs; an operator can point
// cmd/gateway and cmd/node at the same file in a bench setup.
type Config struct {
	Device struct {
		ID         string `yaml:"id"`
		SerialPort string `yaml:"serial_port"`
	} `yaml:"device"`

	LoRa struct {
		Frequency       uint32 `yaml:"frequency"`
		SpreadingFactor uint8  `yaml:"spreading_factor"`
		Bandwidth       uint32 `yaml:"bandwidth"`
		CodingRate      uint8  `yaml:"coding_rate"`
	} `yaml:"lora"`

	MQTT struct {
		Broker   string `yaml:"broker"`
		Port     int    `yaml:"port"`
		ClientID string `yaml:"client_id"`
	} `yaml:"mqtt"`

	GPRS struct {
		APN string `yaml:"apn"`
	} `yaml:"gprs"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// ValidateGateway checks the fields cmd/gateway requires.
func (c *Config) ValidateGateway() error {
	if c.Device.ID == "" {
		return fmt.Errorf("device.id is required")
	}
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	return nil
}

// ValidateNode checks the fields cmd/node requires.
func (c *Config) ValidateNode() error {
	if c.Device.ID == "" {
		return fmt.Errorf("device.id is required")
	}
	return nil
}

// LogLevel returns the configured hclog level name, defaulting to info
// when the file leaves logging.level unset.
func (c *Config) LogLevel() string {
	if c.Logging.Level == "" {
		return "info"
	}
	return c.Logging.Level
}

// StorePath returns the configured persistent-store path, falling back
// to def when the file leaves store.path unset.
func (c *Config) StorePath(def string) string {
	if c.Store.Path == "" {
		return def
	}
	return c.Store.Path
}
