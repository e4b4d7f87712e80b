package appconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing fixture config: %v", err)
	}
	return path
}

func TestLoadParsesNestedSections(t *testing.T) {
	path := writeConfig(t, `
device:
  id: GW-01
  serial_port: /dev/ttyUSB0
lora:
  frequency: 915000000
  spreading_factor: 7
  bandwidth: 125000
  coding_rate: 5
mqtt:
  broker: mqtt.example.com
  port: 1883
  client_id: gw-01
gprs:
  apn: internet
store:
  path: /var/lib/streetlight/gateway.json
logging:
  level: debug
  file: /var/log/streetlight/gateway.log
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Device.ID != "GW-01" {
		t.Errorf("device.id = %q", cfg.Device.ID)
	}
	if cfg.LoRa.Frequency != 915000000 || cfg.LoRa.SpreadingFactor != 7 {
		t.Errorf("lora section misparsed: %+v", cfg.LoRa)
	}
	if cfg.MQTT.Broker != "mqtt.example.com" || cfg.MQTT.Port != 1883 {
		t.Errorf("mqtt section misparsed: %+v", cfg.MQTT)
	}
	if cfg.GPRS.APN != "internet" {
		t.Errorf("gprs.apn = %q", cfg.GPRS.APN)
	}
	if cfg.LogLevel() != "debug" {
		t.Errorf("LogLevel() = %q", cfg.LogLevel())
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "device:\n  id: [unterminated\n")
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected parse error for malformed YAML")
	}
}

func TestValidateGatewayRequiresDeviceIDAndBroker(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateGateway(); err == nil {
		t.Fatalf("expected error for empty device.id")
	}
	cfg.Device.ID = "GW-01"
	if err := cfg.ValidateGateway(); err == nil {
		t.Fatalf("expected error for empty mqtt.broker")
	}
	cfg.MQTT.Broker = "mqtt.example.com"
	if err := cfg.ValidateGateway(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateNodeRequiresDeviceID(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateNode(); err == nil {
		t.Fatalf("expected error for empty device.id")
	}
	cfg.Device.ID = "node-01"
	if err := cfg.ValidateNode(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLogLevelDefaultsToInfo(t *testing.T) {
	cfg := &Config{}
	if got := cfg.LogLevel(); got != "info" {
		t.Errorf("LogLevel() default = %q, want info", got)
	}
}

func TestStorePathFallsBackToDefault(t *testing.T) {
	cfg := &Config{}
	if got := cfg.StorePath("/default/path.json"); got != "/default/path.json" {
		t.Errorf("StorePath() = %q", got)
	}
	cfg.Store.Path = "/custom/path.json"
	if got := cfg.StorePath("/default/path.json"); got != "/custom/path.json" {
		t.Errorf("StorePath() = %q", got)
	}
}
