package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParseIntOrHex(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"57", 57, true},
		{"0x39", 0x39, true},
		{"0X29", 0x29, true},
		{"bad", 0, false},
		{"0xzz", 0, false},
	}
	for _, tt := range tests {
		got, err := parseIntOrHex(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("parseIntOrHex(%q) ok=%v err=%v", tt.in, tt.ok, err)
		}
		if tt.ok && got != tt.want {
			t.Fatalf("parseIntOrHex(%q) = %d; want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"console,mqtt", []string{"console", "mqtt"}},
		{" channel_clear , ,channel_nir ", []string{"channel_clear", "channel_nir"}},
	}
	for _, tt := range tests {
		if got := parseCSV(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("parseCSV(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Modules) != 1 || cfg.Modules[0].I2CAddress != DefaultI2CAddress {
		t.Fatalf("modules: %+v", cfg.Modules)
	}
	if len(cfg.Inputs) != 1 || cfg.Inputs[0].TypeName() != "channel_clear" {
		t.Fatalf("inputs: %+v", cfg.Inputs)
	}
	if cfg.Inputs[0].IntervalMs != DefaultIntervalMs {
		t.Fatalf("input interval: got %d", cfg.Inputs[0].IntervalMs)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level: got %q", cfg.LogLevel)
	}
}

func TestLoadFlagsOverride(t *testing.T) {
	args := []string{
		"-i2c-bus", "1",
		"-i2c-address", "0x29",
		"-sensor-type", "simulation",
		"-channels", "channel_415nm, channel_nir",
		"-mqtt-server", "tcp://broker:1883",
		"-mqtt-topic", "lab",
		"-metrics-listen", ":9100",
		"-interval-ms", "500",
	}
	cfg, err := Load(args)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	m := cfg.Modules[0]
	if m.I2CBus != "1" || m.I2CAddress != 0x29 || !m.Simulate {
		t.Fatalf("module overrides not applied: %+v", m)
	}
	if len(cfg.Inputs) != 2 {
		t.Fatalf("inputs len: %d", len(cfg.Inputs))
	}
	if cfg.Inputs[0].Name != "as7341_415nm" || cfg.Inputs[0].TypeName() != "channel_415nm" || cfg.Inputs[0].IntervalMs != 500 {
		t.Fatalf("input0 incorrect: %+v", cfg.Inputs[0])
	}
	if cfg.Inputs[1].Name != "as7341_nir" {
		t.Fatalf("input1 incorrect: %+v", cfg.Inputs[1])
	}
	// console (default) + mqtt + prometheus
	if len(cfg.Outputs) != 3 {
		t.Fatalf("outputs: %+v", cfg.Outputs)
	}
	if cfg.Outputs[1].Type != "mqtt" || cfg.Outputs[1].MQTT.Server != "tcp://broker:1883" || cfg.Outputs[1].MQTT.Topic != "lab" {
		t.Fatalf("mqtt output: %+v", cfg.Outputs[1])
	}
	if cfg.Outputs[2].Type != "prometheus" || cfg.Outputs[2].Prometheus.Listen != ":9100" {
		t.Fatalf("prometheus output: %+v", cfg.Outputs[2])
	}
}

func TestLoadBadSensorType(t *testing.T) {
	if _, err := Load([]string{"-sensor-type", "quantum"}); err == nil {
		t.Fatalf("expected error for unknown sensor type")
	}
}

func TestLoadKeepsUnknownChannel(t *testing.T) {
	// channel types are validated by the module on every read, not at load
	cfg, err := Load([]string{"-channels", "channel_xyz"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Inputs[0].TypeName() != "channel_xyz" {
		t.Fatalf("input type: got %q", cfg.Inputs[0].TypeName())
	}
}

func TestLoadYAMLFile(t *testing.T) {
	yml := `
modules:
  - name: spectral
    module: as7341
    i2c_bus: "1"
    i2c_address: 57
inputs:
  - name: spectral1
    type: channel_630nm
    digits: 0
  - name: spectral2
    module: spectral
    interval_ms: 250
outputs:
  - type: MQTT
    mqtt:
      server: tcp://localhost:1883
      discovery_topic: homeassistant
log_level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load([]string{"-config", path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Modules) != 1 || cfg.Modules[0].Name != "spectral" || cfg.Modules[0].I2CAddress != 57 {
		t.Fatalf("modules: %+v", cfg.Modules)
	}
	in := cfg.Inputs[0]
	if in.Module != "spectral" || in.TypeName() != "channel_630nm" || in.DigitsOrDefault() != 0 || in.IntervalMs != DefaultIntervalMs {
		t.Fatalf("input0: %+v", in)
	}
	if cfg.Inputs[1].Type != nil || cfg.Inputs[1].IntervalMs != 250 || cfg.Inputs[1].DigitsOrDefault() != DefaultDigits {
		t.Fatalf("input1: %+v", cfg.Inputs[1])
	}
	if cfg.Outputs[0].Type != "mqtt" || cfg.Outputs[0].MQTT.DiscoveryTopic != "homeassistant" {
		t.Fatalf("outputs: %+v", cfg.Outputs)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level: %q", cfg.LogLevel)
	}
}

func TestLoadYAMLModulesWithoutInputs(t *testing.T) {
	yml := `
modules:
  - name: spectral
    module: as7341
    simulate: true
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load([]string{"-config", path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Inputs) != 1 {
		t.Fatalf("inputs: %+v", cfg.Inputs)
	}
	in := cfg.Inputs[0]
	if in.Name != "spectral_clear" || in.Module != "spectral" || in.TypeName() != "channel_clear" {
		t.Fatalf("default input: %+v", in)
	}
}

func TestLoadI2CAddressOutOfRange(t *testing.T) {
	_, err := Load([]string{"-i2c-address", "0x10039"})
	if err == nil || !strings.Contains(err.Error(), "i2c_address") {
		t.Fatalf("expected i2c_address error, got %v", err)
	}
}

func TestLoadExampleConfig(t *testing.T) {
	cfg, err := Load([]string{"-config", "../../config.example.yaml"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Modules) != 1 || cfg.Modules[0].Name != "spectral" || cfg.Modules[0].I2CAddress != 0x39 {
		t.Fatalf("modules: %+v", cfg.Modules)
	}
	if len(cfg.Inputs) != 3 || cfg.Inputs[1].Type != nil || cfg.Inputs[1].DigitsOrDefault() != 0 {
		t.Fatalf("inputs: %+v", cfg.Inputs)
	}
	for _, in := range cfg.Inputs {
		if in.Module != "spectral" || in.IntervalMs <= 0 {
			t.Fatalf("input: %+v", in)
		}
	}
	types := map[string]bool{}
	for _, o := range cfg.Outputs {
		types[o.Type] = true
	}
	if !types["console"] || !types["mqtt"] || !types["prometheus"] {
		t.Fatalf("outputs: %+v", cfg.Outputs)
	}
}

func TestValidate(t *testing.T) {
	neg := -1
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"ok", func(*Config) {}, ""},
		{"interval", func(c *Config) { c.IntervalMs = 0 }, "interval-ms"},
		{"dup module", func(c *Config) { c.Modules = append(c.Modules, c.Modules[0]) }, "duplicate module"},
		{"dup input", func(c *Config) { c.Inputs = append(c.Inputs, c.Inputs[0]) }, "duplicate input"},
		{"unknown module", func(c *Config) { c.Inputs[0].Module = "nope" }, "unknown module"},
		{"no name", func(c *Config) { c.Inputs[0].Name = "" }, "without name"},
		{"digits", func(c *Config) { c.Inputs[0].Digits = &neg }, "digits"},
		{"max address", func(c *Config) { c.Modules[0].I2CAddress = 0x7F }, ""},
		{"address too high", func(c *Config) { c.Modules[0].I2CAddress = 0x10039 }, "i2c_address"},
		{"address negative", func(c *Config) { c.Modules[0].I2CAddress = -1 }, "i2c_address"},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.applyDefaults()
		tt.mutate(&cfg)
		err := cfg.Validate()
		if tt.errSub == "" {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tt.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tt.errSub) {
			t.Fatalf("%s: got %v, want error containing %q", tt.name, err, tt.errSub)
		}
	}
}
