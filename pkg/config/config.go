package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultModule     = "as7341"
	DefaultI2CAddress = 0x39
	DefaultIntervalMs = 1000
	DefaultDigits     = 2
	DefaultLogLevel   = "info"

	maxI2CAddress = 0x7F
)

type MQTTConfig struct {
	Server         string `json:"server" yaml:"server"`
	Username       string `json:"username" yaml:"username"`
	Password       string `json:"password" yaml:"password"`
	ClientID       string `json:"client_id" yaml:"client_id"`
	Topic          string `json:"topic" yaml:"topic"`
	DiscoveryTopic string `json:"discovery_topic,omitempty" yaml:"discovery_topic,omitempty"`
	Retain         bool   `json:"retain,omitempty" yaml:"retain,omitempty"`
}

type PrometheusConfig struct {
	Listen string `json:"listen" yaml:"listen"`
}

type OutputConfig struct {
	Type       string            `json:"type" yaml:"type"`
	MQTT       *MQTTConfig       `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
	Prometheus *PrometheusConfig `json:"prometheus,omitempty" yaml:"prometheus,omitempty"`
}

// ModuleConfig describes one physical device. It is set up once and shared
// by every input that references it by name.
type ModuleConfig struct {
	Name       string `json:"name" yaml:"name"`
	Module     string `json:"module" yaml:"module"`
	I2CBus     string `json:"i2c_bus" yaml:"i2c_bus"`
	I2CAddress int    `json:"i2c_address" yaml:"i2c_address"`
	Simulate   bool   `json:"simulate,omitempty" yaml:"simulate,omitempty"`
}

// InputConfig selects one value from a module. Type is interpreted by the
// module itself and is not checked here. A nil Type means the key was absent,
// which is not the same as an empty type.
type InputConfig struct {
	Name       string  `json:"name" yaml:"name"`
	Module     string  `json:"module" yaml:"module"`
	Type       *string `json:"type,omitempty" yaml:"type,omitempty"`
	IntervalMs int     `json:"interval_ms,omitempty" yaml:"interval_ms,omitempty"`
	Digits     *int    `json:"digits,omitempty" yaml:"digits,omitempty"`
}

// TypeName returns the configured type, or "" when none is set.
func (in InputConfig) TypeName() string {
	if in.Type == nil {
		return ""
	}
	return *in.Type
}

func StrPtr(s string) *string { return &s }

// DigitsOrDefault returns the number of decimal places a value is rounded to.
func (in InputConfig) DigitsOrDefault() int {
	if in.Digits == nil {
		return DefaultDigits
	}
	return *in.Digits
}

type Config struct {
	Modules    []ModuleConfig `json:"modules" yaml:"modules"`
	Inputs     []InputConfig  `json:"inputs" yaml:"inputs"`
	Outputs    []OutputConfig `json:"outputs" yaml:"outputs"`
	IntervalMs int            `json:"interval_ms" yaml:"interval_ms"`
	LogLevel   string         `json:"log_level" yaml:"log_level"`
}

func DefaultConfig() Config {
	return Config{
		Modules: []ModuleConfig{{
			Name:       DefaultModule,
			Module:     DefaultModule,
			I2CAddress: DefaultI2CAddress,
		}},
		Inputs:     defaultInputs(DefaultModule),
		Outputs:    []OutputConfig{{Type: "console"}},
		IntervalMs: DefaultIntervalMs,
		LogLevel:   DefaultLogLevel,
	}
}

func defaultInputs(module string) []InputConfig {
	return []InputConfig{{
		Name:   inputName(module, "channel_clear"),
		Module: module,
		Type:   StrPtr("channel_clear"),
	}}
}

// LoadFromFlags loads configuration from the process command line.
func LoadFromFlags() (Config, error) {
	return Load(os.Args[1:])
}

// Load parses args, reads the optional JSON or YAML config file and applies
// flag overrides on top of it. Flags override values present in the file.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("as7341-to-mqtt", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "Path to JSON or YAML config file")
	flagI2CBus := fs.String("i2c-bus", "", "I2C bus (e.g., '1' -> /dev/i2c-1)")
	flagI2CAddStr := fs.String("i2c-address", "", "I2C address (decimal or 0x hex)")
	flagSensorType := fs.String("sensor-type", "", "sensor type: real|simulation")
	flagChannels := fs.String("channels", "", "Comma-separated channels e.g. channel_clear,channel_nir")
	flagOutputs := fs.String("outputs", "", "Comma-separated outputs (console,mqtt,prometheus)")
	flagMQTTServer := fs.String("mqtt-server", "", "MQTT server (tcp://host:port)")
	flagMQTTUser := fs.String("mqtt-user", "", "MQTT username")
	flagMQTTPass := fs.String("mqtt-pass", "", "MQTT password")
	flagClientID := fs.String("mqtt-client-id", "", "MQTT client id")
	flagTopic := fs.String("mqtt-topic", "", "MQTT topic base")
	flagListen := fs.String("metrics-listen", "", "Prometheus listen address (e.g. :9100)")
	flagInterval := fs.Int("interval-ms", -1, "Default poll interval in ms")
	flagLogLevel := fs.String("log-level", "", "Log level (debug,info,warn,error)")

	cfg := DefaultConfig()
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if *cfgPath != "" {
		if err := readFile(*cfgPath, &cfg); err != nil {
			return cfg, err
		}
	}

	if *flagI2CBus != "" {
		for i := range cfg.Modules {
			cfg.Modules[i].I2CBus = *flagI2CBus
		}
	}
	if *flagI2CAddStr != "" {
		v, err := parseIntOrHex(*flagI2CAddStr)
		if err != nil {
			return cfg, fmt.Errorf("i2c-address: %w", err)
		}
		for i := range cfg.Modules {
			cfg.Modules[i].I2CAddress = v
		}
	}
	switch strings.ToLower(*flagSensorType) {
	case "":
	case "real":
		for i := range cfg.Modules {
			cfg.Modules[i].Simulate = false
		}
	case "simulation", "fake":
		for i := range cfg.Modules {
			cfg.Modules[i].Simulate = true
		}
	default:
		return cfg, fmt.Errorf("sensor-type: unknown value %q", *flagSensorType)
	}
	if *flagChannels != "" {
		if len(cfg.Modules) == 0 {
			return cfg, errors.New("channels: no module configured")
		}
		mod := cfg.Modules[0].Name
		parts := parseCSV(*flagChannels)
		ins := make([]InputConfig, 0, len(parts))
		for _, p := range parts {
			ins = append(ins, InputConfig{Name: inputName(mod, p), Module: mod, Type: StrPtr(p)})
		}
		cfg.Inputs = ins
	}
	if *flagOutputs != "" {
		// convert simple CSV of types into structured OutputConfig entries
		parts := parseCSV(*flagOutputs)
		outs := make([]OutputConfig, 0, len(parts))
		for _, p := range parts {
			outs = append(outs, OutputConfig{Type: strings.ToLower(p)})
		}
		cfg.Outputs = outs
	}
	if *flagMQTTServer != "" || *flagMQTTUser != "" || *flagMQTTPass != "" || *flagClientID != "" || *flagTopic != "" {
		out := ensureOutput(&cfg, "mqtt")
		if out.MQTT == nil {
			out.MQTT = &MQTTConfig{}
		}
		if *flagMQTTServer != "" {
			out.MQTT.Server = *flagMQTTServer
		}
		if *flagMQTTUser != "" {
			out.MQTT.Username = *flagMQTTUser
		}
		if *flagMQTTPass != "" {
			out.MQTT.Password = *flagMQTTPass
		}
		if *flagClientID != "" {
			out.MQTT.ClientID = *flagClientID
		}
		if *flagTopic != "" {
			out.MQTT.Topic = *flagTopic
		}
	}
	if *flagListen != "" {
		out := ensureOutput(&cfg, "prometheus")
		out.Prometheus = &PrometheusConfig{Listen: *flagListen}
	}
	if *flagInterval != -1 {
		cfg.IntervalMs = *flagInterval
	}
	if *flagLogLevel != "" {
		cfg.LogLevel = *flagLogLevel
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var file Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &file)
	default:
		err = json.Unmarshal(b, &file)
	}
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	cfg.merge(file)
	return nil
}

// merge copies every section that is present in other over c. Replacing the
// modules without giving inputs points the default input at the first new
// module.
func (c *Config) merge(other Config) {
	if other.Modules != nil {
		c.Modules = other.Modules
		if other.Inputs == nil {
			c.Inputs = nil
			if len(other.Modules) > 0 {
				name := other.Modules[0].Name
				if name == "" {
					name = other.Modules[0].Module
				}
				if name == "" {
					name = DefaultModule
				}
				c.Inputs = defaultInputs(name)
			}
		}
	}
	if other.Inputs != nil {
		c.Inputs = other.Inputs
	}
	if other.Outputs != nil {
		c.Outputs = other.Outputs
	}
	if other.IntervalMs != 0 {
		c.IntervalMs = other.IntervalMs
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

func (c *Config) applyDefaults() {
	if c.IntervalMs == 0 {
		c.IntervalMs = DefaultIntervalMs
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	for i := range c.Modules {
		if c.Modules[i].Module == "" {
			c.Modules[i].Module = DefaultModule
		}
		if c.Modules[i].Name == "" {
			c.Modules[i].Name = c.Modules[i].Module
		}
	}
	for i := range c.Inputs {
		if c.Inputs[i].Module == "" && len(c.Modules) == 1 {
			c.Inputs[i].Module = c.Modules[0].Name
		}
		if c.Inputs[i].IntervalMs == 0 {
			c.Inputs[i].IntervalMs = c.IntervalMs
		}
	}
	for i := range c.Outputs {
		c.Outputs[i].Type = strings.ToLower(c.Outputs[i].Type)
	}
}

// Validate checks the structure of the configuration. Input types are left
// to the module, which validates them on every read.
func (c Config) Validate() error {
	if c.IntervalMs <= 0 {
		return errors.New("interval-ms must be > 0")
	}
	modules := make(map[string]struct{}, len(c.Modules))
	for _, m := range c.Modules {
		if _, dup := modules[m.Name]; dup {
			return fmt.Errorf("duplicate module name %q", m.Name)
		}
		if m.I2CAddress < 0 || m.I2CAddress > maxI2CAddress {
			return fmt.Errorf("module %q: i2c_address 0x%X out of range 0x00-0x%02X", m.Name, m.I2CAddress, maxI2CAddress)
		}
		modules[m.Name] = struct{}{}
	}
	inputs := make(map[string]struct{}, len(c.Inputs))
	for _, in := range c.Inputs {
		if in.Name == "" {
			return errors.New("input without name")
		}
		if _, dup := inputs[in.Name]; dup {
			return fmt.Errorf("duplicate input name %q", in.Name)
		}
		inputs[in.Name] = struct{}{}
		if _, ok := modules[in.Module]; !ok {
			return fmt.Errorf("input %q references unknown module %q", in.Name, in.Module)
		}
		if in.IntervalMs <= 0 {
			return fmt.Errorf("input %q: interval_ms must be > 0", in.Name)
		}
		if in.Digits != nil && *in.Digits < 0 {
			return fmt.Errorf("input %q: digits must be >= 0", in.Name)
		}
	}
	return nil
}

func ensureOutput(cfg *Config, typ string) *OutputConfig {
	for i := range cfg.Outputs {
		if cfg.Outputs[i].Type == typ {
			return &cfg.Outputs[i]
		}
	}
	cfg.Outputs = append(cfg.Outputs, OutputConfig{Type: typ})
	return &cfg.Outputs[len(cfg.Outputs)-1]
}

// inputName derives "<module>_<band>" from a channel type such as
// "channel_415nm".
func inputName(module, channel string) string {
	return module + "_" + strings.TrimPrefix(channel, "channel_")
}

func parseIntOrHex(s string) (int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 0)
		return int(v), err
	}
	v, err := strconv.Atoi(s)
	return v, err
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
