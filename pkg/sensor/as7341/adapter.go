package as7341

import (
	"github.com/ericogr/as7341-to-mqtt/pkg/config"
)

// Opener acquires the bus and builds the device. It either returns a fully
// initialized device or an error, never both.
type Opener func() (Device, error)

// SensorConfig is the per-input configuration understood by this module.
type SensorConfig struct {
	Name string
	Type ChannelName
}

// ParseSensorConfig extracts the channel selection from a generic input. An
// absent type selects the default channel; an unknown one is kept as given
// so Read can reject it.
func ParseSensorConfig(in config.InputConfig) SensorConfig {
	if in.Type == nil {
		return SensorConfig{Name: in.Name, Type: DefaultChannel}
	}
	t, _ := ParseChannel(*in.Type)
	return SensorConfig{Name: in.Name, Type: t}
}

// Sensor owns one device, created once by Setup and used by every Read.
// It is not safe for concurrent use.
type Sensor struct {
	open Opener
	dev  Device
}

func NewSensor(open Opener) *Sensor {
	return &Sensor{open: open}
}

// Setup opens the device. Errors from the opener are returned unchanged and
// leave the sensor without a device, so Setup may be called again.
func (s *Sensor) Setup() error {
	if s.dev != nil {
		return ErrAlreadySetup
	}
	dev, err := s.open()
	if err != nil {
		return err
	}
	s.dev = dev
	return nil
}

func (s *Sensor) Ready() bool { return s.dev != nil }

// Device returns the owned device, or nil before Setup.
func (s *Sensor) Device() Device { return s.dev }

// Read returns one fresh value of the channel selected by cfg. An unknown
// channel yields a *ConfigurationError without touching the device; device
// errors are returned as is.
func (s *Sensor) Read(cfg SensorConfig) (uint16, error) {
	if !cfg.Type.Valid() {
		return 0, &ConfigurationError{Sensor: cfg.Name, Channel: string(cfg.Type)}
	}
	if s.dev == nil {
		return 0, ErrNotSetup
	}
	return Lookup(cfg.Type)(s.dev)
}
