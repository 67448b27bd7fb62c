package as7341

import (
	"io"

	"github.com/ericogr/as7341-to-mqtt/pkg/config"
	"github.com/ericogr/as7341-to-mqtt/pkg/sensor"
)

const ModuleName = "as7341"

func init() {
	sensor.RegisterModule(ModuleName, NewModule)
}

type module struct {
	*Sensor
}

// NewModule builds the module for cfg. Simulated modules use a FakeDevice,
// others open the I²C bus on Setup.
func NewModule(cfg config.ModuleConfig) (sensor.Module, error) {
	addr := uint16(cfg.I2CAddress)
	if addr == 0 {
		addr = DefaultAddress
	}
	open := func() (Device, error) {
		if cfg.Simulate {
			return NewFakeDevice(), nil
		}
		d, err := Open(cfg.I2CBus, addr)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return &module{Sensor: NewSensor(open)}, nil
}

func (m *module) Value(in config.InputConfig) (float64, error) {
	v, err := m.Read(ParseSensorConfig(in))
	if err != nil {
		return 0, err
	}
	return float64(v), nil
}

func (m *module) Channel(in config.InputConfig) string {
	return ParseSensorConfig(in).Type.String()
}

func (m *module) Close() error {
	if c, ok := m.Device().(io.Closer); ok {
		return c.Close()
	}
	return nil
}
