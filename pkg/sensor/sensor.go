// Package sensor is the framework that lets the daemon drive different
// sensor modules the same way: a module is set up once and then asked for
// one value per configured input.
package sensor

import (
	"time"

	"github.com/ericogr/as7341-to-mqtt/pkg/config"
)

type Reading struct {
	Sensor    string    `json:"sensor"`
	Module    string    `json:"module"`
	Channel   string    `json:"channel,omitempty"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Module is one set-up device. Value performs exactly one read for the given
// input and must not cache. Implementations are not required to be safe for
// concurrent use; see Serialize.
type Module interface {
	Setup() error
	Value(in config.InputConfig) (float64, error)
	Close() error
}

// Channeler is implemented by modules whose inputs select a named channel.
type Channeler interface {
	Channel(in config.InputConfig) string
}
