package output

import "github.com/ericogr/as7341-to-mqtt/pkg/sensor"

type Output interface {
	Publish([]sensor.Reading) error
	Close() error
}

// ErrorRecorder is implemented by outputs that track failed reads.
type ErrorRecorder interface {
	RecordError(sensorName string, err error)
}

// helper constructors are in subpackages
