package as7341

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotSetup     = errors.New("as7341: sensor not set up")
	ErrAlreadySetup = errors.New("as7341: sensor already set up")
)

// ConfigurationError reports an input whose type is not a supported channel.
type ConfigurationError struct {
	Sensor  string
	Channel string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("AS7341 sensor '%s' was not configured to return a valid channel (%q)", e.Sensor, e.Channel)
}
