package console

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/ericogr/as7341-to-mqtt/pkg/output"
	"github.com/ericogr/as7341-to-mqtt/pkg/sensor"
)

type ConsoleOutput struct {
	w io.Writer
}

func NewConsole() output.Output { return &ConsoleOutput{w: os.Stdout} }

func NewConsoleWriter(w io.Writer) output.Output { return &ConsoleOutput{w: w} }

func (c *ConsoleOutput) Publish(readings []sensor.Reading) error {
	for _, r := range readings {
		_, err := fmt.Fprintf(c.w, "%s sensor=%s channel=%s value=%s\n",
			r.Timestamp.Format(time.RFC3339), r.Sensor, r.Channel, strconv.FormatFloat(r.Value, 'f', -1, 64))
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *ConsoleOutput) Close() error { return nil }
