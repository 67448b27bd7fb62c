package as7341

import "fmt"

// Device is the live connection to one AS7341. Each method performs one
// read of one channel.
type Device interface {
	ChannelClear() (uint16, error)
	Channel415nm() (uint16, error)
	Channel445nm() (uint16, error)
	Channel480nm() (uint16, error)
	Channel515nm() (uint16, error)
	Channel555nm() (uint16, error)
	Channel590nm() (uint16, error)
	Channel630nm() (uint16, error)
	Channel680nm() (uint16, error)
	ChannelNIR() (uint16, error)
}

// Accessor reads one channel from a device. It returns whatever the device
// returns, errors included.
type Accessor func(Device) (uint16, error)

var accessors = map[ChannelName]Accessor{
	ChannelClear: Device.ChannelClear,
	Channel415nm: Device.Channel415nm,
	Channel445nm: Device.Channel445nm,
	Channel480nm: Device.Channel480nm,
	Channel515nm: Device.Channel515nm,
	Channel555nm: Device.Channel555nm,
	Channel590nm: Device.Channel590nm,
	Channel630nm: Device.Channel630nm,
	Channel680nm: Device.Channel680nm,
	ChannelNIR:   Device.ChannelNIR,
}

func init() {
	if len(accessors) != len(channels) {
		panic(fmt.Sprintf("as7341: %d accessors for %d channels", len(accessors), len(channels)))
	}
	for _, ch := range channels {
		if accessors[ch] == nil {
			panic(fmt.Sprintf("as7341: no accessor for %s", ch))
		}
	}
}

// Lookup returns the accessor for name. It returns nil only for names
// outside the supported set.
func Lookup(name ChannelName) Accessor {
	return accessors[name]
}
