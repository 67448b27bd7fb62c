// Package as7341 drives the ams AS7341 11-channel spectral sensor as a
// sensor module. Each input selects one of ten channels by name.
package as7341

// ChannelName identifies one measurement channel of the AS7341.
type ChannelName string

const (
	ChannelClear ChannelName = "channel_clear"
	Channel415nm ChannelName = "channel_415nm" // F1, violet
	Channel445nm ChannelName = "channel_445nm" // F2, indigo
	Channel480nm ChannelName = "channel_480nm" // F3, blue
	Channel515nm ChannelName = "channel_515nm" // F4, cyan
	Channel555nm ChannelName = "channel_555nm" // F5, green
	Channel590nm ChannelName = "channel_590nm" // F6, yellow
	Channel630nm ChannelName = "channel_630nm" // F7, orange
	Channel680nm ChannelName = "channel_680nm" // F8, red
	ChannelNIR   ChannelName = "channel_nir"
)

// DefaultChannel is used when an input does not set a type.
const DefaultChannel = ChannelClear

var channels = [...]ChannelName{
	ChannelClear,
	Channel415nm,
	Channel445nm,
	Channel480nm,
	Channel515nm,
	Channel555nm,
	Channel590nm,
	Channel630nm,
	Channel680nm,
	ChannelNIR,
}

// Channels returns every supported channel.
func Channels() []ChannelName {
	out := make([]ChannelName, len(channels))
	copy(out, channels[:])
	return out
}

func (c ChannelName) Valid() bool {
	for _, ch := range channels {
		if ch == c {
			return true
		}
	}
	return false
}

func (c ChannelName) String() string { return string(c) }

// ParseChannel converts s to a ChannelName and reports whether it names one
// of the supported channels. Matching is exact.
func ParseChannel(s string) (ChannelName, bool) {
	c := ChannelName(s)
	return c, c.Valid()
}
