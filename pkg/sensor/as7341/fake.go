package as7341

import (
	"math/rand"
	"sync"
)

// FakeDevice simulates an AS7341. Channels listed in Values return that
// value, channels listed in Errs fail, every other channel returns a random
// 16-bit count.
type FakeDevice struct {
	mu     sync.Mutex
	Values map[ChannelName]uint16
	Errs   map[ChannelName]error
	reads  map[ChannelName]int
	closed bool
}

func NewFakeDevice() *FakeDevice {
	return &FakeDevice{
		Values: map[ChannelName]uint16{},
		Errs:   map[ChannelName]error{},
		reads:  map[ChannelName]int{},
	}
}

func (f *FakeDevice) read(ch ChannelName) (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reads == nil {
		f.reads = map[ChannelName]int{}
	}
	f.reads[ch]++
	if err, ok := f.Errs[ch]; ok {
		return 0, err
	}
	if v, ok := f.Values[ch]; ok {
		return v, nil
	}
	return uint16(rand.Intn(1 << 16)), nil
}

// Reads returns how many times ch has been read.
func (f *FakeDevice) Reads(ch ChannelName) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[ch]
}

// TotalReads returns the number of reads across all channels.
func (f *FakeDevice) TotalReads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.reads {
		n += c
	}
	return n
}

func (f *FakeDevice) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeDevice) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FakeDevice) ChannelClear() (uint16, error) { return f.read(ChannelClear) }
func (f *FakeDevice) Channel415nm() (uint16, error) { return f.read(Channel415nm) }
func (f *FakeDevice) Channel445nm() (uint16, error) { return f.read(Channel445nm) }
func (f *FakeDevice) Channel480nm() (uint16, error) { return f.read(Channel480nm) }
func (f *FakeDevice) Channel515nm() (uint16, error) { return f.read(Channel515nm) }
func (f *FakeDevice) Channel555nm() (uint16, error) { return f.read(Channel555nm) }
func (f *FakeDevice) Channel590nm() (uint16, error) { return f.read(Channel590nm) }
func (f *FakeDevice) Channel630nm() (uint16, error) { return f.read(Channel630nm) }
func (f *FakeDevice) Channel680nm() (uint16, error) { return f.read(Channel680nm) }
func (f *FakeDevice) ChannelNIR() (uint16, error)   { return f.read(ChannelNIR) }
