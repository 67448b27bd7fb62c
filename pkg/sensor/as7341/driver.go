package as7341

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/mmr"
	"periph.io/x/host/v3"
)

const DefaultAddress = 0x39

const (
	regSMUX     = 0x00 // 20 SMUX configuration bytes in RAM
	regEnable   = 0x80
	regATime    = 0x81
	regWhoAmI   = 0x92
	regCh0DataL = 0x95
	regStatus2  = 0xA3
	regCfg1     = 0xAA
	regCfg6     = 0xAF
	regAStepL   = 0xCA

	enablePON    = 1 << 0
	enableSPEN   = 1 << 1
	enableSMUXEN = 1 << 4
	status2Valid = 1 << 6
	smuxCmdWrite = 2 << 3

	chipID   = 0x09
	gain128x = 8
	atime    = 100
	astep    = 999
)

type bank int

const (
	bankNone bank = iota
	bankLow       // F1-F4, clear, NIR
	bankHigh      // F5-F8, clear, NIR
)

var smuxConfig = map[bank][20]byte{
	bankLow: {
		0x30, 0x01, 0x00, 0x00, 0x00, 0x42, 0x00, 0x00, 0x50, 0x00,
		0x00, 0x00, 0x20, 0x04, 0x00, 0x30, 0x01, 0x50, 0x00, 0x06,
	},
	bankHigh: {
		0x00, 0x00, 0x00, 0x40, 0x02, 0x00, 0x10, 0x03, 0x50, 0x10,
		0x03, 0x00, 0x00, 0x00, 0x24, 0x00, 0x00, 0x50, 0x00, 0x06,
	},
}

// source locates a channel: the SMUX bank that routes it and the ADC it
// lands on.
type source struct {
	bank bank
	adc  uint8
}

var sources = map[ChannelName]source{
	Channel415nm: {bankLow, 0},
	Channel445nm: {bankLow, 1},
	Channel480nm: {bankLow, 2},
	Channel515nm: {bankLow, 3},
	ChannelClear: {bankLow, 4},
	ChannelNIR:   {bankLow, 5},
	Channel555nm: {bankHigh, 0},
	Channel590nm: {bankHigh, 1},
	Channel630nm: {bankHigh, 2},
	Channel680nm: {bankHigh, 3},
}

// Dev is an AS7341 on an I²C bus.
type Dev struct {
	c    mmr.Dev8
	addr uint16
	bus  i2c.BusCloser
	bank bank

	// Timeout bounds each wait on the SMUX and the ADC.
	Timeout time.Duration
	poll    time.Duration
}

// Open initializes the host, opens the named I²C bus and the device on it.
// The bus is closed again if the device cannot be initialized.
func Open(busName string, addr uint16) (*Dev, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "host init")
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, errors.Wrapf(err, "open i2c %q", busName)
	}
	d, err := NewI2C(bus, addr)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	d.bus = bus
	return d, nil
}

// NewI2C checks the chip id, powers the device on and sets integration time
// and gain.
func NewI2C(b i2c.Bus, addr uint16) (*Dev, error) {
	d := &Dev{
		c:       mmr.Dev8{Conn: &i2c.Dev{Bus: b, Addr: addr}, Order: binary.LittleEndian},
		addr:    addr,
		Timeout: time.Second,
		poll:    5 * time.Millisecond,
	}
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dev) init() error {
	id, err := d.c.ReadUint8(regWhoAmI)
	if err != nil {
		return errors.Wrap(err, "as7341: read chip id")
	}
	if id>>2 != chipID {
		return errors.Errorf("as7341: unexpected chip id 0x%02X", id>>2)
	}
	if err := d.c.WriteUint8(regEnable, enablePON); err != nil {
		return errors.Wrap(err, "as7341: power on")
	}
	if err := d.c.WriteUint8(regATime, atime); err != nil {
		return errors.Wrap(err, "as7341: set atime")
	}
	if err := d.c.WriteUint16(regAStepL, astep); err != nil {
		return errors.Wrap(err, "as7341: set astep")
	}
	if err := d.c.WriteUint8(regCfg1, gain128x); err != nil {
		return errors.Wrap(err, "as7341: set gain")
	}
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("AS7341{0x%02X}", d.addr)
}

// Halt powers the device down. The next read powers it up again.
func (d *Dev) Halt() error {
	d.bank = bankNone
	return errors.Wrap(d.c.WriteUint8(regEnable, 0), "as7341: power off")
}

// Close halts the device and closes the bus if Open acquired it.
func (d *Dev) Close() error {
	err := d.Halt()
	if d.bus != nil {
		if cerr := d.bus.Close(); cerr != nil && err == nil {
			err = cerr
		}
		d.bus = nil
	}
	return err
}

func (d *Dev) ChannelClear() (uint16, error) { return d.readChannel(ChannelClear) }
func (d *Dev) Channel415nm() (uint16, error) { return d.readChannel(Channel415nm) }
func (d *Dev) Channel445nm() (uint16, error) { return d.readChannel(Channel445nm) }
func (d *Dev) Channel480nm() (uint16, error) { return d.readChannel(Channel480nm) }
func (d *Dev) Channel515nm() (uint16, error) { return d.readChannel(Channel515nm) }
func (d *Dev) Channel555nm() (uint16, error) { return d.readChannel(Channel555nm) }
func (d *Dev) Channel590nm() (uint16, error) { return d.readChannel(Channel590nm) }
func (d *Dev) Channel630nm() (uint16, error) { return d.readChannel(Channel630nm) }
func (d *Dev) Channel680nm() (uint16, error) { return d.readChannel(Channel680nm) }
func (d *Dev) ChannelNIR() (uint16, error)   { return d.readChannel(ChannelNIR) }

func (d *Dev) readChannel(ch ChannelName) (uint16, error) {
	src := sources[ch]
	if err := d.selectBank(src.bank); err != nil {
		return 0, err
	}
	v, err := d.c.ReadUint16(regCh0DataL + 2*src.adc)
	if err != nil {
		return 0, errors.Wrapf(err, "as7341: read %s", ch)
	}
	return v, nil
}

// selectBank routes the photodiodes of b to the ADCs and restarts the
// measurement. Nothing is written when b is already active.
func (d *Dev) selectBank(b bank) error {
	if d.bank == b {
		return nil
	}
	d.bank = bankNone
	if err := d.c.WriteUint8(regEnable, enablePON); err != nil {
		return errors.Wrap(err, "as7341: disable measurement")
	}
	if err := d.c.WriteUint8(regCfg6, smuxCmdWrite); err != nil {
		return errors.Wrap(err, "as7341: smux command")
	}
	cfg := smuxConfig[b]
	for i, v := range cfg {
		if err := d.c.WriteUint8(regSMUX+uint8(i), v); err != nil {
			return errors.Wrap(err, "as7341: write smux")
		}
	}
	if err := d.c.WriteUint8(regEnable, enablePON|enableSMUXEN); err != nil {
		return errors.Wrap(err, "as7341: start smux")
	}
	if err := d.waitFor(regEnable, enableSMUXEN, false); err != nil {
		return errors.Wrap(err, "as7341: smux")
	}
	if err := d.c.WriteUint8(regEnable, enablePON|enableSPEN); err != nil {
		return errors.Wrap(err, "as7341: enable measurement")
	}
	if err := d.waitFor(regStatus2, status2Valid, true); err != nil {
		return errors.Wrap(err, "as7341: data")
	}
	d.bank = b
	return nil
}

func (d *Dev) waitFor(reg, mask uint8, set bool) error {
	deadline := time.Now().Add(d.Timeout)
	for {
		v, err := d.c.ReadUint8(reg)
		if err != nil {
			return err
		}
		if (v&mask != 0) == set {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Errorf("timeout waiting on register 0x%02X", reg)
		}
		time.Sleep(d.poll)
	}
}
