package hal

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	// DefaultADS1115Address is the converter address with ADDR tied to GND.
	DefaultADS1115Address = 0x48
	// DefaultADS1115SampleRate is the data rate in samples per second.
	DefaultADS1115SampleRate = 128

	pointerConv   = 0x00
	pointerConfig = 0x01
)

// ADS1115 reads single-ended channels A0..A3 of a TI ADS1115 over I2C.
// The pin number passed to ReadAnalog is the converter channel.
type ADS1115 struct {
	dev        *i2c.Dev
	bus        i2c.BusCloser
	sampleRate int
	mu         sync.Mutex
}

// NewADS1115 initialises the host drivers and opens the converter on the given bus.
func NewADS1115(busName string, addr uint16, sampleRate int) (*ADS1115, error) {
	if addr == 0 {
		addr = DefaultADS1115Address
	}
	if sampleRate <= 0 {
		sampleRate = DefaultADS1115SampleRate
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c %q: %w", busName, err)
	}
	return &ADS1115{
		dev:        &i2c.Dev{Addr: addr, Bus: bus},
		bus:        bus,
		sampleRate: sampleRate,
	}, nil
}

// Close releases the I2C bus.
func (a *ADS1115) Close() error {
	if a.bus != nil {
		return a.bus.Close()
	}
	return nil
}

// ReadAnalog starts a single-shot conversion on the channel and returns the signed result.
func (a *ADS1115) ReadAnalog(pin int) (float64, error) {
	msb, lsb, err := configForChannel(pin, a.sampleRate)
	if err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.dev.Tx([]byte{pointerConfig, msb, lsb}, nil); err != nil {
		return 0, fmt.Errorf("write config: %w", err)
	}

	// Wait one conversion period plus margin.
	delayMs := int(1000.0/float64(a.sampleRate)) + 2
	time.Sleep(time.Duration(delayMs) * time.Millisecond)

	readBuf := make([]byte, 2)
	if err := a.dev.Tx([]byte{pointerConv}, readBuf); err != nil {
		return 0, fmt.Errorf("read conversion: %w", err)
	}
	raw := int16(readBuf[0])<<8 | int16(readBuf[1])
	return float64(raw), nil
}

// configForChannel builds the config register for a single-shot, single-ended
// conversion at +-4.096V full scale with the comparator disabled.
func configForChannel(channel, sampleRate int) (byte, byte, error) {
	var mux byte
	switch channel {
	case 0:
		mux = 0x4
	case 1:
		mux = 0x5
	case 2:
		mux = 0x6
	case 3:
		mux = 0x7
	default:
		return 0, 0, fmt.Errorf("invalid ads1115 channel %d", channel)
	}

	pga := byte(0x1)

	var dr byte
	switch sampleRate {
	case 8:
		dr = 0x0
	case 16:
		dr = 0x1
	case 32:
		dr = 0x2
	case 64:
		dr = 0x3
	case 128:
		dr = 0x4
	case 250:
		dr = 0x5
	case 475:
		dr = 0x6
	case 860:
		dr = 0x7
	default:
		dr = 0x4
	}

	var config uint16 = 0x8000 // start a single conversion
	config |= uint16(mux) << 12
	config |= uint16(pga) << 9
	config |= 1 << 8 // single-shot mode
	config |= uint16(dr) << 5
	config |= 0x3
	return byte(config >> 8), byte(config & 0xFF), nil
}
