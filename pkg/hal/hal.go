package hal

import "errors"

var (
	// ErrNotConnected is returned when a backend is used before Connect or after Close.
	ErrNotConnected = errors.New("hal: not connected")
	// ErrTimeout is returned when the remote bridge does not answer in time.
	ErrTimeout = errors.New("hal: timeout waiting for reply")
)

// ADC reads one raw analog sample from a pin, in native converter counts.
type ADC interface {
	ReadAnalog(pin int) (float64, error)
}

// Digital reads the logic level of a pin.
type Digital interface {
	ReadDigital(pin int) (bool, error)
}

// Climate reads a combined humidity/temperature driver attached to a pin.
type Climate interface {
	ReadClimate(pin int) (humidity, temperature float64, err error)
}

// Ensure backends implement the interfaces they advertise.
var (
	_ ADC     = (*ADS1115)(nil)
	_ ADC     = (*Remote)(nil)
	_ Digital = (*Remote)(nil)
	_ Climate = (*Remote)(nil)
	_ ADC     = (*Mock)(nil)
	_ Digital = (*Mock)(nil)
	_ Climate = (*Mock)(nil)
)
